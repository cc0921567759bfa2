package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/config"
	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

func writeArchive(t *testing.T, dir string, opts freearc.WriterOptions, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := freearc.NewWriter(&buf, opts)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, body := range files {
		if err := w.Add(name, []byte(body), mtime); err != nil {
			t.Fatalf("Add(%q) error = %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	path := filepath.Join(dir, "test.arc")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"FreeArcの署名", "ArC\x01rest", true},
		{"署名のみ", "ArC\x01", true},
		{"ZIP", "PK\x03\x04", false},
		{"短すぎる", "Ar", false},
		{"空", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(strings.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpener_Open(t *testing.T) {
	dir := t.TempDir()
	path := writeArchive(t, dir, freearc.WriterOptions{Method: "storing"}, map[string]string{
		"a.txt":     "hello",
		"sub/b.txt": "world",
	})

	opener, err := NewOpener(config.NewDebugLoggerTo(&bytes.Buffer{}, false))
	if err != nil {
		t.Fatalf("NewOpener() error = %v", err)
	}

	a, err := opener.Open(path, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	d, err := a.Directory()
	if err != nil {
		t.Fatalf("Directory() error = %v", err)
	}
	if len(d.Files) != 2 {
		t.Errorf("len(Files) = %d, want 2", len(d.Files))
	}
	files, err := a.ReadBlock(0)
	if err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}
	got := map[string]string{}
	for _, f := range files {
		got[f.Entry.Path()] = string(f.Data)
	}
	if got["a.txt"] != "hello" || got["sub/b.txt"] != "world" {
		t.Errorf("ReadBlock() = %v", got)
	}
}

func TestOpener_OpenErrors(t *testing.T) {
	dir := t.TempDir()
	zip := filepath.Join(dir, "x.zip")
	if err := os.WriteFile(zip, []byte("PK\x03\x04 not an arc"), 0644); err != nil {
		t.Fatal(err)
	}
	broken := filepath.Join(dir, "broken.arc")
	if err := os.WriteFile(broken, []byte("ArC\x01 truncated"), 0644); err != nil {
		t.Fatal(err)
	}

	opener, err := NewOpener(config.NewDebugLoggerTo(&bytes.Buffer{}, false))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		wantNotArc bool
		wantBadSig bool
	}{
		{"FreeArc以外のファイル", zip, true, true},
		{"先頭だけFreeArc", broken, false, true},
		{"存在しないファイル", filepath.Join(dir, "missing.arc"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := opener.Open(tt.path, "")
			if err == nil {
				t.Fatal("Open() error = nil")
			}
			var ae *ferrors.ArchiveError
			if !errors.As(err, &ae) || ae.Path != tt.path {
				t.Errorf("Open() error = %v, want ArchiveError for %s", err, tt.path)
			}
			if got := errors.Is(err, ferrors.ErrNotFreeArc); got != tt.wantNotArc {
				t.Errorf("errors.Is(ErrNotFreeArc) = %v, want %v", got, tt.wantNotArc)
			}
			if got := errors.Is(err, freearc.ErrBadSignature); got != tt.wantBadSig {
				t.Errorf("errors.Is(ErrBadSignature) = %v, want %v", got, tt.wantBadSig)
			}
		})
	}
}
