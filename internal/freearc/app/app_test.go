package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/config"
	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/mocks"
	"github.com/shiroemons/go-freearc/pkg/arcerr"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mockArchive は2つのデータブロックを持つアーカイブのモックを作ります
func mockArchive() *mocks.MockArchive {
	dir := &freearc.Directory{
		Blocks: []freearc.Descriptor{
			{Type: freearc.DataBlock, Compressor: "lzma:16mb", OrigSize: 8},
			{Type: freearc.DataBlock, Compressor: "storing+aes-256/ctr:n1000:r0:i00112233445566778899aabbccddeeff:s00", OrigSize: 4},
		},
		Dirs: []string{"", "docs"},
		Files: []freearc.FileEntry{
			{Name: "a.txt", Size: 5, ModTime: testTime, Block: 0},
			{Name: "docs", IsDir: true, ModTime: testTime, Block: 0},
			{Name: "b.txt", Dir: "docs", DirNumber: 1, Size: 3, ModTime: testTime, Block: 0, Offset: 5},
			{Name: "c.bin", Size: 4, ModTime: testTime, Block: 1},
		},
	}
	m := mocks.NewMockArchive(dir)
	m.Data[0] = []freearc.FileData{
		{Entry: dir.Files[0], Data: []byte("hello")},
		{Entry: dir.Files[1]},
		{Entry: dir.Files[2], Data: []byte("doc")},
	}
	m.Data[1] = []freearc.FileData{
		{Entry: dir.Files[3], Data: []byte{1, 2, 3, 4}},
	}
	m.InfoValue = freearc.Info{Blocks: 2, Files: 3, Dirs: 1, Encrypted: true}
	return m
}

func newTestApp(t *testing.T, cfg *config.Config, arc *mocks.MockArchive, fs *mocks.MockFileSystem) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	if cfg.OutputDir == "" {
		cfg.OutputDir = "/out"
	}
	if cfg.ArchivePath == "" {
		cfg.ArchivePath = "test.arc"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	app, err := NewWithOptions(cfg, Options{
		FileSystem: fs,
		Opener:     &mocks.MockOpener{Archive: arc},
		Logger:     config.NewDebugLoggerTo(&bytes.Buffer{}, true),
		Stdout:     &out,
	})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	return app, &out
}

func TestApp_Extract(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		setup       func(m *mocks.MockArchive, fs *mocks.MockFileSystem)
		wantErr     error
		wantFiles   map[string]string
		wantAbsent  []string
		wantFailed  []string
		wantSkipped int
		wantUnread  []int
	}{
		{
			name: "すべて展開",
			wantFiles: map[string]string{
				"/out/a.txt":      "hello",
				"/out/docs/b.txt": "doc",
				"/out/c.bin":      "\x01\x02\x03\x04",
			},
		},
		{
			name: "ブロックの展開に失敗しても他のブロックは展開する",
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				m.BlockErrs[1] = fmt.Errorf("%w: crc", arcerr.ErrIntegrity)
			},
			wantErr:    ErrExtractFailed,
			wantFiles:  map[string]string{"/out/a.txt": "hello", "/out/docs/b.txt": "doc"},
			wantAbsent: []string{"/out/c.bin"},
			wantFailed: []string{"c.bin"},
		},
		{
			name: "ファイル単位のCRC不一致",
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				m.Data[0][2].Err = freearc.ErrCRCMismatch
			},
			wantErr:    ErrExtractFailed,
			wantFiles:  map[string]string{"/out/a.txt": "hello"},
			wantAbsent: []string{"/out/docs/b.txt"},
			wantFailed: []string{"docs/b.txt"},
		},
		{
			name:       "指定したファイルのブロックだけを読む",
			cfg:        config.Config{Files: []string{"docs/*"}},
			wantFiles:  map[string]string{"/out/docs/b.txt": "doc"},
			wantAbsent: []string{"/out/a.txt", "/out/c.bin"},
			wantUnread: []int{1},
		},
		{
			name:       "ファイル名だけの指定",
			cfg:        config.Config{Files: []string{"*.bin"}},
			wantFiles:  map[string]string{"/out/c.bin": "\x01\x02\x03\x04"},
			wantUnread: []int{0},
		},
		{
			name:    "見つからない指定",
			cfg:     config.Config{Files: []string{"a.txt", "nothing.txt"}},
			wantErr: ErrNotFound,
			wantFiles: map[string]string{
				"/out/a.txt": "hello",
			},
		},
		{
			name: "リストファイルで指定",
			cfg:  config.Config{ListFile: "/list.txt"},
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				fs.Files["/list.txt"] = []byte("\xEF\xBB\xBFdocs\\b.txt\r\n\r\n")
			},
			wantFiles:  map[string]string{"/out/docs/b.txt": "doc"},
			wantAbsent: []string{"/out/a.txt"},
			wantUnread: []int{1},
		},
		{
			name:       "ドライランでは書き込まない",
			cfg:        config.Config{DryRun: true},
			wantAbsent: []string{"/out/a.txt", "/out/docs/b.txt", "/out/c.bin"},
		},
		{
			name: "既存のファイルは上書きしない",
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				fs.Files["/out/a.txt"] = []byte("old")
			},
			wantFiles:   map[string]string{"/out/a.txt": "old", "/out/c.bin": "\x01\x02\x03\x04"},
			wantSkipped: 1,
		},
		{
			name: "上書きを許可",
			cfg:  config.Config{Overwrite: true},
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				fs.Files["/out/a.txt"] = []byte("old")
			},
			wantFiles: map[string]string{"/out/a.txt": "hello"},
		},
		{
			name: "展開先の外を指すパス",
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				evil := freearc.FileEntry{Name: "evil", Dir: "..", Size: 1, Block: 1}
				m.Dir.Files = append(m.Dir.Files, evil)
				m.Data[1] = append(m.Data[1], freearc.FileData{Entry: evil, Data: []byte("x")})
			},
			wantErr:    ErrExtractFailed,
			wantFiles:  map[string]string{"/out/c.bin": "\x01\x02\x03\x04"},
			wantAbsent: []string{"/evil"},
			wantFailed: []string{"../evil"},
		},
		{
			name: "Shift-JISのファイル名",
			cfg:  config.Config{NameEncoding: config.EncodingShiftJIS, Files: []string{"*.txt"}},
			setup: func(m *mocks.MockArchive, fs *mocks.MockFileSystem) {
				sjis := freearc.FileEntry{Name: "\x83\x65\x83\x58\x83\x67.txt", Size: 2, Block: 1}
				m.Dir.Files = append(m.Dir.Files, sjis)
				m.Data[1] = append(m.Data[1], freearc.FileData{Entry: sjis, Data: []byte("jp")})
			},
			wantFiles: map[string]string{"/out/テスト.txt": "jp", "/out/a.txt": "hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arc := mockArchive()
			fs := mocks.NewMockFileSystem()
			if tt.setup != nil {
				tt.setup(arc, fs)
			}
			cfg := tt.cfg
			app, _ := newTestApp(t, &cfg, arc, fs)

			sum, err := app.Extract(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if sum == nil {
				t.Fatal("Extract() summary = nil")
			}

			for name, want := range tt.wantFiles {
				got, ok := fs.Files[name]
				if !ok {
					t.Errorf("%s が書き出されていません", name)
					continue
				}
				if string(got) != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
			for _, name := range tt.wantAbsent {
				if _, ok := fs.Files[name]; ok {
					t.Errorf("%s は書き出されないはずです", name)
				}
			}

			var failed []string
			for _, r := range sum.Failed {
				failed = append(failed, r.Path)
				var ee *ferrors.ExtractError
				if !errors.As(r.Err, &ee) {
					t.Errorf("失敗 %s のエラーが ExtractError ではありません: %v", r.Path, r.Err)
				}
			}
			if !slices.Equal(failed, tt.wantFailed) {
				t.Errorf("Failed = %v, want %v", failed, tt.wantFailed)
			}
			if sum.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %d, want %d", sum.Skipped, tt.wantSkipped)
			}
			for _, b := range tt.wantUnread {
				if n := arc.ReadCount(b); n != 0 {
					t.Errorf("ブロック%dを%d回読みました", b, n)
				}
			}
			for b := range arc.Dir.Blocks {
				if n := arc.ReadCount(b); n > 1 {
					t.Errorf("ブロック%dを%d回読みました", b, n)
				}
			}
			if !arc.Closed {
				t.Error("アーカイブが閉じられていません")
			}
		})
	}
}

func TestApp_ExtractSetsModTime(t *testing.T) {
	arc := mockArchive()
	fs := mocks.NewMockFileSystem()
	app, _ := newTestApp(t, &config.Config{}, arc, fs)

	if _, err := app.Extract(context.Background()); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	for _, name := range []string{"/out/a.txt", "/out/docs", "/out/c.bin"} {
		if got := fs.Times[name]; !got.Equal(testTime) {
			t.Errorf("%s の更新日時 = %v, want %v", name, got, testTime)
		}
	}
	if !fs.Dirs["/out/docs"] {
		t.Error("ディレクトリ /out/docs が作られていません")
	}
}

func TestApp_ExtractCanceled(t *testing.T) {
	arc := mockArchive()
	fs := mocks.NewMockFileSystem()
	app, _ := newTestApp(t, &config.Config{}, arc, fs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := app.Extract(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract() error = %v, want context.Canceled", err)
	}
	if len(fs.Files) != 0 {
		t.Errorf("書き込まれたファイル = %v", fs.Files)
	}
}

func TestApp_OpenErrors(t *testing.T) {
	openErr := ferrors.NewArchiveError("開く", "test.arc", ferrors.ErrNotFreeArc)
	tests := []struct {
		name    string
		opener  *mocks.MockOpener
		dirErr  error
		wantErr error
	}{
		{"開けない", &mocks.MockOpener{Error: openErr}, nil, ferrors.ErrNotFreeArc},
		{"ディレクトリが壊れている", nil, freearc.ErrMalformedDirectory, arcerr.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arc := mockArchive()
			arc.DirErr = tt.dirErr
			opener := tt.opener
			if opener == nil {
				opener = &mocks.MockOpener{Archive: arc}
			}
			cfg := &config.Config{ArchivePath: "test.arc", Password: "pw", OutputDir: "/out", Workers: 1}
			app, err := NewWithOptions(cfg, Options{
				FileSystem: mocks.NewMockFileSystem(),
				Opener:     opener,
				Logger:     config.NewDebugLoggerTo(&bytes.Buffer{}, false),
				Stdout:     &bytes.Buffer{},
			})
			if err != nil {
				t.Fatal(err)
			}

			_, err = app.Extract(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Extract() error = %v, want %v", err, tt.wantErr)
			}
			if opener.Password != "pw" {
				t.Errorf("パスワードが渡されていません: %q", opener.Password)
			}
			if tt.dirErr != nil && !arc.Closed {
				t.Error("ディレクトリの読み込みに失敗したアーカイブが閉じられていません")
			}
		})
	}
}

func TestApp_Test(t *testing.T) {
	tests := []struct {
		name       string
		failures   []freearc.BlockFailure
		wantErr    error
		wantFiles  int
		wantFailed int
	}{
		{"すべて正常", nil, nil, 3, 0},
		{
			name:       "ブロック全体の失敗",
			failures:   []freearc.BlockFailure{{Block: 1, Err: fmt.Errorf("%w: crc", arcerr.ErrIntegrity)}},
			wantErr:    ErrTestFailed,
			wantFiles:  2,
			wantFailed: 1,
		},
		{
			name: "ファイル単位の失敗",
			failures: []freearc.BlockFailure{
				{Block: 0, File: "docs/b.txt", Err: freearc.ErrCRCMismatch},
			},
			wantErr:    ErrTestFailed,
			wantFiles:  2,
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arc := mockArchive()
			arc.Failures = tt.failures
			app, out := newTestApp(t, &config.Config{}, arc, mocks.NewMockFileSystem())

			sum, err := app.Test(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Test() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Test() error = %v", err)
			}
			if sum.Files != tt.wantFiles {
				t.Errorf("Files = %d, want %d", sum.Files, tt.wantFiles)
			}
			if len(sum.Failed) != tt.wantFailed {
				t.Errorf("len(Failed) = %d, want %d", len(sum.Failed), tt.wantFailed)
			}

			app.Report("検証", sum)
			if tt.wantFailed > 0 && !strings.Contains(out.String(), "パスワードが違うか") {
				t.Errorf("暗号化アーカイブの失敗の説明がありません: %q", out.String())
			}
		})
	}
}

func TestApp_List(t *testing.T) {
	arc := mockArchive()
	app, out := newTestApp(t, &config.Config{}, arc, mocks.NewMockFileSystem())

	if err := app.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"a.txt", "docs/b.txt", "docs/", "lzma:16mb", "storing+暗号化", "3ファイル、12バイト"} {
		if !strings.Contains(got, want) {
			t.Errorf("List() の出力に %q がありません:\n%s", want, got)
		}
	}
	if strings.Contains(got, "s00") {
		t.Errorf("List() の出力に暗号指定が含まれています:\n%s", got)
	}
}

func TestApp_SaveListing(t *testing.T) {
	arc := mockArchive()
	fs := mocks.NewMockFileSystem()
	app, _ := newTestApp(t, &config.Config{}, arc, fs)

	if err := app.SaveListing(context.Background(), "/lists/listing.txt"); err != nil {
		t.Fatalf("SaveListing() error = %v", err)
	}
	data := fs.Files["/lists/listing.txt"]
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Errorf("BOMがありません: %q", data)
	}
	if !bytes.Contains(data, []byte("docs/b.txt")) {
		t.Errorf("一覧の内容がありません: %q", data)
	}
}

func TestApp_Info(t *testing.T) {
	arc := mockArchive()
	arc.InfoValue.Comment = "hello comment"
	arc.InfoValue.Methods = []string{"lzma:16mb"}
	app, out := newTestApp(t, &config.Config{}, arc, mocks.NewMockFileSystem())

	info, err := app.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Blocks != 2 {
		t.Errorf("Blocks = %d, want 2", info.Blocks)
	}
	for _, want := range []string{"ブロック:   2", "暗号化:     あり", "hello comment", "lzma:16mb"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Info() の出力に %q がありません:\n%s", want, out.String())
		}
	}
}
