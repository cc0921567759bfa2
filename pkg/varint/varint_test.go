package varint

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 127, 128, 16383, 16384,
		1<<21 - 1, 1 << 21, 1<<28 - 1, 1 << 28,
		1<<49 - 1, 1<<56 - 1, 1 << 56,
		math.MaxInt64, math.MaxUint64,
	}
	for _, v := range values {
		enc := Encode(v)
		if len(enc) != Len(v) {
			t.Errorf("Len(%d) = %d, 符号化後 %d バイト", v, Len(v), len(enc))
		}
		got, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%x) error = %v", enc, err)
		}
		if got != v || n != len(enc) {
			t.Errorf("Decode(Encode(%d)) = %d (%d バイト), want %d (%d バイト)", v, got, n, v, len(enc))
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	tests := []struct {
		name string
		v    uint64
		want []byte
	}{
		{"ゼロ", 0, []byte{0x00}},
		{"1バイト最大", 127, []byte{0xFE}},
		{"2バイト最小", 128, []byte{0x01, 0x02}},
		{"2バイト最大", 16383, []byte{0xFD, 0xFF}},
		{"3バイト最小", 16384, []byte{0x03, 0x00, 0x02}},
		{"8バイト最大", 1<<56 - 1, []byte{0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"9バイト", 1 << 56, []byte{0xFF, 0, 0, 0, 0, 0, 0, 0x01, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.v); !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%d) = % x, want % x", tt.v, got, tt.want)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"空", nil},
		{"2バイト形式で1バイト", []byte{0x01}},
		{"9バイト形式で5バイト", []byte{0xFF, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.input)
			if !errors.Is(err, ErrTruncatedInput) {
				t.Errorf("Decode() error = %v, want ErrTruncatedInput", err)
			}
			if !errors.Is(err, arcerr.ErrFormat) {
				t.Errorf("Decode() error = %v, want arcerr.ErrFormat", err)
			}
		})
	}
}

func TestReadWrite(t *testing.T) {
	values := []uint64{0, 300, 1 << 40, math.MaxUint64}
	var buf bytes.Buffer
	for _, v := range values {
		if err := Write(&buf, v); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	r := bufio.NewReader(&buf)
	for _, want := range values {
		got, err := Read(r)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if got != want {
			t.Errorf("Read() = %d, want %d", got, want)
		}
	}
	if _, err := Read(r); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("末尾での Read() error = %v, want ErrTruncatedInput", err)
	}
}

func TestDecodeNonCanonical(t *testing.T) {
	// 2バイト形式で表した 5
	got, n, err := Decode([]byte{5<<2 | 0x01, 0x00})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got != 5 || n != 2 {
		t.Errorf("Decode() = %d, %d, want 5, 2", got, n)
	}
}
