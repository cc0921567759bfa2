package arcerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"形式エラー", fmt.Errorf("%w: 署名", ErrFormat), ErrFormat},
		{"二重ラップ", fmt.Errorf("外側: %w", fmt.Errorf("%w: crc", ErrIntegrity)), ErrIntegrity},
		{"未対応", fmt.Errorf("%w: tor", ErrUnsupportedMethod), ErrUnsupportedMethod},
		{"暗号", ErrCrypto, ErrCrypto},
		{"展開", fmt.Errorf("%w: desync", ErrDecompression), ErrDecompression},
		{"分類なし", errors.New("other"), nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Category(tt.err); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}
