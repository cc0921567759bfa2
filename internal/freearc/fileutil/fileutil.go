// Package fileutil はファイル操作のユーティリティ関数を提供します
package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
)

// FromShiftJIS はShift-JISからUTF-8に変換します
func FromShiftJIS(str string) (string, error) {
	reader := strings.NewReader(str)
	transformer := japanese.ShiftJIS.NewDecoder()
	ret, err := io.ReadAll(transform.NewReader(reader, transformer))
	if err != nil {
		return "", err
	}
	return string(ret), nil
}

// DecodeName はアーカイブ内のファイル名を encoding に従ってUTF-8に変換します。
// "sjis" 以外はそのまま返します。既にUTF-8として正しい名前もそのまま返します。
func DecodeName(name, encoding string) (string, error) {
	if encoding != "sjis" || isASCII(name) {
		return name, nil
	}
	s, err := FromShiftJIS(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrDecodeName, name, err)
	}
	return s, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// SafeJoin はアーカイブ内の "/" 区切りのパス name を base の下のパスに変換します。
// 絶対パスや ".." で base の外を指す名前はエラーにします。
func SafeJoin(base, name string) (string, error) {
	local := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ferrors.ErrUnsafePath, name)
	}
	return filepath.Join(base, local), nil
}

// DecodeText はBOMやバイト列の内容から文字コードを判定してUTF-8に変換します。
// UTF-8 BOM、UTF-16LE BOM、BOMなしUTF-8、Shift-JISの順に判定します。
func DecodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		return string(data[len(utf8BOM):]), nil
	case bytes.HasPrefix(data, utf16LEBOM):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		b, err := dec.Bytes(data)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case utf8.Valid(data):
		return string(data), nil
	}
	b, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseListFile はリストファイルの内容を1行1件のパスに分けます。
// 空行は無視し、"\" は "/" に置き換えます。
func ParseListFile(data []byte) ([]string, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadListFile, err)
	}
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		names = append(names, strings.ReplaceAll(line, "\\", "/"))
	}
	return names, nil
}

// ReadListFile は fs からリストファイルを読み込んで ParseListFile します
func ReadListFile(fs interfaces.FileSystem, filename string) ([]string, error) {
	data, err := fs.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrReadListFile, filename, err)
	}
	return ParseListFile(data)
}

// SaveToFileWithBOM はUTF-8 BOMありで fs にファイルを保存します
func SaveToFileWithBOM(fs interfaces.FileSystem, outputPath string, content string) error {
	// 出力先ディレクトリを作成（存在しない場合）
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrCreateDirectory, err)
		}
	}

	data := make([]byte, 0, len(utf8BOM)+len(content))
	data = append(data, utf8BOM...)
	data = append(data, content...)
	if err := fs.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteContent, err)
	}
	return nil
}
