package crypto

import (
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/encoding/charmap"
)

// DeriveKey はPBKDF2-HMAC-SHA512で keyLen バイトの鍵を導出します。
// iterations が0以下の場合は DefaultIterations を使います。
func DeriveKey(password, salt []byte, iterations, keyLen int) []byte {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, sha512.New)
}

// PasswordBytes はパスワード文字列を鍵導出に使うバイト列に変換します。
// utf8 が false の場合は各文字をLatin-1の1バイトとして扱います。
func PasswordBytes(password string, utf8 bool) ([]byte, error) {
	if utf8 {
		return []byte(password), nil
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPasswordEncoding, err)
	}
	return b, nil
}

// Material は1つの暗号ステージについて導出した鍵とチェックコードです
type Material struct {
	Key       []byte
	CheckCode []byte
}

// Derive は spec と password から鍵とチェックコードを導出します
func Derive(spec *EncryptionSpec, password string) (Material, error) {
	pw, err := PasswordBytes(password, spec.UTF8Password)
	if err != nil {
		return Material{}, err
	}
	keyLen := spec.KeyLen()
	out := DeriveKey(pw, spec.Salt, spec.Iterations, keyLen+len(spec.CheckCode))
	return Material{Key: out[:keyLen:keyLen], CheckCode: out[keyLen:]}, nil
}

// Matches は導出したチェックコードが spec の値と一致するかを返します
func (m Material) Matches(spec *EncryptionSpec) bool {
	if len(spec.CheckCode) == 0 {
		return true
	}
	return subtle.ConstantTimeCompare(m.CheckCode, spec.CheckCode) == 1
}

// VerifyPassword はチェックコードでパスワードを検証します。
// チェックコードがない場合は検証できないため true を返します。
func VerifyPassword(spec *EncryptionSpec, password string) (bool, error) {
	if len(spec.CheckCode) == 0 {
		return true, nil
	}
	m, err := Derive(spec, password)
	if err != nil {
		return false, err
	}
	return m.Matches(spec), nil
}
