// Package crypto はFreeArcアーカイブの暗号化ステージを扱います。
//
// 主な機能:
//   - EncryptionSpec: "blowfish-448/ctr:n1000:r0:i...:s...:c..." 形式の暗号指定
//   - DeriveKey: PBKDF2-HMAC-SHA512 による鍵導出
//   - VerifyPassword: チェックコードによるパスワード検証
//   - NewStream: リトルエンディアンカウンタのCTRモード (Blowfish / AES)
//   - Cascade: 複数の暗号を重ねた多段復号
//   - KeyCache: 導出済み鍵のLRUキャッシュ
package crypto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Algorithm は暗号アルゴリズムです
type Algorithm int

const (
	Blowfish Algorithm = iota + 1
	AES
)

// String はメソッド文字列での名前を返します
func (a Algorithm) String() string {
	switch a {
	case Blowfish:
		return "blowfish"
	case AES:
		return "aes"
	}
	return "Algorithm(" + strconv.Itoa(int(a)) + ")"
}

// BlockSize はブロック長(=IV長)をバイト数で返します
func (a Algorithm) BlockSize() int {
	if a == Blowfish {
		return 8
	}
	return 16
}

// Mode は暗号利用モードです
type Mode int

const (
	CTR Mode = iota + 1
	CFB
)

// String はメソッド文字列での名前を返します
func (m Mode) String() string {
	switch m {
	case CTR:
		return "ctr"
	case CFB:
		return "cfb"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// DefaultIterations は n パラメータ省略時のPBKDF2反復回数です
const DefaultIterations = 1000

// knownCiphers はメソッド文字列中で暗号とみなす名前です
var knownCiphers = map[string]bool{
	"blowfish": true,
	"aes":      true,
	"serpent":  true,
	"twofish":  true,
}

// EncryptionSpec はメソッド文字列の暗号ステージ1つ分の指定です
type EncryptionSpec struct {
	Algorithm    Algorithm
	KeyBits      int
	Mode         Mode
	Iterations   int
	Rounds       int
	IV           []byte
	Salt         []byte
	CheckCode    []byte
	UTF8Password bool
}

// KeyLen は鍵長をバイト数で返します
func (s *EncryptionSpec) KeyLen() int {
	return s.KeyBits / 8
}

// String はメソッド文字列での表記を返します
func (s *EncryptionSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s-%d/%s:n%d:r%d:i%x:s%x", s.Algorithm, s.KeyBits, s.Mode, s.Iterations, s.Rounds, s.IV, s.Salt)
	if len(s.CheckCode) > 0 {
		fmt.Fprintf(&b, ":c%x", s.CheckCode)
	}
	if s.UTF8Password {
		b.WriteString(":f")
	}
	return b.String()
}

// IsCipherSegment はメソッド文字列の1区切りが暗号指定かどうかを返します
func IsCipherSegment(segment string) bool {
	name, _, _ := strings.Cut(segment, ":")
	name, _, _ = strings.Cut(name, "/")
	name, _, _ = strings.Cut(name, "-")
	return knownCiphers[strings.ToLower(name)]
}

// ParseSpec は "algorithm-keybits/mode:n..:r..:i..:s..[:c..][:f]" を解析します
func ParseSpec(segment string) (*EncryptionSpec, error) {
	parts := strings.Split(segment, ":")
	head := strings.ToLower(parts[0])

	algPart, modePart, hasMode := strings.Cut(head, "/")
	name, bitsPart, hasBits := strings.Cut(algPart, "-")

	spec := &EncryptionSpec{Mode: CTR, Iterations: DefaultIterations}
	switch name {
	case "blowfish":
		spec.Algorithm = Blowfish
		spec.KeyBits = 448
	case "aes":
		spec.Algorithm = AES
		spec.KeyBits = 256
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCipher, name)
	}

	if hasBits {
		bits, err := strconv.Atoi(bitsPart)
		if err != nil {
			return nil, fmt.Errorf("%w: 鍵長 %q", ErrBadSpec, bitsPart)
		}
		spec.KeyBits = bits
	}
	if err := checkKeyBits(spec.Algorithm, spec.KeyBits); err != nil {
		return nil, err
	}

	if hasMode {
		switch modePart {
		case "ctr":
			spec.Mode = CTR
		case "cfb":
			spec.Mode = CFB
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, modePart)
		}
	}

	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		val := p[1:]
		var err error
		switch p[0] {
		case 'n':
			spec.Iterations, err = strconv.Atoi(val)
			if err == nil && spec.Iterations <= 0 {
				err = fmt.Errorf("反復回数 %d", spec.Iterations)
			}
		case 'r':
			spec.Rounds, err = strconv.Atoi(val)
		case 'i':
			spec.IV, err = decodeHex(val)
		case 's':
			spec.Salt, err = decodeHex(val)
		case 'c':
			spec.CheckCode, err = decodeHex(val)
		case 'f':
			spec.UTF8Password = true
		default:
			err = fmt.Errorf("不明なパラメータ %q", p)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadSpec, err)
		}
	}

	if len(spec.IV) != spec.Algorithm.BlockSize() {
		return nil, fmt.Errorf("%w: %sには%dバイト必要ですが%dバイトです", ErrBadIVLength, spec.Algorithm, spec.Algorithm.BlockSize(), len(spec.IV))
	}
	return spec, nil
}

func checkKeyBits(alg Algorithm, bits int) error {
	switch alg {
	case Blowfish:
		if bits >= 32 && bits <= 448 && bits%8 == 0 {
			return nil
		}
	case AES:
		if bits == 128 || bits == 192 || bits == 256 {
			return nil
		}
	}
	return fmt.Errorf("%w: %s-%d", ErrBadKeyLength, alg, bits)
}

// decodeHex は2文字ずつ16進数を復号し、奇数個目の余った1文字は捨てます
func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s[:len(s)&^1])
}
