package crypto

import (
	"fmt"
	"io"
	"strings"
)

// Cascade はメソッド文字列の末尾に並ぶ暗号ステージの列です。
// 各段は自身のソルトとIVから独立に初期化されます。
type Cascade struct {
	Specs []*EncryptionSpec
}

// ParseCascade は暗号指定の区切りを順に解析します
func ParseCascade(segments []string) (*Cascade, error) {
	c := &Cascade{}
	for _, seg := range segments {
		spec, err := ParseSpec(seg)
		if err != nil {
			return nil, err
		}
		c.Specs = append(c.Specs, spec)
	}
	return c, nil
}

// String はメソッド文字列での表記を返します
func (c *Cascade) String() string {
	parts := make([]string, len(c.Specs))
	for i, s := range c.Specs {
		parts[i] = s.String()
	}
	return strings.Join(parts, "+")
}

// Verify はチェックコードを持つ全ての段でパスワードを検証します
func (c *Cascade) Verify(password string, keys *KeyCache) error {
	for i, spec := range c.Specs {
		if len(spec.CheckCode) == 0 {
			continue
		}
		m, err := keys.Derive(spec, password)
		if err != nil {
			return err
		}
		if !m.Matches(spec) {
			return fmt.Errorf("%w: %d段目 (%s)", ErrPasswordMismatch, i+1, spec.Algorithm)
		}
	}
	return nil
}

// Decrypt は最後に宣言された段から順に復号した新しいスライスを返します。
// ストリーム暗号のため誤った鍵でも失敗せず、誤りは展開後のCRCで判明します。
func (c *Cascade) Decrypt(data []byte, password string, keys *KeyCache) ([]byte, error) {
	out := append([]byte(nil), data...)
	for i := len(c.Specs) - 1; i >= 0; i-- {
		if err := c.apply(c.Specs[i], out, password, keys); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Encrypt は宣言順に暗号化した新しいスライスを返します
func (c *Cascade) Encrypt(data []byte, password string, keys *KeyCache) ([]byte, error) {
	out := append([]byte(nil), data...)
	for _, spec := range c.Specs {
		if err := c.apply(spec, out, password, keys); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Cascade) apply(spec *EncryptionSpec, buf []byte, password string, keys *KeyCache) error {
	m, err := keys.Derive(spec, password)
	if err != nil {
		return err
	}
	stream, err := NewStream(spec, m.Key)
	if err != nil {
		return err
	}
	stream.XORKeyStream(buf, buf)
	return nil
}

// NewSpec はアーカイブ作成用に乱数のソルトとIVを持つ暗号指定を作成し、
// password に対するチェックコードを設定します。
func NewSpec(alg Algorithm, keyBits int, password string, rand io.Reader) (*EncryptionSpec, error) {
	if err := checkKeyBits(alg, keyBits); err != nil {
		return nil, err
	}
	spec := &EncryptionSpec{
		Algorithm:    alg,
		KeyBits:      keyBits,
		Mode:         CTR,
		Iterations:   DefaultIterations,
		IV:           make([]byte, alg.BlockSize()),
		Salt:         make([]byte, keyBits/8),
		CheckCode:    make([]byte, 2),
		UTF8Password: true,
	}
	if _, err := io.ReadFull(rand, spec.IV); err != nil {
		return nil, fmt.Errorf("IVの生成に失敗しました: %w", err)
	}
	if _, err := io.ReadFull(rand, spec.Salt); err != nil {
		return nil, fmt.Errorf("ソルトの生成に失敗しました: %w", err)
	}
	m, err := Derive(spec, password)
	if err != nil {
		return nil, err
	}
	spec.CheckCode = m.CheckCode
	return spec, nil
}

// Reseed はソルトと鍵を共有したまま各段のIVを乱数で作り直した Cascade を返します。
// 同じ鍵でキーストリームを再利用しないよう、ブロックごとに呼び出します。
func (c *Cascade) Reseed(rand io.Reader) (*Cascade, error) {
	out := &Cascade{Specs: make([]*EncryptionSpec, len(c.Specs))}
	for i, spec := range c.Specs {
		s := *spec
		s.IV = make([]byte, spec.Algorithm.BlockSize())
		if _, err := io.ReadFull(rand, s.IV); err != nil {
			return nil, fmt.Errorf("IVの生成に失敗しました: %w", err)
		}
		out.Specs[i] = &s
	}
	return out, nil
}

// ParseAlgorithm は "aes" や "blowfish-448" のような指定をアルゴリズムと鍵長に変換します
func ParseAlgorithm(s string) (Algorithm, int, error) {
	name, bits, hasBits := strings.Cut(strings.ToLower(s), "-")
	var alg Algorithm
	keyBits := 0
	switch name {
	case "aes":
		alg, keyBits = AES, 256
	case "blowfish":
		alg, keyBits = Blowfish, 448
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedCipher, s)
	}
	if hasBits {
		if _, err := fmt.Sscanf(bits, "%d", &keyBits); err != nil {
			return 0, 0, fmt.Errorf("%w: 鍵長 %q", ErrBadSpec, bits)
		}
	}
	if err := checkKeyBits(alg, keyBits); err != nil {
		return 0, 0, err
	}
	return alg, keyBits, nil
}
