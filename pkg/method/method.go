// Package method はFreeArcのメソッド文字列を解析します。
//
// メソッド文字列は "stage1+stage2+...+stageN[+cipher]" の形式で、
// 各ステージは "name:param1:param2" です。
//
//	chain, err := method.Parse("lzp:12kb:92%:145:h14:d1mb+ppmd:16:384mb+blowfish-448/ctr:...")
//	for _, st := range chain.Reverse() {
//	    // 最後に適用されたステージから順に元に戻す
//	}
package method

import (
	"strings"

	"github.com/shiroemons/go-freearc/pkg/crypto"
)

// Chain は圧縮ステージの列と末尾の暗号指定です。作成後は変更しません。
type Chain struct {
	Stages []Stage
	Cipher *crypto.Cascade
}

// Parse はメソッド文字列を Chain に変換します。
// 未知のステージ名は Unknown として保持され、展開時にエラーになります。
func Parse(s string) (*Chain, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyMethod
	}

	chain := &Chain{}
	var cipherSegs []string
	for _, seg := range strings.Split(s, "+") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, ErrEmptyMethod
		}
		if crypto.IsCipherSegment(seg) {
			cipherSegs = append(cipherSegs, seg)
			continue
		}
		if len(cipherSegs) > 0 {
			return nil, ErrMisplacedCipher
		}
		st, err := ParseStage(seg)
		if err != nil {
			return nil, err
		}
		chain.Stages = append(chain.Stages, st)
	}

	if len(cipherSegs) > 0 {
		c, err := crypto.ParseCascade(cipherSegs)
		if err != nil {
			return nil, err
		}
		chain.Cipher = c
	}
	return chain, nil
}

// MustParse は Parse に失敗した場合 panic します。固定のメソッド文字列用です。
func MustParse(s string) *Chain {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Encrypted は暗号ステージを持つかどうかを返します
func (c *Chain) Encrypted() bool {
	return c.Cipher != nil && len(c.Cipher.Specs) > 0
}

// Reverse は展開時の順序 (宣言の逆順) でステージを返します
func (c *Chain) Reverse() []Stage {
	out := make([]Stage, len(c.Stages))
	for i, st := range c.Stages {
		out[len(c.Stages)-1-i] = st
	}
	return out
}

// Compressor は暗号指定を除いたメソッド文字列を返します
func (c *Chain) Compressor() string {
	parts := make([]string, len(c.Stages))
	for i, st := range c.Stages {
		parts[i] = st.String()
	}
	return strings.Join(parts, "+")
}

// String はメソッド文字列を返します
func (c *Chain) String() string {
	s := c.Compressor()
	if c.Encrypted() {
		if s != "" {
			s += "+"
		}
		s += c.Cipher.String()
	}
	return s
}

// WithCipher は暗号指定を付け替えた新しい Chain を返します
func (c *Chain) WithCipher(cipher *crypto.Cascade) *Chain {
	return &Chain{Stages: c.Stages, Cipher: cipher}
}

// SplitCipher はメソッド文字列を圧縮部分と暗号部分に分けます
func SplitCipher(s string) (compressor, cipher string) {
	segs := strings.Split(s, "+")
	for i, seg := range segs {
		if crypto.IsCipherSegment(seg) {
			return strings.Join(segs[:i], "+"), strings.Join(segs[i:], "+")
		}
	}
	return s, ""
}
