package crypto

import "crypto/cipher"

// ctrLE はブロック全体をリトルエンディアンの整数とみなすカウンタのCTRモードです。
// 標準の cipher.NewCTR はビッグエンディアンで加算するため使えません。
type ctrLE struct {
	block   cipher.Block
	counter []byte
	ks      []byte
	used    int
}

// newCTRLE は iv を初期カウンタとする cipher.Stream を作成します。
// iv の長さはブロック長と一致している必要があります。
func newCTRLE(block cipher.Block, iv []byte) cipher.Stream {
	bs := block.BlockSize()
	return &ctrLE{
		block:   block,
		counter: append([]byte(nil), iv...),
		ks:      make([]byte, bs),
		used:    bs,
	}
}

// XORKeyStream はキーストリームを src に XOR して dst に書き込みます
func (c *ctrLE) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("crypto: 出力バッファが入力より短い")
	}
	for len(src) > 0 {
		if c.used == len(c.ks) {
			c.refill()
		}
		n := XOR(dst, src, c.ks[c.used:])
		c.used += n
		dst = dst[n:]
		src = src[n:]
	}
}

func (c *ctrLE) refill() {
	c.block.Encrypt(c.ks, c.counter)
	for i := range c.counter {
		c.counter[i]++
		if c.counter[i] != 0 {
			break
		}
	}
	c.used = 0
}
