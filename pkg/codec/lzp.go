package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/method"
	"github.com/shiroemons/go-freearc/pkg/varint"
)

// LZP ストリームの構成:
//
//	mode(1) | 元のサイズ(varint) | 本体
//
// mode が modeRaw なら本体は元データそのものです。
// 本体では lzpFlag の次のバイトが0ならフラグ自身のリテラル、
// それ以外は一致長 (255なら次のバイトを加算して継続) を表します。
// 一致位置は直前4バイトのハッシュで引くため、符号化側と同じ表を展開側でも作ります。
const (
	modeRaw    = 0
	modePacked = 1

	lzpFlag    = 0xF2
	lzpContext = 4
)

type lzpCodec struct {
	minLen      int
	hashBits    int
	minCompress int
}

func newLZPCodec(st method.LZP) *lzpCodec {
	return &lzpCodec{minLen: st.MinLen, hashBits: st.HashBits, minCompress: st.MinCompress}
}

func (c *lzpCodec) hash(b []byte, i int) uint32 {
	v := binary.LittleEndian.Uint32(b[i-lzpContext : i])
	return (v * 2654435761) >> (32 - c.hashBits)
}

func (c *lzpCodec) Encode(src []byte) ([]byte, error) {
	table := make([]int32, 1<<c.hashBits)
	body := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		var cand int
		if i >= lzpContext {
			h := c.hash(src, i)
			cand = int(table[h])
			table[h] = int32(i)
		}
		if cand > 0 {
			n := 0
			for i+n < len(src) && src[cand+n] == src[i+n] {
				n++
			}
			if n >= c.minLen {
				body = append(body, lzpFlag)
				body = appendMatchLen(body, n-c.minLen+1)
				i += n
				continue
			}
		}
		body = append(body, src[i])
		if src[i] == lzpFlag {
			body = append(body, 0)
		}
		i++
	}
	return packStream(src, body, c.minCompress), nil
}

// appendMatchLen は1以上の n を 255 で継続する形式で追加します
func appendMatchLen(b []byte, n int) []byte {
	for n >= 255 {
		b = append(b, 255)
		n -= 255
	}
	return append(b, byte(n))
}

func (c *lzpCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	size, body, raw, err := unpackHeader(src, dstSize, "lzp")
	if err != nil || raw {
		return body, err
	}

	table := make([]int32, 1<<c.hashBits)
	out := make([]byte, 0, size)
	pos := 0
	next := func() (byte, bool) {
		if pos >= len(body) {
			return 0, false
		}
		b := body[pos]
		pos++
		return b, true
	}

	for len(out) < size {
		i := len(out)
		var cand int
		if i >= lzpContext {
			h := c.hash(out, i)
			cand = int(table[h])
			table[h] = int32(i)
		}
		b, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: lzp: %dバイト目で入力が尽きました", ErrCorruptStream, i)
		}
		if b != lzpFlag {
			out = append(out, b)
			continue
		}
		x, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: lzp: フラグの後に入力がありません", ErrCorruptStream)
		}
		if x == 0 {
			out = append(out, lzpFlag)
			continue
		}
		n := int(x)
		for x == 255 {
			if x, ok = next(); !ok {
				return nil, fmt.Errorf("%w: lzp: 一致長が途中で終わっています", ErrCorruptStream)
			}
			n += int(x)
		}
		n += c.minLen - 1
		if cand == 0 || len(out)+n > size {
			return nil, fmt.Errorf("%w: lzp: %dバイト目の一致が不正です", ErrCorruptStream, i)
		}
		// 重なりのある一致のため1バイトずつ複写
		for k := range n {
			out = append(out, out[cand+k])
		}
	}
	return out, nil
}

// packStream は本体が元より十分小さくなければ無圧縮で格納します
func packStream(src, body []byte, minCompress int) []byte {
	mode, payload := byte(modePacked), body
	if minCompress > 0 && len(body)*100 > len(src)*minCompress {
		mode, payload = modeRaw, src
	}
	out := make([]byte, 0, 1+varint.MaxLen+len(payload))
	out = append(out, mode)
	out = varint.Append(out, uint64(len(src)))
	return append(out, payload...)
}

// unpackHeader はモードと元のサイズを読み、本体を返します
func unpackHeader(src []byte, dstSize int, name string) (size int, body []byte, raw bool, err error) {
	if len(src) == 0 {
		return 0, nil, false, fmt.Errorf("%w: %s: ヘッダがありません", ErrCorruptStream, name)
	}
	mode := src[0]
	n, k, err := varint.Decode(src[1:])
	if err != nil {
		return 0, nil, false, fmt.Errorf("%w: %s: %w", ErrCorruptStream, name, err)
	}
	if n > uint64(maxBlockSize) {
		return 0, nil, false, fmt.Errorf("%w: %s: サイズ %d", ErrCorruptStream, name, n)
	}
	size = int(n)
	if err := checkLimit(size, dstSize); err != nil {
		return 0, nil, false, err
	}
	body = src[1+k:]
	switch mode {
	case modeRaw:
		if len(body) != size {
			return 0, nil, false, fmt.Errorf("%w: %s: 無圧縮データの長さ %d != %d", ErrCorruptStream, name, len(body), size)
		}
		return size, body, true, nil
	case modePacked:
		return size, body, false, nil
	}
	return 0, nil, false, fmt.Errorf("%w: %s: 不明なモード %d", ErrCorruptStream, name, mode)
}
