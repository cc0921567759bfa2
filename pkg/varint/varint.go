// Package varint はFreeArcコンテナの可変長整数を扱います。
//
// 先頭バイトの下位ビットに連続する1の個数が後続バイト数(0〜8)を表します。
// 後続バイト数を k とすると、k < 8 の場合は k+1 バイトをリトルエンディアンで読み、
// 下位 k+1 ビットを捨てた値になります。先頭バイトが 0xFF の場合は
// 続く8バイトがそのまま64ビット値です。
//
//	0xxxxxxx                          7ビット
//	xxxxxx01 xxxxxxxx                14ビット
//	xxxxx011 xxxxxxxx xxxxxxxx       21ビット
//	...
//	11111111 + 8バイト               64ビット
package varint

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

// MaxLen は符号化後の最大バイト数です
const MaxLen = 9

// Len は v の符号化後のバイト数を返します
func Len(v uint64) int {
	for k := 0; k < 8; k++ {
		if v < 1<<(7*(k+1)) {
			return k + 1
		}
	}
	return MaxLen
}

// Append は v を符号化して dst に追加します
func Append(dst []byte, v uint64) []byte {
	n := Len(v)
	if n == MaxLen {
		dst = append(dst, 0xFF)
		return binary.LittleEndian.AppendUint64(dst, v)
	}
	x := v<<n | (1<<(n-1) - 1)
	for i := 0; i < n; i++ {
		dst = append(dst, byte(x))
		x >>= 8
	}
	return dst
}

// Encode は v を符号化したバイト列を返します
func Encode(v uint64) []byte {
	return Append(make([]byte, 0, MaxLen), v)
}

// extraBytes は先頭バイトから後続バイト数を求めます
func extraBytes(first byte) int {
	return bits.TrailingZeros8(^first)
}

// Decode は b の先頭から値を1つ読み取り、値と消費したバイト数を返します
func Decode(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: 0バイト", ErrTruncatedInput)
	}
	k := extraBytes(b[0])
	if len(b) < k+1 {
		return 0, 0, fmt.Errorf("%w: %dバイト必要ですが%dバイトしかありません", ErrTruncatedInput, k+1, len(b))
	}
	if k == 8 {
		return binary.LittleEndian.Uint64(b[1:9]), MaxLen, nil
	}
	var x uint64
	for i := k; i >= 0; i-- {
		x = x<<8 | uint64(b[i])
	}
	return x >> (k + 1), k + 1, nil
}

// Read は r から値を1つ読み取ります
func Read(r io.ByteReader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	k := extraBytes(first)
	var buf [MaxLen]byte
	buf[0] = first
	for i := 1; i <= k; i++ {
		if buf[i], err = r.ReadByte(); err != nil {
			return 0, truncated(err)
		}
	}
	v, _, err := Decode(buf[:k+1])
	return v, err
}

// Write は v を符号化して w に書き込みます
func Write(w io.Writer, v uint64) error {
	var buf [MaxLen]byte
	_, err := w.Write(Append(buf[:0], v))
	return err
}

func truncated(err error) error {
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrTruncatedInput, io.ErrUnexpectedEOF)
	}
	return err
}
