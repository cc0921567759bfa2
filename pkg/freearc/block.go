package freearc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strconv"

	"github.com/shiroemons/go-freearc/pkg/varint"
)

// Signature はアーカイブ先頭と各記述子の先頭に置かれる署名です
const Signature = "ArC\x01"

// ScanMax はフッタ記述子を探すためにファイル末尾から読むバイト数です
const ScanMax = 4096

// BlockType はブロックの種類です
type BlockType uint64

const (
	DescriptorBlock BlockType = iota
	HeaderBlock
	DataBlock
	DirectoryBlock
	FooterBlock
	RecoveryBlock
)

var blockTypeNames = [...]string{"descriptor", "header", "data", "directory", "footer", "recovery"}

// String はブロック種別名を返します
func (t BlockType) String() string {
	if int(t) < len(blockTypeNames) {
		return blockTypeNames[t]
	}
	return "BlockType(" + strconv.FormatUint(uint64(t), 10) + ")"
}

// Descriptor はブロック1つ分の記述子です。Pos はデータ先頭の絶対位置です。
// データブロックは記述子を持たず、ディレクトリから組み立てられます。その場合 CRC は使いません。
type Descriptor struct {
	Type       BlockType
	Compressor string
	OrigSize   uint64
	CompSize   uint64
	CRC        uint32
	Pos        int64
}

// End はデータ末尾の絶対位置を返します
func (d Descriptor) End() int64 {
	return d.Pos + int64(d.CompSize)
}

// appendDescriptor はローカル記述子を符号化して dst に追加します。
// 末尾に記述子自身のCRC32を付けます。
func appendDescriptor(dst []byte, d Descriptor) []byte {
	start := len(dst)
	dst = append(dst, Signature...)
	dst = varint.Append(dst, uint64(d.Type))
	dst = appendString(dst, d.Compressor)
	dst = varint.Append(dst, d.OrigSize)
	dst = varint.Append(dst, d.CompSize)
	dst = binary.LittleEndian.AppendUint32(dst, d.CRC)
	return binary.LittleEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}

// parseDescriptor は b の先頭の記述子を読み取り、消費したバイト数を返します
func parseDescriptor(b []byte) (Descriptor, int, error) {
	if !bytes.HasPrefix(b, []byte(Signature)) {
		return Descriptor{}, 0, ErrBadSignature
	}
	c := &cursor{b: b[len(Signature):]}
	d := Descriptor{
		Type:       BlockType(c.varint()),
		Compressor: c.str(),
		OrigSize:   c.varint(),
		CompSize:   c.varint(),
		CRC:        c.u32(),
	}
	body := len(b) - len(c.b)
	stored := c.u32()
	if c.err != nil {
		return Descriptor{}, 0, fmt.Errorf("%w: %w", ErrMalformedDescriptor, c.err)
	}
	if sum := crc32.ChecksumIEEE(b[:body]); sum != stored {
		return Descriptor{}, 0, fmt.Errorf("%w: 記述子のCRC %08x (期待値 %08x)", ErrMalformedDescriptor, sum, stored)
	}
	return d, body + 4, nil
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

// cursor はブロック本体を前から読むための読み取り位置です。
// 最初のエラー以降の読み取りはゼロ値を返し、err に最初のエラーを残します。
type cursor struct {
	b   []byte
	err error
}

func (c *cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
	c.b = nil
}

func (c *cursor) varint() uint64 {
	if c.err != nil {
		return 0
	}
	v, n, err := varint.Decode(c.b)
	if err != nil {
		c.fail(err)
		return 0
	}
	c.b = c.b[n:]
	return v
}

func (c *cursor) str() string {
	if c.err != nil {
		return ""
	}
	i := bytes.IndexByte(c.b, 0)
	if i < 0 {
		c.fail(fmt.Errorf("文字列の終端がありません: %w", io.ErrUnexpectedEOF))
		return ""
	}
	s := string(c.b[:i])
	c.b = c.b[i+1:]
	return s
}

func (c *cursor) u32() uint32 {
	if c.err != nil {
		return 0
	}
	if len(c.b) < 4 {
		c.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := binary.LittleEndian.Uint32(c.b)
	c.b = c.b[4:]
	return v
}

func (c *cursor) u8() byte {
	if c.err != nil {
		return 0
	}
	if len(c.b) == 0 {
		c.fail(io.ErrUnexpectedEOF)
		return 0
	}
	v := c.b[0]
	c.b = c.b[1:]
	return v
}

// count は要素数を読み取ります。1要素に最低 minBytes バイト必要なため、残りより多い値は不正です。
func (c *cursor) count(minBytes int) int {
	n := c.varint()
	if c.err != nil {
		return 0
	}
	if n > uint64(len(c.b)/minBytes) {
		c.fail(fmt.Errorf("要素数 %d が残り %dバイトを超えています", n, len(c.b)))
		return 0
	}
	return int(n)
}
