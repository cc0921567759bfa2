package freearc

import (
	"encoding/binary"
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/varint"
)

// Footer はアーカイブ末尾のフッタブロックです
type Footer struct {
	// Blocks は制御ブロック (ディレクトリなど) の記述子です
	Blocks  []Descriptor
	Locked  bool
	Comment string
}

// Directory は最初のディレクトリブロックの記述子を返します
func (f *Footer) Directory() (Descriptor, bool) {
	for _, b := range f.Blocks {
		if b.Type == DirectoryBlock {
			return b, true
		}
	}
	return Descriptor{}, false
}

// parseFooter はフッタ本体を解析します。各エントリの位置は descPos から引いた値です。
func parseFooter(body []byte, descPos int64) (*Footer, error) {
	c := &cursor{b: body}
	n := c.count(9)
	f := &Footer{Blocks: make([]Descriptor, 0, n)}
	for range n {
		d := Descriptor{Type: BlockType(c.varint()), Compressor: c.str()}
		offset := c.varint()
		d.OrigSize = c.varint()
		d.CompSize = c.varint()
		d.CRC = c.u32()
		if c.err != nil {
			break
		}
		if offset > uint64(descPos) || d.CompSize > offset {
			return nil, fmt.Errorf("%w: %sブロックの位置 -%d (サイズ %d) がフッタ位置 %d と合いません", ErrMalformedFooter, d.Type, offset, d.CompSize, descPos)
		}
		d.Pos = descPos - int64(offset)
		f.Blocks = append(f.Blocks, d)
	}
	locked := c.varint()
	f.Comment = c.str()
	if c.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFooter, c.err)
	}
	f.Locked = locked != 0
	return f, nil
}

// appendFooter はフッタ本体を符号化します
func appendFooter(dst []byte, f *Footer, descPos int64) []byte {
	dst = varint.Append(dst, uint64(len(f.Blocks)))
	for _, d := range f.Blocks {
		dst = varint.Append(dst, uint64(d.Type))
		dst = appendString(dst, d.Compressor)
		dst = varint.Append(dst, uint64(descPos-d.Pos))
		dst = varint.Append(dst, d.OrigSize)
		dst = varint.Append(dst, d.CompSize)
		dst = binary.LittleEndian.AppendUint32(dst, d.CRC)
	}
	locked := uint64(0)
	if f.Locked {
		locked = 1
	}
	dst = varint.Append(dst, locked)
	return appendString(dst, f.Comment)
}
