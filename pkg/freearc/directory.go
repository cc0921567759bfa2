package freearc

import (
	"encoding/binary"
	"fmt"
	"path"
	"time"

	"github.com/shiroemons/go-freearc/pkg/varint"
)

// tagEnd は任意フィールド列の終端です
const tagEnd = 0

// FileEntry はディレクトリに記録されたファイル1つ分の情報です
type FileEntry struct {
	Name      string
	Dir       string
	DirNumber int
	Size      uint64
	ModTime   time.Time
	IsDir     bool
	CRC       uint32

	// Block は所属するデータブロックの番号、Offset はブロック展開後の先頭位置です
	Block  int
	Offset uint64
}

// Path はディレクトリ名とファイル名を "/" で連結したパスを返します
func (f FileEntry) Path() string {
	if f.Dir == "" {
		return f.Name
	}
	return path.Join(f.Dir, f.Name)
}

// Directory はディレクトリブロックの内容です
type Directory struct {
	// Blocks はデータブロックの記述子です。OrigSize は所属ファイルのサイズの合計です。
	Blocks []Descriptor
	Dirs   []string
	Files  []FileEntry
}

// FilesIn は番号 block のデータブロックに属するエントリを返します
func (d *Directory) FilesIn(block int) []FileEntry {
	var out []FileEntry
	for _, f := range d.Files {
		if f.Block == block {
			out = append(out, f)
		}
	}
	return out
}

// parseDirectory はディレクトリ本体を解析します。dirPos はディレクトリデータの先頭位置です。
func parseDirectory(body []byte, dirPos int64) (*Directory, error) {
	c := &cursor{b: body}
	nblocks := c.count(4)
	perBlock := make([]int, nblocks)
	total := 0
	for i := range perBlock {
		n := c.varint()
		if n > uint64(len(body)) {
			return nil, fmt.Errorf("%w: ブロック%dのファイル数 %d", ErrMalformedDirectory, i, n)
		}
		perBlock[i] = int(n)
		total += int(n)
	}

	d := &Directory{Blocks: make([]Descriptor, nblocks)}
	for i := range d.Blocks {
		d.Blocks[i] = Descriptor{Type: DataBlock, Compressor: c.str()}
	}
	offsets := make([]uint64, nblocks)
	for i := range offsets {
		offsets[i] = c.varint()
	}
	for i := range d.Blocks {
		d.Blocks[i].CompSize = c.varint()
	}

	ndirs := c.count(1)
	d.Dirs = make([]string, ndirs)
	for i := range d.Dirs {
		d.Dirs[i] = c.str()
	}
	if c.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDirectory, c.err)
	}
	if total > len(c.b)/12 {
		return nil, fmt.Errorf("%w: ファイル数 %d が残り %dバイトを超えています", ErrMalformedDirectory, total, len(c.b))
	}

	d.Files = make([]FileEntry, total)
	for i := range d.Files {
		d.Files[i].Name = c.str()
	}
	for i := range d.Files {
		n := c.varint()
		if c.err == nil && n >= uint64(ndirs) {
			return nil, fmt.Errorf("%w: %q のディレクトリ番号 %d (ディレクトリ数 %d)", ErrMalformedDirectory, d.Files[i].Name, n, ndirs)
		}
		d.Files[i].DirNumber = int(n)
	}
	for i := range d.Files {
		d.Files[i].Size = c.varint()
	}
	for i := range d.Files {
		d.Files[i].ModTime = time.Unix(int64(c.u32()), 0)
	}
	for i := range d.Files {
		d.Files[i].IsDir = c.u8() != 0
	}
	for i := range d.Files {
		d.Files[i].CRC = c.u32()
	}
	if c.err == nil && len(c.b) > 0 {
		if tag := c.varint(); tag != tagEnd {
			// 未知の任意フィールドは読み飛ばす
			c.b = nil
		}
	}
	if c.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDirectory, c.err)
	}

	i := 0
	for b, n := range perBlock {
		var off uint64
		for _, f := range d.Files[i : i+n] {
			f.Dir = d.Dirs[f.DirNumber]
			f.Block = b
			f.Offset = off
			if !f.IsDir {
				off += f.Size
			}
			d.Files[i] = f
			i++
		}
		d.Blocks[b].OrigSize = off
		if offsets[b] > uint64(dirPos) || d.Blocks[b].CompSize > offsets[b] {
			return nil, fmt.Errorf("%w: ブロック%dの位置 -%d (サイズ %d) がディレクトリ位置 %d と合いません", ErrMalformedDirectory, b, offsets[b], d.Blocks[b].CompSize, dirPos)
		}
		d.Blocks[b].Pos = dirPos - int64(offsets[b])
	}
	return d, nil
}

// appendDirectory はディレクトリ本体を符号化します。
// Files は Block の昇順に並んでいる必要があります。
func appendDirectory(dst []byte, d *Directory, dirPos int64) []byte {
	perBlock := make([]uint64, len(d.Blocks))
	for _, f := range d.Files {
		perBlock[f.Block]++
	}
	dst = varint.Append(dst, uint64(len(d.Blocks)))
	for _, n := range perBlock {
		dst = varint.Append(dst, n)
	}
	for _, b := range d.Blocks {
		dst = appendString(dst, b.Compressor)
	}
	for _, b := range d.Blocks {
		dst = varint.Append(dst, uint64(dirPos-b.Pos))
	}
	for _, b := range d.Blocks {
		dst = varint.Append(dst, b.CompSize)
	}
	dst = varint.Append(dst, uint64(len(d.Dirs)))
	for _, s := range d.Dirs {
		dst = appendString(dst, s)
	}
	for _, f := range d.Files {
		dst = appendString(dst, f.Name)
	}
	for _, f := range d.Files {
		dst = varint.Append(dst, uint64(f.DirNumber))
	}
	for _, f := range d.Files {
		dst = varint.Append(dst, f.Size)
	}
	for _, f := range d.Files {
		var t uint32
		if !f.ModTime.IsZero() {
			t = uint32(f.ModTime.Unix())
		}
		dst = binary.LittleEndian.AppendUint32(dst, t)
	}
	for _, f := range d.Files {
		if f.IsDir {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	}
	for _, f := range d.Files {
		dst = binary.LittleEndian.AppendUint32(dst, f.CRC)
	}
	return varint.Append(dst, tagEnd)
}
