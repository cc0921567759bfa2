package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/shiroemons/go-freearc/pkg/method"
)

const (
	// lzmaHeaderSize は .lzma 形式のヘッダ長です (props 1 + 辞書 4 + サイズ 8)
	lzmaHeaderSize = 13
	maxDictSize    = 1<<32 - 1
)

type lzmaCodec struct {
	props    lzma.Properties
	dictSize int
}

func newLZMACodec(st method.LZMA) (Codec, error) {
	if st.LC > 8 || st.LP > 4 || st.PB > 4 {
		return nil, fmt.Errorf("%w: lzma lc=%d lp=%d pb=%d", ErrUnsupportedMethod, st.LC, st.LP, st.PB)
	}
	return &lzmaCodec{
		props:    lzma.Properties{LC: st.LC, LP: st.LP, PB: st.PB},
		dictSize: clampDict(st.DictSize),
	}, nil
}

func clampDict(n uint64) int {
	switch {
	case n < lzma.MinDictCap:
		return lzma.MinDictCap
	case n > maxDictSize:
		return maxDictSize
	}
	return int(n)
}

// header はステージのパラメータから .lzma ヘッダを組み立てます。
// dstSize が負の場合は未圧縮サイズ不明 (終端マーカー必須) とします。
// サイズが分かっていれば終端マーカーの有無はどちらでも読めます。
func (c *lzmaCodec) header(dstSize int) []byte {
	h := make([]byte, lzmaHeaderSize)
	h[0] = byte((c.props.PB*5+c.props.LP)*9 + c.props.LC)
	binary.LittleEndian.PutUint32(h[1:5], uint32(c.dictSize))
	size := ^uint64(0)
	if dstSize >= 0 {
		size = uint64(dstSize)
	}
	binary.LittleEndian.PutUint64(h[5:], size)
	return h
}

func (c *lzmaCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	if dstSize == 0 {
		// 空のブロックは範囲符号の初期化バイトだけで終端マーカーを持たないことがある
		return []byte{}, nil
	}
	r, err := lzma.NewReader(io.MultiReader(bytes.NewReader(c.header(dstSize)), bytes.NewReader(src)))
	if err != nil {
		return nil, fmt.Errorf("%w: lzma: %w", ErrCorruptStream, err)
	}
	return readAllLimited(r, dstSize, "lzma")
}

func (c *lzmaCodec) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	cfg := lzma.WriterConfig{
		Properties: &c.props,
		DictCap:    c.dictSize,
		EOSMarker:  true,
	}
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma: %w", err)
	}
	// ヘッダはステージのパラメータから復元できるので保存しない
	return buf.Bytes()[lzmaHeaderSize:], nil
}

type lzma2Codec struct {
	dictSize int
}

func newLZMA2Codec(st method.LZMA2) (Codec, error) {
	return &lzma2Codec{dictSize: clampDict(st.DictSize)}, nil
}

func (c *lzma2Codec) Decode(src []byte, dstSize int) ([]byte, error) {
	cfg := lzma.Reader2Config{DictCap: c.dictSize}
	r, err := cfg.NewReader2(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: lzma2: %w", ErrCorruptStream, err)
	}
	return readAllLimited(r, dstSize, "lzma2")
}

func (c *lzma2Codec) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	cfg := lzma.Writer2Config{DictCap: c.dictSize}
	w, err := cfg.NewWriter2(&buf)
	if err != nil {
		return nil, fmt.Errorf("lzma2: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("lzma2: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma2: %w", err)
	}
	return buf.Bytes(), nil
}

// readAllLimited は r を最後まで読みます。dstSize を超えた時点でエラーにします。
func readAllLimited(r io.Reader, dstSize int, name string) ([]byte, error) {
	if dstSize >= 0 {
		r = io.LimitReader(r, int64(dstSize)+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStream, name, err)
	}
	if err := checkLimit(len(out), dstSize); err != nil {
		return nil, err
	}
	return out, nil
}
