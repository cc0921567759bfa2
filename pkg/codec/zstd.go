package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMaxMemory は展開後サイズが不明なときの上限です
const zstdMaxMemory = 1 << 31

type zstdCodec struct {
	level int
}

func (c zstdCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	limit := uint64(zstdMaxMemory)
	if dstSize >= 0 {
		limit = uint64(max(dstSize, 1))
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(limit))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptStream, err)
	}
	if err := checkLimit(len(out), dstSize); err != nil {
		return nil, err
	}
	return out, nil
}

func (c zstdCodec) Encode(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(src, nil), nil
}
