package codec

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/method"
	"github.com/shiroemons/go-freearc/pkg/ppmd"
)

type ppmdCodec struct {
	order   int
	memSize int
}

func newPPMdCodec(st method.PPMd) (Codec, error) {
	if st.MemSize > ppmd.MaxMemSize {
		return nil, fmt.Errorf("%w: ppmd メモリ量 %d", ErrUnsupportedMethod, st.MemSize)
	}
	return &ppmdCodec{order: st.Order, memSize: int(st.MemSize)}, nil
}

// Decode は dstSize が分かっていればそのバイト数で止め、終端記号は読みません
func (c *ppmdCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	out, err := ppmd.Decode(src, c.order, c.memSize, dstSize)
	if err != nil {
		return nil, fmt.Errorf("%w: ppmd: %w", ErrCorruptStream, err)
	}
	return out, nil
}

func (c *ppmdCodec) Encode(src []byte) ([]byte, error) {
	return ppmd.Encode(src, c.order, c.memSize)
}
