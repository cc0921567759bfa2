package ppmd

import (
	"errors"
	"fmt"
	"io"
)

// キャリーレス算術符号 (Subbotin方式) の正規化境界
const (
	rcTop = 1 << 24
	rcBot = 1 << 15
)

type rangeDecoder struct {
	r    io.ByteReader
	low  uint32
	code uint32
	rng  uint32
	err  error
}

// init は先頭4バイトを読み込みます
func (rc *rangeDecoder) init(r io.ByteReader) error {
	rc.r = r
	rc.low = 0
	rc.code = 0
	rc.rng = 0xFFFFFFFF
	for range 4 {
		rc.code = rc.code<<8 | rc.next()
	}
	return rc.failure()
}

func (rc *rangeDecoder) next() uint32 {
	if rc.err != nil {
		return 0
	}
	b, err := rc.r.ReadByte()
	if err != nil {
		rc.err = err
		return 0
	}
	return uint32(b)
}

// failure は入力の読み込みで起きたエラーを返します
func (rc *rangeDecoder) failure() error {
	if rc.err == nil {
		return nil
	}
	if errors.Is(rc.err, io.EOF) {
		return ErrTruncatedStream
	}
	return fmt.Errorf("%w: %w", ErrTruncatedStream, rc.err)
}

func (rc *rangeDecoder) threshold(total uint32) uint32 {
	rc.rng /= total
	return (rc.code - rc.low) / rc.rng
}

func (rc *rangeDecoder) decode(start, size uint32) {
	rc.low += start * rc.rng
	rc.rng *= size
	rc.normalize()
}

func (rc *rangeDecoder) decodeBit(size0, total uint32) uint32 {
	if rc.threshold(total) < size0 {
		rc.decode(0, size0)
		return 0
	}
	rc.decode(size0, total-size0)
	return 1
}

func (rc *rangeDecoder) normalize() {
	for {
		if rc.low^(rc.low+rc.rng) >= rcTop {
			if rc.rng >= rcBot {
				return
			}
			rc.rng = -rc.low & (rcBot - 1)
		}
		rc.code = rc.code<<8 | rc.next()
		rc.rng <<= 8
		rc.low <<= 8
	}
}

type rangeEncoder struct {
	w   io.ByteWriter
	low uint32
	rng uint32
	err error
}

func (rc *rangeEncoder) init(w io.ByteWriter) {
	rc.w = w
	rc.low = 0
	rc.rng = 0xFFFFFFFF
}

func (rc *rangeEncoder) put(b byte) {
	if rc.err != nil {
		return
	}
	rc.err = rc.w.WriteByte(b)
}

func (rc *rangeEncoder) encode(start, size, total uint32) {
	rc.rng /= total
	rc.low += start * rc.rng
	rc.rng *= size
	for {
		if rc.low^(rc.low+rc.rng) >= rcTop {
			if rc.rng >= rcBot {
				return
			}
			rc.rng = -rc.low & (rcBot - 1)
		}
		rc.put(byte(rc.low >> 24))
		rc.rng <<= 8
		rc.low <<= 8
	}
}

// flush は low の残り4バイトを書き出します
func (rc *rangeEncoder) flush() error {
	for range 4 {
		rc.put(byte(rc.low >> 24))
		rc.low <<= 8
	}
	return rc.err
}
