// Package codec はメソッド文字列の各ステージを展開・圧縮する実装と、
// 復号からサイズ検証までを順に行う Pipeline を提供します。
//
// 中間ステージの出力サイズはアーカイブに記録されないため、
// どのステージのストリームも自身で終端を判別できる形式です。
package codec

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/method"
)

// Decoder は1ステージ分の逆変換を行います
type Decoder interface {
	// Decode は src を展開します。dstSize が0以上なら展開後のサイズの上限です。
	Decode(src []byte, dstSize int) ([]byte, error)
}

// Encoder は1ステージ分の変換を行います
type Encoder interface {
	Encode(src []byte) ([]byte, error)
}

// Codec は展開と圧縮の両方を持つステージ実装です
type Codec interface {
	Decoder
	Encoder
}

// maxBlockSize は1つのステージストリームが宣言できる元のサイズの上限です
const maxBlockSize = 1 << 31

// New はステージに対応する Codec を返します
func New(st method.Stage) (Codec, error) {
	switch s := st.(type) {
	case method.Store:
		return storeCodec{}, nil
	case method.PPMd:
		return newPPMdCodec(s)
	case method.LZMA:
		return newLZMACodec(s)
	case method.LZMA2:
		return newLZMA2Codec(s)
	case method.LZP:
		return newLZPCodec(s), nil
	case method.Dict:
		return newDictCodec(s), nil
	case method.Delta:
		return deltaCodec{width: s.Width}, nil
	case method.Zstd:
		return zstdCodec{level: s.Level}, nil
	case method.Unknown:
		if s.Legacy {
			return nil, fmt.Errorf("%w: %q は過去の方式で展開できません", ErrUnsupportedMethod, s.Name())
		}
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s.Name())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, st)
}

// checkLimit は展開後のサイズが上限を超えていないかを確認します
func checkLimit(n, dstSize int) error {
	if dstSize >= 0 && n > dstSize {
		return fmt.Errorf("%w: %dバイトを超えています", ErrSizeMismatch, dstSize)
	}
	return nil
}

type storeCodec struct{}

func (storeCodec) Decode(src []byte, dstSize int) ([]byte, error) {
	return src, nil
}

func (storeCodec) Encode(src []byte) ([]byte, error) {
	return src, nil
}
