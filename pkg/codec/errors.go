package codec

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

var (
	// ErrUnsupportedMethod は展開できないステージの場合のエラー
	ErrUnsupportedMethod = fmt.Errorf("%w: 圧縮方式", arcerr.ErrUnsupportedMethod)

	// ErrCorruptStream はステージのデータが壊れている場合のエラー
	ErrCorruptStream = fmt.Errorf("%w: 圧縮データが壊れています", arcerr.ErrDecompression)

	// ErrSizeMismatch は展開後のサイズが記録と一致しない場合のエラー
	ErrSizeMismatch = fmt.Errorf("%w: 展開後のサイズが一致しません", arcerr.ErrIntegrity)
)
