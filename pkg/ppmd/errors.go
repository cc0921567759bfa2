package ppmd

import (
	"errors"
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

var (
	// ErrBadParameter は次数やメモリ量が範囲外の場合のエラー
	ErrBadParameter = fmt.Errorf("%w: PPMdのパラメータが不正です", arcerr.ErrFormat)

	// ErrTruncatedStream は終端記号より前に入力が尽きた場合のエラー
	ErrTruncatedStream = fmt.Errorf("%w: PPMdストリームが途中で終わっています", arcerr.ErrDecompression)

	// ErrDesync は算術符号の値がモデルと矛盾した場合のエラー
	ErrDesync = fmt.Errorf("%w: PPMdストリームが破損しています", arcerr.ErrDecompression)

	// ErrClosed は Close 後に読み書きした場合のエラー
	ErrClosed = errors.New("ppmd: 閉じられています")
)
