package method

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

var (
	// ErrEmptyMethod はメソッド文字列やその区切りが空の場合のエラー
	ErrEmptyMethod = fmt.Errorf("%w: メソッド文字列が空です", arcerr.ErrFormat)

	// ErrBadParameter はステージのパラメータが不正な場合のエラー
	ErrBadParameter = fmt.Errorf("%w: ステージのパラメータが不正です", arcerr.ErrFormat)

	// ErrMisplacedCipher は暗号指定の後ろに圧縮ステージがある場合のエラー
	ErrMisplacedCipher = fmt.Errorf("%w: 暗号指定はメソッド文字列の末尾に置く必要があります", arcerr.ErrFormat)
)
