package varint

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

// ErrTruncatedInput は後続バイトが足りない場合のエラー
var ErrTruncatedInput = fmt.Errorf("%w: 可変長整数が途中で終わっています", arcerr.ErrFormat)
