package crypto

import (
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

var (
	// ErrUnsupportedCipher は未対応の暗号アルゴリズムの場合のエラー
	ErrUnsupportedCipher = fmt.Errorf("%w: 暗号アルゴリズム", arcerr.ErrUnsupportedMethod)

	// ErrUnsupportedMode はCTR以外の暗号モードの場合のエラー
	ErrUnsupportedMode = fmt.Errorf("%w: 暗号モード", arcerr.ErrUnsupportedMethod)

	// ErrBadSpec は暗号指定の書式が不正な場合のエラー
	ErrBadSpec = fmt.Errorf("%w: 暗号指定の書式が不正です", arcerr.ErrCrypto)

	// ErrBadKeyLength は鍵長が不正な場合のエラー
	ErrBadKeyLength = fmt.Errorf("%w: 鍵長が不正です", arcerr.ErrCrypto)

	// ErrBadIVLength はIV長がブロック長と一致しない場合のエラー
	ErrBadIVLength = fmt.Errorf("%w: IV長が不正です", arcerr.ErrCrypto)

	// ErrPasswordMismatch はチェックコードが一致しない場合のエラー
	ErrPasswordMismatch = fmt.Errorf("%w: パスワードが違います", arcerr.ErrCrypto)

	// ErrPasswordRequired は暗号化ブロックにパスワードが指定されていない場合のエラー
	ErrPasswordRequired = fmt.Errorf("%w: パスワードが必要です", arcerr.ErrCrypto)

	// ErrPasswordEncoding はパスワードをLatin-1で表現できない場合のエラー
	ErrPasswordEncoding = fmt.Errorf("%w: パスワードをLatin-1に変換できません", arcerr.ErrCrypto)
)
