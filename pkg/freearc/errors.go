package freearc

import (
	"errors"
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

var (
	// ErrBadSignature は末尾からフッタの署名が見つからない場合のエラー
	ErrBadSignature = fmt.Errorf("%w: FreeArcの署名が見つかりません", arcerr.ErrFormat)

	// ErrMalformedDescriptor はブロック記述子が壊れている場合のエラー
	ErrMalformedDescriptor = fmt.Errorf("%w: ブロック記述子が不正です", arcerr.ErrFormat)

	// ErrMalformedFooter はフッタブロックの内容が不正な場合のエラー
	ErrMalformedFooter = fmt.Errorf("%w: フッタブロックが不正です", arcerr.ErrFormat)

	// ErrMalformedDirectory はディレクトリブロックの内容が不正な場合のエラー
	ErrMalformedDirectory = fmt.Errorf("%w: ディレクトリブロックが不正です", arcerr.ErrFormat)

	// ErrTruncatedArchive はブロックがファイル末尾を越えている場合のエラー
	ErrTruncatedArchive = fmt.Errorf("%w: アーカイブが途中で切れています", arcerr.ErrFormat)

	// ErrNoDirectory はフッタにディレクトリブロックがない場合のエラー
	ErrNoDirectory = fmt.Errorf("%w: ディレクトリブロックがありません", arcerr.ErrFormat)

	// ErrCRCMismatch は展開後のCRC32が一致しない場合のエラー
	ErrCRCMismatch = fmt.Errorf("%w: CRCが一致しません", arcerr.ErrIntegrity)

	// ErrSizeMismatch は展開後のサイズが一致しない場合のエラー
	ErrSizeMismatch = fmt.Errorf("%w: サイズが一致しません", arcerr.ErrIntegrity)

	// ErrWriterClosed は Close 後に Writer を使った場合のエラー
	ErrWriterClosed = errors.New("freearc: Writer は閉じられています")

	// ErrInvalidName は追加するファイル名が空またはアーカイブ外を指す場合のエラー
	ErrInvalidName = errors.New("freearc: 不正なファイル名です")
)
