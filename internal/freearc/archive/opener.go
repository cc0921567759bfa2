// Package archive はfreearcコマンドからアーカイブを開くためのアダプタを提供します
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/shiroemons/go-freearc/internal/freearc/config"
	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
	"github.com/shiroemons/go-freearc/pkg/crypto"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

// DefaultBlockCache は展開済みブロックを保持する数の既定値です
const DefaultBlockCache = 4

// Opener は *freearc.Archive を開く ArchiveOpener の実装です
type Opener struct {
	logger     *config.DebugLogger
	keys       *crypto.KeyCache
	blockCache int
}

// NewOpener は新しいOpenerを作成します。
// 鍵キャッシュは Opener で開くすべてのアーカイブで共有します。
func NewOpener(logger *config.DebugLogger) (*Opener, error) {
	keys, err := crypto.NewKeyCache(0)
	if err != nil {
		return nil, err
	}
	return &Opener{logger: logger, keys: keys, blockCache: DefaultBlockCache}, nil
}

// Open はアーカイブを開きます。署名が見つからず先頭もFreeArcの署名でない場合は
// ferrors.ErrNotFreeArc をラップしたエラーを返します。
func (o *Opener) Open(filename, password string) (interfaces.Archive, error) {
	o.logger.Printf("アーカイブ %s を開きます\n", filename)
	a, err := freearc.OpenFile(filename,
		freearc.WithPassword(password),
		freearc.WithKeyCache(o.keys),
		freearc.WithBlockCache(o.blockCache),
		freearc.WithLogger(o.logger.Slog()),
	)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, freearc.ErrBadSignature) {
		if ok, _ := detectFile(filename); !ok {
			err = fmt.Errorf("%w: %w", ferrors.ErrNotFreeArc, err)
		}
	}
	return nil, ferrors.NewArchiveError("開く", filename, err)
}

// Detect は r の先頭がFreeArcの署名かどうかを返します。
// SFX形式のように先頭に別のデータがあるアーカイブは false になります。
func Detect(r io.Reader) (bool, error) {
	head := make([]byte, len(freearc.Signature))
	if _, err := io.ReadFull(r, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(head, []byte(freearc.Signature)), nil
}

func detectFile(filename string) (bool, error) {
	f, err := os.Open(filename)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return Detect(f)
}
