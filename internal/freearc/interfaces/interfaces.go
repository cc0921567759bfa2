// Package interfaces はfreearcコマンドで使用するインターフェースを定義します
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/shiroemons/go-freearc/pkg/freearc"
)

// FileSystem はファイルシステム操作のインターフェース
type FileSystem interface {
	FileExists(filename string) bool
	ReadFile(filename string) ([]byte, error)
	WriteFile(filename string, data []byte, perm uint32) error
	MkdirAll(path string, perm uint32) error
	Chtimes(name string, mtime time.Time) error
	Create(name string) (io.WriteCloser, error)
	Stat(name string) (FileInfo, error)
	ReadDir(dirname string) ([]DirEntry, error)
}

// FileInfo はファイル情報のインターフェース
type FileInfo interface {
	Name() string
	IsDir() bool
	ModTime() time.Time
}

// DirEntry はディレクトリエントリのインターフェース
type DirEntry interface {
	Name() string
	IsDir() bool
}

// Archive は開いたアーカイブの読み出しインターフェースです。
// *freearc.Archive が実装します。
type Archive interface {
	Directory() (*freearc.Directory, error)
	ReadBlock(i int) ([]freearc.FileData, error)
	Verify(ctx context.Context, workers int) ([]freearc.BlockFailure, error)
	Info() (freearc.Info, error)
	Close() error
}

// ArchiveOpener はアーカイブを開くためのインターフェース
type ArchiveOpener interface {
	Open(filename, password string) (Archive, error)
}

// Logger はログ出力のインターフェース
type Logger interface {
	Printf(format string, a ...any)
}
