package fileutil

import (
	"io"
	"os"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
)

// OSFileSystem は実際のOSファイルシステムを使用する実装
type OSFileSystem struct{}

// NewOSFileSystem は新しいOSFileSystemを作成します
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// FileExists はファイルが存在するか確認します
func (fs *OSFileSystem) FileExists(filename string) bool {
	_, err := os.Lstat(filename)
	return err == nil
}

// ReadFile はファイルを読み込みます
func (fs *OSFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// WriteFile はファイルを書き込みます
func (fs *OSFileSystem) WriteFile(filename string, data []byte, perm uint32) error {
	return os.WriteFile(filename, data, os.FileMode(perm))
}

// MkdirAll はディレクトリを作成します
func (fs *OSFileSystem) MkdirAll(path string, perm uint32) error {
	return os.MkdirAll(path, os.FileMode(perm))
}

// Chtimes は更新日時を設定します
func (fs *OSFileSystem) Chtimes(name string, mtime time.Time) error {
	return os.Chtimes(name, mtime, mtime)
}

// Create はファイルを作成します
func (fs *OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// Stat はファイル情報を取得します
func (fs *OSFileSystem) Stat(name string) (interfaces.FileInfo, error) {
	return os.Stat(name)
}

// ReadDir はディレクトリを読み込みます
func (fs *OSFileSystem) ReadDir(dirname string) ([]interfaces.DirEntry, error) {
	entries, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}

	result := make([]interfaces.DirEntry, len(entries))
	for i, entry := range entries {
		result[i] = entry
	}
	return result, nil
}
