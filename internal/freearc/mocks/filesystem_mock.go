// Package mocks はテスト用のモック実装を提供します
package mocks

import (
	"bytes"
	"errors"
	"io"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
)

// MockFileSystem はテスト用のファイルシステムモック。
// 展開ワーカーから同時に呼ばれるためミューテックスで保護します。
type MockFileSystem struct {
	mu    sync.Mutex
	Files map[string][]byte
	Dirs  map[string]bool
	Times map[string]time.Time
	Error error
	// WriteError は書き込み系の操作だけを失敗させます
	WriteError error
}

// NewMockFileSystem は新しいMockFileSystemを作成します
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files: make(map[string][]byte),
		Dirs:  make(map[string]bool),
		Times: make(map[string]time.Time),
	}
}

func key(name string) string {
	return filepath.ToSlash(filepath.Clean(name))
}

// FileExists はファイルが存在するか確認します
func (fs *MockFileSystem) FileExists(filename string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, exists := fs.Files[key(filename)]
	return exists || fs.Dirs[key(filename)]
}

// ReadFile はファイルを読み込みます
func (fs *MockFileSystem) ReadFile(filename string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	data, exists := fs.Files[key(filename)]
	if !exists {
		return nil, errors.New("file not found")
	}
	return data, nil
}

// WriteFile はファイルを書き込みます
func (fs *MockFileSystem) WriteFile(filename string, data []byte, perm uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writeErr(); err != nil {
		return err
	}
	fs.Files[key(filename)] = bytes.Clone(data)
	return nil
}

func (fs *MockFileSystem) writeErr() error {
	if fs.Error != nil {
		return fs.Error
	}
	return fs.WriteError
}

// MkdirAll はディレクトリを作成します
func (fs *MockFileSystem) MkdirAll(p string, perm uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writeErr(); err != nil {
		return err
	}
	for d := key(p); d != "." && d != "/"; d = path.Dir(d) {
		fs.Dirs[d] = true
	}
	return nil
}

// Chtimes は更新日時を記録します
func (fs *MockFileSystem) Chtimes(name string, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writeErr(); err != nil {
		return err
	}
	fs.Times[key(name)] = mtime
	return nil
}

// Create は Close 時に Files へ内容を保存するライターを返します
func (fs *MockFileSystem) Create(name string) (io.WriteCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.writeErr(); err != nil {
		return nil, err
	}
	return &mockFile{fs: fs, name: key(name)}, nil
}

type mockFile struct {
	bytes.Buffer
	fs   *MockFileSystem
	name string
}

func (f *mockFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.Files[f.name] = bytes.Clone(f.Bytes())
	return nil
}

// Stat はファイル情報を取得します
func (fs *MockFileSystem) Stat(name string) (interfaces.FileInfo, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	k := key(name)
	if _, ok := fs.Files[k]; ok {
		return &MockFileInfo{name: path.Base(k), modTime: fs.Times[k]}, nil
	}
	if fs.Dirs[k] {
		return &MockFileInfo{name: path.Base(k), isDir: true, modTime: fs.Times[k]}, nil
	}
	return nil, errors.New("file not found")
}

// ReadDir はディレクトリ直下のエントリを名前順に返します
func (fs *MockFileSystem) ReadDir(dirname string) ([]interfaces.DirEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	dir := key(dirname)
	seen := make(map[string]bool)
	var entries []interfaces.DirEntry
	add := func(p string, isDir bool) {
		rest, ok := strings.CutPrefix(p, dir+"/")
		if dir == "." {
			rest, ok = p, true
		}
		if !ok || rest == "" {
			return
		}
		name, sub, nested := strings.Cut(rest, "/")
		if seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, &MockFileInfo{name: name, isDir: isDir || (nested && sub != "")})
	}
	for p := range fs.Files {
		add(p, false)
	}
	for p := range fs.Dirs {
		add(p, true)
	}
	slices.SortFunc(entries, func(a, b interfaces.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// MockFileInfo はテスト用のファイル情報
type MockFileInfo struct {
	name    string
	isDir   bool
	modTime time.Time
}

// Name はファイル名を返します
func (fi *MockFileInfo) Name() string { return fi.name }

// IsDir はディレクトリかどうかを返します
func (fi *MockFileInfo) IsDir() bool { return fi.isDir }

// ModTime は更新日時を返します
func (fi *MockFileInfo) ModTime() time.Time { return fi.modTime }
