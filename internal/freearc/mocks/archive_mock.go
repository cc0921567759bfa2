package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

// MockArchive はテスト用のアーカイブモック
type MockArchive struct {
	mu sync.Mutex

	Dir       *freearc.Directory
	Data      map[int][]freearc.FileData
	BlockErrs map[int]error
	Failures  []freearc.BlockFailure
	InfoValue freearc.Info
	DirErr    error
	VerifyErr error

	Reads  map[int]int
	Closed bool
}

// NewMockArchive は新しいMockArchiveを作成します
func NewMockArchive(dir *freearc.Directory) *MockArchive {
	return &MockArchive{
		Dir:       dir,
		Data:      make(map[int][]freearc.FileData),
		BlockErrs: make(map[int]error),
		Reads:     make(map[int]int),
	}
}

// Directory はディレクトリを返します
func (m *MockArchive) Directory() (*freearc.Directory, error) {
	if m.DirErr != nil {
		return nil, m.DirErr
	}
	return m.Dir, nil
}

// ReadBlock は Data に登録したファイルを返します。
// Data に登録がない場合は Dir のファイルを中身なしで返します。
func (m *MockArchive) ReadBlock(i int) ([]freearc.FileData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads[i]++
	if err := m.BlockErrs[i]; err != nil {
		return nil, err
	}
	if data, ok := m.Data[i]; ok {
		return data, nil
	}
	var out []freearc.FileData
	for _, f := range m.Dir.FilesIn(i) {
		out = append(out, freearc.FileData{Entry: f})
	}
	return out, nil
}

// Verify は Failures を返します
func (m *MockArchive) Verify(ctx context.Context, workers int) ([]freearc.BlockFailure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Failures, m.VerifyErr
}

// Info は InfoValue を返します
func (m *MockArchive) Info() (freearc.Info, error) {
	return m.InfoValue, nil
}

// Close は閉じたことを記録します
func (m *MockArchive) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// ReadCount はブロック i を読んだ回数を返します
func (m *MockArchive) ReadCount(i int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Reads[i]
}

// MockOpener はテスト用のOpenerモック
type MockOpener struct {
	Archive  interfaces.Archive
	Error    error
	Opened   []string
	Password string
}

// Open は Archive を返します
func (o *MockOpener) Open(filename, password string) (interfaces.Archive, error) {
	o.Opened = append(o.Opened, filename)
	o.Password = password
	if o.Error != nil {
		return nil, o.Error
	}
	if o.Archive == nil {
		return nil, errors.New("archive not set")
	}
	return o.Archive, nil
}
