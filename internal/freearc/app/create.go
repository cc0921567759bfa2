package app

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/models"
	"github.com/shiroemons/go-freearc/pkg/freearc"
)

// inputFile はアーカイブに追加するファイル1つです
type inputFile struct {
	src     string // ファイルシステム上のパス
	name    string // アーカイブ内のパス
	isDir   bool
	modTime time.Time
}

// collectInputs は Inputs を辿って追加するファイルを列挙します。
// ディレクトリは中身ごと、そのディレクトリ名を先頭にしたパスで追加します。
func (a *App) collectInputs(ctx context.Context) ([]inputFile, error) {
	if len(a.config.Inputs) == 0 {
		return nil, ErrNoInputs
	}
	self := filepath.Clean(a.config.ArchivePath)

	var files []inputFile
	var walk func(src, name string) error
	walk = func(src, name string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if filepath.Clean(src) == self {
			return nil
		}
		st, err := a.fs.Stat(src)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReadFile, src, err)
		}
		files = append(files, inputFile{src: src, name: name, isDir: st.IsDir(), modTime: st.ModTime()})
		if !st.IsDir() {
			return nil
		}
		entries, err := a.fs.ReadDir(src)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrReadFile, src, err)
		}
		for _, e := range entries {
			if err := walk(filepath.Join(src, e.Name()), path.Join(name, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	for _, in := range a.config.Inputs {
		base := filepath.Base(filepath.Clean(in))
		if err := walk(in, filepath.ToSlash(base)); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Create は Inputs からアーカイブを作成します
func (a *App) Create(ctx context.Context) (sum *models.Summary, err error) {
	start := time.Now()
	inputs, err := a.collectInputs(ctx)
	if err != nil {
		return nil, err
	}
	solid, err := a.config.SolidBytes()
	if err != nil {
		return nil, err
	}

	out, err := a.fs.Create(a.config.ArchivePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w, err := freearc.NewWriter(out, freearc.WriterOptions{
		Method:         a.config.Method,
		Password:       a.config.Password,
		Cipher:         a.config.Cipher,
		EncryptHeaders: a.config.EncryptHeaders,
		SolidBytes:     solid,
		Comment:        a.config.Comment,
		Logger:         a.logger.Slog(),
	})
	if err != nil {
		return nil, err
	}

	sum = &models.Summary{Encrypted: a.config.Password != ""}
	for _, in := range inputs {
		// コンテキストのキャンセルチェック
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		if in.isDir {
			if err := w.Mkdir(in.name, in.modTime); err != nil {
				return sum, err
			}
			sum.Add(models.FileResult{Path: in.name, IsDir: true})
			continue
		}
		data, err := a.fs.ReadFile(in.src)
		if err != nil {
			return sum, fmt.Errorf("%w: %s: %w", ErrReadFile, in.src, err)
		}
		if err := w.Add(in.name, data, in.modTime); err != nil {
			return sum, err
		}
		a.logger.Printf("追加: %s\n", in.name)
		sum.Add(models.FileResult{Path: in.name, Size: uint64(len(data))})
	}
	if err := w.Close(); err != nil {
		return sum, err
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}
