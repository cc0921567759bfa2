// Package app はアプリケーションのメインロジックを実装します
package app

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/shiroemons/go-freearc/internal/freearc/archive"
	"github.com/shiroemons/go-freearc/internal/freearc/config"
	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/fileutil"
	"github.com/shiroemons/go-freearc/internal/freearc/interfaces"
	"github.com/shiroemons/go-freearc/internal/freearc/models"
	"github.com/shiroemons/go-freearc/pkg/freearc"
	"github.com/shiroemons/go-freearc/pkg/method"
)

// App はアプリケーションのメインロジックを管理します
type App struct {
	config *config.Config
	logger *config.DebugLogger
	opener interfaces.ArchiveOpener
	fs     interfaces.FileSystem
	out    io.Writer
}

// Options はAppの設定オプション
type Options struct {
	FileSystem interfaces.FileSystem
	Opener     interfaces.ArchiveOpener
	Logger     *config.DebugLogger
	Stdout     io.Writer
}

// New は新しいAppを作成します
func New(cfg *config.Config) (*App, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions は新しいAppをオプション付きで作成します
func NewWithOptions(cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.NewDebugLogger(cfg.DebugMode)
	}

	// デフォルトのファイルシステムを設定
	fs := opts.FileSystem
	if fs == nil {
		fs = fileutil.NewOSFileSystem()
	}

	// デフォルトのOpenerを設定
	var opener interfaces.ArchiveOpener
	if opts.Opener != nil {
		opener = opts.Opener
	} else {
		o, err := archive.NewOpener(logger)
		if err != nil {
			return nil, err
		}
		opener = o
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	return &App{
		config: cfg,
		logger: logger,
		opener: opener,
		fs:     fs,
		out:    out,
	}, nil
}

// open はアーカイブを開き、ディレクトリと概要を読み込みます
func (a *App) open(ctx context.Context) (interfaces.Archive, *freearc.Directory, freearc.Info, error) {
	// コンテキストのキャンセルチェック
	select {
	case <-ctx.Done():
		return nil, nil, freearc.Info{}, ctx.Err()
	default:
	}

	arc, err := a.opener.Open(a.config.ArchivePath, a.config.Password)
	if err != nil {
		return nil, nil, freearc.Info{}, err
	}
	dir, err := arc.Directory()
	if err != nil {
		arc.Close()
		return nil, nil, freearc.Info{}, ferrors.NewArchiveError("ディレクトリの読み込み", a.config.ArchivePath, err)
	}
	info, err := arc.Info()
	if err != nil {
		arc.Close()
		return nil, nil, freearc.Info{}, ferrors.NewArchiveError("ディレクトリの読み込み", a.config.ArchivePath, err)
	}
	return arc, dir, info, nil
}

// patterns はコマンドラインとリストファイルの展開対象を合わせて返します
func (a *App) patterns() ([]string, error) {
	patterns := slices.Clone(a.config.Files)
	if a.config.ListFile != "" {
		names, err := fileutil.ReadListFile(a.fs, a.config.ListFile)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, names...)
	}
	return patterns, nil
}

// blockJob は1つのデータブロックから展開するファイルの集合です
type blockJob struct {
	block int
	files []freearc.FileEntry
}

// selectFiles は展開対象のファイルをブロックごとにまとめます。
// 返すジョブはブロック番号順です。
func (a *App) selectFiles(dir *freearc.Directory) ([]blockJob, []string, error) {
	patterns, err := a.patterns()
	if err != nil {
		return nil, nil, err
	}
	matcher, err := fileutil.NewMatcher(patterns)
	if err != nil {
		return nil, nil, err
	}

	byBlock := make(map[int][]freearc.FileEntry)
	for _, f := range dir.Files {
		if matcher.Match(f.Path()) {
			byBlock[f.Block] = append(byBlock[f.Block], f)
		}
	}
	jobs := make([]blockJob, 0, len(byBlock))
	for i := range dir.Blocks {
		if files, ok := byBlock[i]; ok {
			jobs = append(jobs, blockJob{block: i, files: files})
		}
	}
	return jobs, matcher.Unmatched(), nil
}

// Entries は展開対象に一致するファイルの一覧を返します
func (a *App) Entries(ctx context.Context) ([]models.Entry, error) {
	arc, dir, _, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	jobs, _, err := a.selectFiles(dir)
	if err != nil {
		return nil, err
	}
	var entries []models.Entry
	for _, job := range jobs {
		compressor, cipher := method.SplitCipher(dir.Blocks[job.block].Compressor)
		if cipher != "" {
			compressor += "+暗号化"
		}
		for _, f := range job.files {
			name, err := fileutil.DecodeName(f.Path(), a.config.NameEncoding)
			if err != nil {
				return nil, err
			}
			entries = append(entries, models.Entry{
				Path:    name,
				Size:    f.Size,
				ModTime: f.ModTime,
				IsDir:   f.IsDir,
				CRC:     f.CRC,
				Block:   f.Block,
				Method:  compressor,
			})
		}
	}
	return entries, nil
}

// List はファイルの一覧を表示します
func (a *App) List(ctx context.Context) error {
	entries, err := a.Entries(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, FormatEntries(entries))
	return nil
}

// Extract はアーカイブを展開します。
// データブロックを workers 並列で1回ずつ展開し、失敗したファイルは最後にまとめて返します。
func (a *App) Extract(ctx context.Context) (*models.Summary, error) {
	start := time.Now()
	arc, dir, info, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	jobs, notFound, err := a.selectFiles(dir)
	if err != nil {
		return nil, err
	}
	sum := &models.Summary{Blocks: len(jobs), NotFound: notFound, Encrypted: info.Encrypted}

	if !a.config.DryRun {
		if err := a.fs.MkdirAll(a.config.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("%w: %w", fileutil.ErrCreateDirectory, err)
		}
	}

	numWorkers := max(a.config.Workers, 1)
	jobCh := make(chan blockJob, numWorkers*2)
	results := make(chan models.FileResult, numWorkers*2)

	// ワーカーを起動
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				a.extractBlock(arc, job, results)
			}
		}()
	}

	// 結果処理用のgoroutineを起動
	resultDone := make(chan struct{})
	go func() {
		for r := range results {
			sum.Add(r)
			if r.Err != nil {
				a.logger.Printf("失敗: %s: %v\n", r.Path, r.Err)
			} else {
				a.logger.Printf("展開: %s\n", r.Path)
			}
		}
		close(resultDone)
	}()

	// ブロックごとにジョブを投入
dispatch:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobCh <- job:
		}
	}
	close(jobCh)
	wg.Wait()
	close(results)
	<-resultDone

	slices.SortFunc(sum.Failed, func(x, y models.FileResult) int {
		return cmp.Or(cmp.Compare(x.Block, y.Block), cmp.Compare(x.Path, y.Path))
	})
	sum.Elapsed = time.Since(start)

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if len(sum.Failed) > 0 {
		return sum, fmt.Errorf("%w: %d件", ErrExtractFailed, len(sum.Failed))
	}
	if len(sum.NotFound) > 0 {
		return sum, fmt.Errorf("%w: %v", ErrNotFound, sum.NotFound)
	}
	return sum, nil
}

// extractBlock は1つのデータブロックを展開し、対象ファイルの結果を results に送ります
func (a *App) extractBlock(arc interfaces.Archive, job blockJob, results chan<- models.FileResult) {
	wanted := make(map[string]bool, len(job.files))
	for _, f := range job.files {
		wanted[f.Path()] = true
	}

	files, err := arc.ReadBlock(job.block)
	if err != nil {
		for _, f := range job.files {
			results <- models.FileResult{
				Path:  f.Path(),
				Block: job.block,
				Size:  f.Size,
				IsDir: f.IsDir,
				Err:   ferrors.NewExtractError(f.Path(), err),
			}
		}
		return
	}
	for _, fd := range files {
		if wanted[fd.Entry.Path()] {
			results <- a.writeFile(fd)
		}
	}
}

// writeFile は展開したファイル1つを書き出します
func (a *App) writeFile(fd freearc.FileData) models.FileResult {
	f := fd.Entry
	r := models.FileResult{Path: f.Path(), Block: f.Block, Size: f.Size, IsDir: f.IsDir}
	fail := func(err error) models.FileResult {
		r.Err = ferrors.NewExtractError(r.Path, err)
		return r
	}
	if fd.Err != nil {
		return fail(fd.Err)
	}

	name, err := fileutil.DecodeName(r.Path, a.config.NameEncoding)
	if err != nil {
		return fail(err)
	}
	out, err := fileutil.SafeJoin(a.config.OutputDir, name)
	if err != nil {
		return fail(err)
	}
	if a.config.DryRun {
		return r
	}
	r.Out = out

	if f.IsDir {
		if err := a.fs.MkdirAll(out, 0755); err != nil {
			return fail(fmt.Errorf("%w: %w", fileutil.ErrCreateDirectory, err))
		}
		a.setModTime(out, f.ModTime)
		return r
	}

	if !a.config.Overwrite && a.fs.FileExists(out) {
		a.logger.Printf("既存のファイルを残します: %s\n", out)
		r.Skipped = true
		return r
	}
	if parent := filepath.Dir(out); parent != "." {
		if err := a.fs.MkdirAll(parent, 0755); err != nil {
			return fail(fmt.Errorf("%w: %w", fileutil.ErrCreateDirectory, err))
		}
	}
	if err := a.fs.WriteFile(out, fd.Data, 0644); err != nil {
		return fail(fmt.Errorf("%w: %w", fileutil.ErrCreateFile, err))
	}
	a.setModTime(out, f.ModTime)
	return r
}

func (a *App) setModTime(name string, t time.Time) {
	if t.IsZero() || t.Unix() == 0 {
		return
	}
	if err := a.fs.Chtimes(name, t); err != nil {
		a.logger.Printf("更新日時を設定できません: %s: %v\n", name, err)
	}
}

// Test は全データブロックを展開してCRCを検証します
func (a *App) Test(ctx context.Context) (*models.Summary, error) {
	start := time.Now()
	arc, dir, info, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	failures, err := arc.Verify(ctx, a.config.Workers)
	if err != nil {
		return nil, err
	}

	badBlocks := make(map[int]bool)
	badFiles := make(map[string]bool)
	sum := &models.Summary{Blocks: len(dir.Blocks), Encrypted: info.Encrypted}
	for _, f := range failures {
		if f.File == "" {
			badBlocks[f.Block] = true
		} else {
			badFiles[f.File] = true
		}
		sum.Failed = append(sum.Failed, models.FileResult{Path: f.File, Block: f.Block, Err: f})
	}
	for _, f := range dir.Files {
		if badBlocks[f.Block] || badFiles[f.Path()] {
			continue
		}
		sum.Add(models.FileResult{Path: f.Path(), Block: f.Block, Size: f.Size, IsDir: f.IsDir})
	}
	sum.Elapsed = time.Since(start)

	if len(sum.Failed) > 0 {
		return sum, fmt.Errorf("%w: %d件", ErrTestFailed, len(sum.Failed))
	}
	return sum, nil
}

// Info はアーカイブの概要を表示します
func (a *App) Info(ctx context.Context) (freearc.Info, error) {
	arc, _, info, err := a.open(ctx)
	if err != nil {
		return freearc.Info{}, err
	}
	defer arc.Close()

	fmt.Fprint(a.out, FormatInfo(a.config.ArchivePath, info))
	return info, nil
}

// Report は集計結果と失敗したファイルを表示します
func (a *App) Report(op string, sum *models.Summary) {
	if sum == nil {
		return
	}
	fmt.Fprint(a.out, FormatSummary(op, sum))
}

// SaveListing は一覧をUTF-8 BOMありのテキストファイルに保存します
func (a *App) SaveListing(ctx context.Context, outputPath string) error {
	entries, err := a.Entries(ctx)
	if err != nil {
		return err
	}
	if err := fileutil.SaveToFileWithBOM(a.fs, outputPath, FormatEntries(entries)); err != nil {
		return err
	}
	a.logger.Printf("一覧を %s に保存しました\n", outputPath)
	return nil
}
