// Package freearc はFreeArcアーカイブ (.arc) の読み書きを行います。
//
// アーカイブは次の順に並びます。
//
//	"ArC\x01"             先頭の署名
//	データブロック...      記述子なし。位置はディレクトリに記録
//	ディレクトリデータ     ファイル一覧
//	ディレクトリ記述子
//	フッタデータ           制御ブロックの一覧、ロック状態、コメント
//	フッタ記述子           ファイルの最後
//
// 基本的な使い方:
//
//	a, err := freearc.OpenFile("data.arc", freearc.WithPassword("secret"))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	files, err := a.Files()
//	for _, f := range files {
//	    data, err := a.ReadFile(f)
//	    // ...
//	}
package freearc

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/shiroemons/go-freearc/pkg/codec"
	"github.com/shiroemons/go-freearc/pkg/crypto"
	"github.com/shiroemons/go-freearc/pkg/method"
)

type options struct {
	password   string
	keys       *crypto.KeyCache
	blockCache int
	logger     *slog.Logger
}

// Option は Open の動作を変更します
type Option func(*options)

// WithPassword は暗号化ブロックの復号に使うパスワードを指定します
func WithPassword(password string) Option {
	return func(o *options) { o.password = password }
}

// WithKeyCache は導出済み鍵のキャッシュを指定します
func WithKeyCache(keys *crypto.KeyCache) Option {
	return func(o *options) { o.keys = keys }
}

// WithBlockCache は展開済みデータブロックを n 個まで保持します。
// 同じソリッドブロックのファイルを ReadFile で順に読む場合に再展開を避けられます。
func WithBlockCache(n int) Option {
	return func(o *options) { o.blockCache = n }
}

// WithLogger はデバッグログの出力先を指定します
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Archive は開いたFreeArcアーカイブです。
// io.ReaderAt だけを使うため、各メソッドは複数のゴルーチンから同時に呼び出せます。
type Archive struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer

	opts   options
	log    *slog.Logger
	pipe   *codec.Pipeline
	footer *Footer

	dirOnce sync.Once
	dir     *Directory
	dirErr  error

	blocks *lru.Cache[int, []byte]
	group  singleflight.Group
}

// Open は size バイトの r をFreeArcアーカイブとして開き、フッタを読み込みます。
// ディレクトリは最初に Files などを呼んだ時点で読み込みます。
func Open(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.keys == nil {
		keys, err := crypto.NewKeyCache(0)
		if err != nil {
			return nil, err
		}
		o.keys = keys
	}

	a := &Archive{
		r:    r,
		size: size,
		opts: o,
		log:  o.logger,
		pipe: &codec.Pipeline{Keys: o.keys, Logger: o.logger},
	}
	if o.blockCache > 0 {
		cache, err := lru.New[int, []byte](o.blockCache)
		if err != nil {
			return nil, err
		}
		a.blocks = cache
	}

	if err := a.readFooter(); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenFile はファイルを開いて Open します。Close でファイルも閉じます。
func OpenFile(name string, opts ...Option) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	a, err := Open(f, st.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Close は OpenFile で開いたファイルを閉じます
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// readFooter はファイル末尾から後ろ向きに署名を探し、CRCが一致する最初のフッタ記述子を使います
func (a *Archive) readFooter() error {
	n := min(a.size, ScanMax)
	if n < int64(len(Signature)) {
		return fmt.Errorf("%w: %dバイトしかありません", ErrBadSignature, a.size)
	}
	base := a.size - n
	tail := make([]byte, n)
	if _, err := a.r.ReadAt(tail, base); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrTruncatedArchive, err)
	}

	sig := []byte(Signature)
	for i := len(tail) - len(sig); i >= 0; i-- {
		if !bytes.Equal(tail[i:i+len(sig)], sig) {
			continue
		}
		d, _, err := parseDescriptor(tail[i:])
		if err != nil || d.Type != FooterBlock {
			continue
		}
		descPos := base + int64(i)
		if d.CompSize > uint64(descPos) {
			continue
		}
		d.Pos = descPos - int64(d.CompSize)

		body, err := a.ExtractBlock(d)
		if err != nil {
			return fmt.Errorf("フッタ: %w", err)
		}
		f, err := parseFooter(body, descPos)
		if err != nil {
			return err
		}
		a.footer = f
		a.log.Debug("フッタを読み込みました", "pos", descPos, "blocks", len(f.Blocks), "locked", f.Locked)
		return nil
	}
	return ErrBadSignature
}

// Footer はフッタの内容を返します
func (a *Archive) Footer() *Footer {
	return a.footer
}

// Comment はアーカイブのコメントを返します
func (a *Archive) Comment() string {
	return a.footer.Comment
}

// Locked はアーカイブがロック (変更禁止) されているかどうかを返します
func (a *Archive) Locked() bool {
	return a.footer.Locked
}

// ExtractBlock は記述子 d が指すブロックを読み込み、復号と展開を行います。
// 展開後のサイズが OrigSize と一致しない場合は ErrSizeMismatch、
// 制御ブロックのCRCが一致しない場合は ErrCRCMismatch を返します。
func (a *Archive) ExtractBlock(d Descriptor) ([]byte, error) {
	if d.Pos < 0 || d.CompSize > uint64(a.size) || d.End() > a.size {
		return nil, fmt.Errorf("%w: %sブロック %d+%d (ファイルサイズ %d)", ErrTruncatedArchive, d.Type, d.Pos, d.CompSize, a.size)
	}
	raw := make([]byte, d.CompSize)
	if n, err := a.r.ReadAt(raw, d.Pos); n < len(raw) {
		return nil, fmt.Errorf("%w: %sブロック: %w", ErrTruncatedArchive, d.Type, err)
	}

	chain, err := method.Parse(d.Compressor)
	if err != nil {
		return nil, fmt.Errorf("%sブロックのメソッド %q: %w", d.Type, d.Compressor, err)
	}
	data, err := a.pipe.Decode(chain, raw, int64(d.OrigSize), a.opts.password)
	if err != nil {
		if errors.Is(err, codec.ErrSizeMismatch) {
			err = fmt.Errorf("%w: %w", ErrSizeMismatch, err)
		}
		return nil, fmt.Errorf("%sブロック (位置 %d): %w", d.Type, d.Pos, err)
	}

	// データブロックはブロック単位のCRCを持たないため、ファイル単位で検証する
	if d.Type != DataBlock {
		if sum := crc32.ChecksumIEEE(data); sum != d.CRC {
			return nil, fmt.Errorf("%w: %sブロック %08x (期待値 %08x)", ErrCRCMismatch, d.Type, sum, d.CRC)
		}
	}
	return data, nil
}

// Directory はディレクトリブロックを読み込みます。結果は最初の呼び出しで確定します。
func (a *Archive) Directory() (*Directory, error) {
	a.dirOnce.Do(func() {
		a.dir, a.dirErr = a.readDirectory()
	})
	return a.dir, a.dirErr
}

func (a *Archive) readDirectory() (*Directory, error) {
	desc, ok := a.footer.Directory()
	if !ok {
		return nil, ErrNoDirectory
	}
	body, err := a.ExtractBlock(desc)
	if err != nil {
		return nil, fmt.Errorf("ディレクトリ: %w", err)
	}
	dir, err := parseDirectory(body, desc.Pos)
	if err != nil {
		return nil, err
	}
	a.log.Debug("ディレクトリを読み込みました", "blocks", len(dir.Blocks), "files", len(dir.Files))
	return dir, nil
}

// Files はアーカイブ内の全エントリを返します
func (a *Archive) Files() ([]FileEntry, error) {
	dir, err := a.Directory()
	if err != nil {
		return nil, err
	}
	return dir.Files, nil
}

// block は番号 i のデータブロックを展開します。
// 同じブロックへの同時要求は1回の展開にまとめます。返すスライスは変更しないでください。
func (a *Archive) block(dir *Directory, i int) ([]byte, error) {
	if i < 0 || i >= len(dir.Blocks) {
		return nil, fmt.Errorf("%w: ブロック番号 %d (ブロック数 %d)", ErrMalformedDirectory, i, len(dir.Blocks))
	}
	if a.blocks != nil {
		if data, ok := a.blocks.Get(i); ok {
			return data, nil
		}
	}
	v, err, _ := a.group.Do(strconv.Itoa(i), func() (any, error) {
		data, err := a.ExtractBlock(dir.Blocks[i])
		if err != nil {
			return nil, err
		}
		if a.blocks != nil {
			a.blocks.Add(i, data)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// sliceFile はブロック展開後のデータから f の範囲を取り出し、CRCを検証します
func sliceFile(f FileEntry, data []byte) ([]byte, error) {
	if f.Offset > uint64(len(data)) || f.Size > uint64(len(data))-f.Offset {
		return nil, fmt.Errorf("%w: %s はブロック%dの範囲外です", ErrSizeMismatch, f.Path(), f.Block)
	}
	b := data[f.Offset : f.Offset+f.Size]
	if sum := crc32.ChecksumIEEE(b); sum != f.CRC {
		return nil, fmt.Errorf("%w: %s %08x (期待値 %08x)", ErrCRCMismatch, f.Path(), sum, f.CRC)
	}
	return b, nil
}

// ReadFile は f の内容を返します。ディレクトリの場合は nil を返します。
func (a *Archive) ReadFile(f FileEntry) ([]byte, error) {
	if f.IsDir {
		return nil, nil
	}
	dir, err := a.Directory()
	if err != nil {
		return nil, err
	}
	data, err := a.block(dir, f.Block)
	if err != nil {
		return nil, err
	}
	b, err := sliceFile(f, data)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(b), nil
}

// FileData はデータブロックから取り出したファイル1つ分の結果です。
// Err はそのファイルだけの失敗 (CRC不一致など) です。
type FileData struct {
	Entry FileEntry
	Data  []byte
	Err   error
}

// ReadBlock は番号 i のデータブロックを1回だけ展開し、所属するファイルに分けて返します。
// ブロック自体を展開できない場合はエラーを返します。
func (a *Archive) ReadBlock(i int) ([]FileData, error) {
	dir, err := a.Directory()
	if err != nil {
		return nil, err
	}
	data, err := a.block(dir, i)
	if err != nil {
		return nil, err
	}
	var out []FileData
	for _, f := range dir.FilesIn(i) {
		fd := FileData{Entry: f}
		if !f.IsDir {
			b, err := sliceFile(f, data)
			fd.Data, fd.Err = bytes.Clone(b), err
		}
		out = append(out, fd)
	}
	return out, nil
}

// BlockFailure は Verify で見つかった失敗です。File が空の場合はブロック全体の失敗です。
type BlockFailure struct {
	Block int
	File  string
	Err   error
}

func (f BlockFailure) Error() string {
	if f.File == "" {
		return fmt.Sprintf("ブロック%d: %v", f.Block, f.Err)
	}
	return fmt.Sprintf("ブロック%d: %s: %v", f.Block, f.File, f.Err)
}

func (f BlockFailure) Unwrap() error {
	return f.Err
}

// Verify は全データブロックを workers 並列で展開し、全ファイルのCRCを検証します。
// 失敗は途中で止めずにすべて集めて返します。エラーを返すのはディレクトリを読めない場合と
// ctx が取り消された場合だけです。
func (a *Archive) Verify(ctx context.Context, workers int) ([]BlockFailure, error) {
	dir, err := a.Directory()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu       sync.Mutex
		failures []BlockFailure
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range dir.Blocks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := a.ReadBlock(i)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, BlockFailure{Block: i, Err: err})
				return nil
			}
			for _, f := range files {
				if f.Err != nil {
					failures = append(failures, BlockFailure{Block: i, File: f.Entry.Path(), Err: f.Err})
				}
			}
			return nil
		})
	}
	err = g.Wait()

	slices.SortFunc(failures, func(x, y BlockFailure) int {
		return cmp.Or(cmp.Compare(x.Block, y.Block), cmp.Compare(x.File, y.File))
	})
	a.log.Debug("検証が終わりました", "blocks", len(dir.Blocks), "failures", len(failures))
	return failures, err
}

// Info はアーカイブの概要です
type Info struct {
	Size      int64
	Blocks    int
	Files     int
	Dirs      int
	OrigSize  uint64
	CompSize  uint64
	Methods   []string
	Encrypted bool
	Locked    bool
	Comment   string
}

// Info はディレクトリを読み込んで概要を返します
func (a *Archive) Info() (Info, error) {
	dir, err := a.Directory()
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Size:    a.size,
		Blocks:  len(dir.Blocks),
		Locked:  a.footer.Locked,
		Comment: a.footer.Comment,
	}
	for _, f := range dir.Files {
		if f.IsDir {
			info.Dirs++
		} else {
			info.Files++
		}
	}
	for _, b := range append(slices.Clone(dir.Blocks), a.footer.Blocks...) {
		comp, cipher := method.SplitCipher(b.Compressor)
		if cipher != "" {
			info.Encrypted = true
		}
		if b.Type != DataBlock {
			continue
		}
		info.OrigSize += b.OrigSize
		info.CompSize += b.CompSize
		if !slices.Contains(info.Methods, comp) {
			info.Methods = append(info.Methods, comp)
		}
	}
	return info, nil
}
