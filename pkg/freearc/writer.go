package freearc

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/shiroemons/go-freearc/pkg/codec"
	"github.com/shiroemons/go-freearc/pkg/crypto"
	"github.com/shiroemons/go-freearc/pkg/method"
)

// Writer の既定値
const (
	DefaultMethod     = "lzma:16mb"
	DefaultDirMethod  = "storing"
	DefaultCipher     = "aes-256"
	DefaultSolidBytes = 16 << 20
)

// WriterOptions は Writer の設定です。ゼロ値の項目は既定値を使います。
type WriterOptions struct {
	// Method はデータブロックのメソッド文字列です。暗号指定は含めず Password で指定します。
	Method string

	// DirMethod はディレクトリとフッタのメソッド文字列です
	DirMethod string

	// Password が空でない場合、データブロックを Cipher で暗号化します
	Password string

	// Cipher は "aes-256" や "aes-128+blowfish-448" のような暗号の並びです
	Cipher string

	// EncryptHeaders はディレクトリも暗号化します。フッタは常に平文です。
	EncryptHeaders bool

	// SolidBytes はデータブロックを区切る元のサイズの目安です
	SolidBytes int64

	Comment string
	Locked  bool

	// Rand はソルトとIVの乱数源です。nil の場合は crypto/rand を使います。
	Rand   io.Reader
	Keys   *crypto.KeyCache
	Logger *slog.Logger
}

// Writer はFreeArcアーカイブを書き出します。
// Add で追加したファイルは SolidBytes ごとに1つのデータブロックにまとめて圧縮されます。
type Writer struct {
	w    *countingWriter
	opts WriterOptions
	log  *slog.Logger
	pipe *codec.Pipeline

	data     *method.Chain
	dirChain *method.Chain
	cipher   *crypto.Cascade

	dir      Directory
	dirIndex map[string]int
	pending  bytes.Buffer
	nPending int
	closed   bool
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// NewWriter は w に署名を書き込み、Writer を返します。
// Close は w を閉じません。
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	if opts.Method == "" {
		opts.Method = DefaultMethod
	}
	if opts.DirMethod == "" {
		opts.DirMethod = DefaultDirMethod
	}
	if opts.Cipher == "" {
		opts.Cipher = DefaultCipher
	}
	if opts.SolidBytes <= 0 {
		opts.SolidBytes = DefaultSolidBytes
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	aw := &Writer{
		w:        &countingWriter{w: w},
		opts:     opts,
		log:      opts.Logger,
		pipe:     &codec.Pipeline{Keys: opts.Keys, Logger: opts.Logger},
		dirIndex: make(map[string]int),
	}

	var err error
	if aw.data, err = parsePlainChain(opts.Method); err != nil {
		return nil, err
	}
	if aw.dirChain, err = parsePlainChain(opts.DirMethod); err != nil {
		return nil, err
	}
	if opts.Password != "" {
		if aw.cipher, err = newCascade(opts.Cipher, opts.Password, opts.Rand); err != nil {
			return nil, err
		}
	}

	if _, err := io.WriteString(aw.w, Signature); err != nil {
		return nil, err
	}
	return aw, nil
}

func parsePlainChain(s string) (*method.Chain, error) {
	chain, err := method.Parse(s)
	if err != nil {
		return nil, err
	}
	if chain.Encrypted() {
		return nil, fmt.Errorf("%w: メソッド %q に暗号指定は書けません。Password を使ってください", method.ErrBadParameter, s)
	}
	for _, st := range chain.Stages {
		if _, err := codec.New(st); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// newCascade は "aes-256+blowfish" のような並びから、乱数のソルトを持つ暗号指定を作ります
func newCascade(list, password string, rnd io.Reader) (*crypto.Cascade, error) {
	c := &crypto.Cascade{}
	for _, name := range strings.Split(list, "+") {
		alg, bits, err := crypto.ParseAlgorithm(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		spec, err := crypto.NewSpec(alg, bits, password, rnd)
		if err != nil {
			return nil, err
		}
		c.Specs = append(c.Specs, spec)
	}
	return c, nil
}

// cleanName は "/" 区切りの相対パスに正規化し、ディレクトリ部分とファイル名に分けます
func cleanName(name string) (dir, base string, err error) {
	p := strings.ReplaceAll(name, "\\", "/")
	p = path.Clean("/" + p)[1:]
	if p == "" || strings.Contains(name, "\x00") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, elem := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if elem == ".." {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	dir, base = path.Split(p)
	return strings.TrimSuffix(dir, "/"), base, nil
}

func (w *Writer) dirNumber(dir string) int {
	if n, ok := w.dirIndex[dir]; ok {
		return n
	}
	n := len(w.dir.Dirs)
	w.dir.Dirs = append(w.dir.Dirs, dir)
	w.dirIndex[dir] = n
	return n
}

func (w *Writer) addEntry(name string, size uint64, crc uint32, modTime time.Time, isDir bool) error {
	if w.closed {
		return ErrWriterClosed
	}
	dir, base, err := cleanName(name)
	if err != nil {
		return err
	}
	w.dir.Files = append(w.dir.Files, FileEntry{
		Name:      base,
		Dir:       dir,
		DirNumber: w.dirNumber(dir),
		Size:      size,
		ModTime:   modTime,
		IsDir:     isDir,
		CRC:       crc,
		Block:     len(w.dir.Blocks),
		Offset:    uint64(w.pending.Len()),
	})
	w.nPending++
	return nil
}

// Add はファイルを追加します。name は "/" または "\" 区切りの相対パスです。
func (w *Writer) Add(name string, data []byte, modTime time.Time) error {
	if err := w.addEntry(name, uint64(len(data)), crc32.ChecksumIEEE(data), modTime, false); err != nil {
		return err
	}
	w.pending.Write(data)
	if int64(w.pending.Len()) >= w.opts.SolidBytes {
		return w.Flush()
	}
	return nil
}

// Mkdir はディレクトリのエントリを追加します
func (w *Writer) Mkdir(name string, modTime time.Time) error {
	return w.addEntry(name, 0, 0, modTime, true)
}

// Flush は溜まっているファイルを1つのデータブロックとして書き出します
func (w *Writer) Flush() error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.nPending == 0 {
		return nil
	}

	chain, err := w.sealed(w.data, true)
	if err != nil {
		return err
	}
	out, err := w.pipe.Encode(chain, w.pending.Bytes(), w.opts.Password)
	if err != nil {
		return fmt.Errorf("データブロック%d: %w", len(w.dir.Blocks), err)
	}
	d := Descriptor{
		Type:       DataBlock,
		Compressor: chain.String(),
		OrigSize:   uint64(w.pending.Len()),
		CompSize:   uint64(len(out)),
		Pos:        w.w.n,
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	w.log.Debug("データブロックを書き込みました", "block", len(w.dir.Blocks), "files", w.nPending, "orig", d.OrigSize, "comp", d.CompSize)

	w.dir.Blocks = append(w.dir.Blocks, d)
	w.pending.Reset()
	w.nPending = 0
	return nil
}

// sealed は encrypt が真でパスワードがあれば、IVを作り直した暗号指定を chain に付けます
func (w *Writer) sealed(chain *method.Chain, encrypt bool) (*method.Chain, error) {
	if !encrypt || w.cipher == nil {
		return chain, nil
	}
	c, err := w.cipher.Reseed(w.opts.Rand)
	if err != nil {
		return nil, err
	}
	return chain.WithCipher(c), nil
}

// Close は残りのデータブロック、ディレクトリ、フッタを書き出します。
// 2回目以降の呼び出しは何もしません。
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true

	dirDesc, err := w.writeControl(DirectoryBlock, w.opts.EncryptHeaders, func(pos int64) []byte {
		return appendDirectory(nil, &w.dir, pos)
	})
	if err != nil {
		return fmt.Errorf("ディレクトリ: %w", err)
	}
	if _, err := w.w.Write(appendDescriptor(nil, dirDesc)); err != nil {
		return err
	}

	footer := &Footer{Blocks: []Descriptor{dirDesc}, Locked: w.opts.Locked, Comment: w.opts.Comment}
	footerPos := w.w.n
	// エントリの位置はフッタ記述子からの距離で、フッタ自身の圧縮後の長さに依存する
	descPos := footerPos
	var body, out []byte
	for range 8 {
		body = appendFooter(nil, footer, descPos)
		if out, err = w.pipe.Encode(w.dirChain, body, ""); err != nil {
			return fmt.Errorf("フッタ: %w", err)
		}
		if footerPos+int64(len(out)) == descPos {
			break
		}
		descPos = footerPos + int64(len(out))
	}
	if footerPos+int64(len(out)) != descPos {
		return errors.New("フッタの位置が確定しません")
	}
	fd := Descriptor{
		Type:       FooterBlock,
		Compressor: w.dirChain.String(),
		OrigSize:   uint64(len(body)),
		CompSize:   uint64(len(out)),
		CRC:        crc32.ChecksumIEEE(body),
	}
	if _, err := w.w.Write(out); err != nil {
		return err
	}
	if _, err := w.w.Write(appendDescriptor(nil, fd)); err != nil {
		return err
	}
	w.log.Debug("アーカイブを閉じました", "blocks", len(w.dir.Blocks), "files", len(w.dir.Files), "size", w.w.n)
	return nil
}

// writeControl は build で作った本体を DirMethod で符号化して書き込み、その記述子を返します
func (w *Writer) writeControl(typ BlockType, encrypt bool, build func(pos int64) []byte) (Descriptor, error) {
	pos := w.w.n
	body := build(pos)
	chain, err := w.sealed(w.dirChain, encrypt)
	if err != nil {
		return Descriptor{}, err
	}
	out, err := w.pipe.Encode(chain, body, w.opts.Password)
	if err != nil {
		return Descriptor{}, err
	}
	if _, err := w.w.Write(out); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Type:       typ,
		Compressor: chain.String(),
		OrigSize:   uint64(len(body)),
		CompSize:   uint64(len(out)),
		CRC:        crc32.ChecksumIEEE(body),
		Pos:        pos,
	}, nil
}
