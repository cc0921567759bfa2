// Package config はfreearcコマンドの設定管理を行います
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/shiroemons/go-freearc/pkg/method"
)

const Version = "0.1.0"

// ファイル名の文字コード
const (
	EncodingUTF8     = "utf8"
	EncodingShiftJIS = "sjis"
)

// Config はアプリケーションの設定を保持します
type Config struct {
	ArchivePath string
	OutputDir   string
	Password    string
	Workers     int
	DebugMode   bool
	DryRun      bool
	Overwrite   bool

	// ListFile は展開対象を1行1件で列挙したファイルです (@listfile)
	ListFile string
	// Files は展開対象のパスまたはワイルドカードです
	Files []string

	NameEncoding string

	// 以下は create でのみ使います
	Method         string
	Cipher         string
	EncryptHeaders bool
	SolidSize      string
	Comment        string
	Inputs         []string
}

// Validate は設定値を検査し、省略された値に既定値を入れます
func (c *Config) Validate() error {
	if c.ArchivePath == "" {
		return ErrNoArchive
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	switch strings.ToLower(c.NameEncoding) {
	case "", "utf-8", EncodingUTF8:
		c.NameEncoding = EncodingUTF8
	case "shift_jis", "shift-jis", "cp932", EncodingShiftJIS:
		c.NameEncoding = EncodingShiftJIS
	default:
		return fmt.Errorf("%w: %q", ErrBadEncoding, c.NameEncoding)
	}
	if c.SolidSize != "" {
		if _, err := c.SolidBytes(); err != nil {
			return err
		}
	}
	return nil
}

// SolidBytes は SolidSize をバイト数に変換します。空の場合は0を返します。
func (c *Config) SolidBytes() (int64, error) {
	if c.SolidSize == "" {
		return 0, nil
	}
	n, err := method.ParseSize(c.SolidSize, 1<<20)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadSolidSize, err)
	}
	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("%w: %q", ErrBadSolidSize, c.SolidSize)
	}
	return int64(n), nil
}

// DebugLogger はデバッグ出力を管理します
type DebugLogger struct {
	enabled bool
	logger  *slog.Logger
}

// NewDebugLogger は標準エラー出力に書き込むDebugLoggerを作成します
func NewDebugLogger(enabled bool) *DebugLogger {
	return NewDebugLoggerTo(os.Stderr, enabled)
}

// NewDebugLoggerTo は w に書き込むDebugLoggerを作成します
func NewDebugLoggerTo(w io.Writer, enabled bool) *DebugLogger {
	level := slog.LevelInfo
	if enabled {
		level = slog.LevelDebug
	}
	return &DebugLogger{
		enabled: enabled,
		logger:  slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// Printf はデバッグモードが有効な場合のみメッセージを出力します
func (d *DebugLogger) Printf(format string, a ...any) {
	if d.enabled {
		d.logger.Debug(strings.TrimRight(fmt.Sprintf(format, a...), "\n"))
	}
}

// Slog はライブラリに渡す *slog.Logger を返します。
// デバッグモードでない場合は何も出力しません。
func (d *DebugLogger) Slog() *slog.Logger {
	if !d.enabled {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}
