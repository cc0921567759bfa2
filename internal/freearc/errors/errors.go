// Package errors はカスタムエラータイプと利用者向けのエラー説明を提供します
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/shiroemons/go-freearc/pkg/arcerr"
)

// Common errors
var (
	// ErrFileNotFound はファイルが見つからない場合のエラー
	ErrFileNotFound = errors.New("ファイルが見つかりません")

	// ErrNotFreeArc はFreeArcアーカイブでない場合のエラー
	ErrNotFreeArc = errors.New("FreeArcアーカイブではありません")

	// ErrFileExists は上書きが許可されていない既存ファイルの場合のエラー
	ErrFileExists = errors.New("ファイルが既に存在します")

	// ErrUnsafePath はアーカイブ内のパスが展開先の外を指す場合のエラー
	ErrUnsafePath = errors.New("展開先の外を指すパスです")
)

// ArchiveError はアーカイブ関連のエラー
type ArchiveError struct {
	Op   string // 実行していた操作
	Path string // アーカイブのパス
	Err  error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返します
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewArchiveError は新しいArchiveErrorを作成します
func NewArchiveError(op, path string, err error) *ArchiveError {
	return &ArchiveError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// ExtractError はアーカイブ内のファイル1つの展開エラー
type ExtractError struct {
	File string // アーカイブ内のパス
	Err  error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *ExtractError) Error() string {
	return fmt.Sprintf("%sの展開エラー: %v", e.File, e.Err)
}

// Unwrap は元のエラーを返します
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewExtractError は新しいExtractErrorを作成します
func NewExtractError(file string, err error) *ExtractError {
	return &ExtractError{
		File: file,
		Err:  err,
	}
}

// Describe は err の分類に応じた利用者向けの説明を返します。
// encrypted はアーカイブが暗号化されているかどうかで、整合性エラーの説明が変わります。
func Describe(err error, encrypted bool) string {
	if err == nil {
		return ""
	}
	var msg string
	switch arcerr.Category(err) {
	case arcerr.ErrFormat:
		msg = "アーカイブが壊れているか、FreeArc形式ではありません"
	case arcerr.ErrUnsupportedMethod:
		msg = "このアーカイブは未対応の方式で圧縮されています"
	case arcerr.ErrCrypto:
		msg = "パスワードが違うか、暗号指定が不正です"
	case arcerr.ErrIntegrity, arcerr.ErrDecompression:
		if encrypted {
			msg = "パスワードが違うか、アーカイブが壊れています"
		} else {
			msg = "アーカイブが壊れています"
		}
	default:
		switch {
		case errors.Is(err, context.Canceled):
			msg = "中断されました"
		case errors.Is(err, ErrNotFreeArc):
			msg = "FreeArcアーカイブではありません"
		default:
			return err.Error()
		}
	}
	return msg + " (" + err.Error() + ")"
}
