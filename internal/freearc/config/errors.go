package config

import "errors"

var (
	// ErrNoArchive はアーカイブが指定されていない場合のエラー
	ErrNoArchive = errors.New("アーカイブファイルが指定されていません")

	// ErrBadEncoding は未対応のファイル名文字コードの場合のエラー
	ErrBadEncoding = errors.New("未対応のファイル名文字コードです")

	// ErrBadSolidSize はソリッドブロックのサイズが不正な場合のエラー
	ErrBadSolidSize = errors.New("ソリッドブロックのサイズが不正です")
)
