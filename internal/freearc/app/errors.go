package app

import "errors"

var (
	// ErrExtractFailed は展開に失敗したファイルがある場合のエラー
	ErrExtractFailed = errors.New("展開に失敗したファイルがあります")

	// ErrTestFailed は検証に失敗したファイルがある場合のエラー
	ErrTestFailed = errors.New("検証に失敗したファイルがあります")

	// ErrNotFound は指定されたファイルがアーカイブにない場合のエラー
	ErrNotFound = errors.New("指定されたファイルが見つかりませんでした")

	// ErrNoInputs は作成するアーカイブに追加するファイルが指定されていない場合のエラー
	ErrNoInputs = errors.New("追加するファイルが指定されていません")

	// ErrReadFile はファイルの読み込みに失敗した場合のエラー
	ErrReadFile = errors.New("ファイルの読み込みに失敗しました")
)
