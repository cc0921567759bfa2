package fileutil

import "errors"

var (
	// ErrCreateDirectory は出力先ディレクトリの作成に失敗した場合のエラー
	ErrCreateDirectory = errors.New("出力先ディレクトリの作成に失敗しました")

	// ErrCreateFile はファイルの作成に失敗した場合のエラー
	ErrCreateFile = errors.New("ファイルの作成に失敗しました")

	// ErrWriteContent は内容の書き込みに失敗した場合のエラー
	ErrWriteContent = errors.New("内容の書き込みに失敗しました")

	// ErrReadListFile はリストファイルを読めない場合のエラー
	ErrReadListFile = errors.New("リストファイルを読み込めませんでした")

	// ErrDecodeName はファイル名の文字コード変換に失敗した場合のエラー
	ErrDecodeName = errors.New("ファイル名を変換できませんでした")

	// ErrBadPattern はワイルドカードの書式が不正な場合のエラー
	ErrBadPattern = errors.New("ワイルドカードの書式が不正です")
)
