// Package arcerr はFreeArcアーカイブ処理で共通に使うエラー分類を提供します。
//
// 各パッケージの個別エラーはこのパッケージの分類エラーをラップしているため、
// errors.Is で分類を判定できます。
//
//	if errors.Is(err, arcerr.ErrIntegrity) {
//	    // パスワード誤り、またはアーカイブ破損
//	}
package arcerr

import "errors"

var (
	// ErrFormat は署名不一致や構造の破損など形式上の問題を表します
	ErrFormat = errors.New("アーカイブ形式エラー")

	// ErrUnsupportedMethod は未対応の圧縮方式や暗号方式を表します
	ErrUnsupportedMethod = errors.New("未対応の方式です")

	// ErrCrypto は鍵長やIV長の不正、パスワード検証の失敗を表します
	ErrCrypto = errors.New("暗号処理エラー")

	// ErrIntegrity はCRCやサイズの不一致を表します
	ErrIntegrity = errors.New("整合性エラー")

	// ErrDecompression はレンジコーダの不整合や途中で終わったストリームを表します
	ErrDecompression = errors.New("展開エラー")
)

// Category は err が属する分類エラーを返します。どれにも属さない場合は nil を返します。
func Category(err error) error {
	for _, c := range []error{ErrFormat, ErrUnsupportedMethod, ErrCrypto, ErrIntegrity, ErrDecompression} {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}
