package crypto

import "crypto/subtle"

// XOR は src とキーストリーム ks を XOR して dst に書き込み、処理したバイト数を返します。
// 処理するのは src と ks の短い方の長さ分です。dst と src は同じスライスでも構いません。
func XOR(dst, src, ks []byte) int {
	n := min(len(src), len(ks))
	if n == 0 {
		return 0
	}
	return subtle.XORBytes(dst[:n], src[:n], ks[:n])
}
