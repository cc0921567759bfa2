package codec

import (
	"fmt"
	"log/slog"

	"github.com/shiroemons/go-freearc/pkg/crypto"
	"github.com/shiroemons/go-freearc/pkg/method"
)

// Pipeline はブロックの復号とステージの展開をまとめて行います。
// ゼロ値でも使えます。Keys が nil の場合は鍵を毎回導出します。
type Pipeline struct {
	Keys   *crypto.KeyCache
	Logger *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// Decode は raw を復号し、宣言の逆順にステージを戻して originalSize バイトのデータを返します。
// 最後に戻すステージ (宣言の先頭) だけが originalSize で制限されます。
func (p *Pipeline) Decode(chain *method.Chain, raw []byte, originalSize int64, password string) ([]byte, error) {
	if originalSize < 0 || originalSize > maxBlockSize {
		return nil, fmt.Errorf("%w: 元のサイズ %d", ErrSizeMismatch, originalSize)
	}
	log := p.logger()
	data := raw

	if chain.Encrypted() {
		if password == "" {
			return nil, crypto.ErrPasswordRequired
		}
		if err := chain.Cipher.Verify(password, p.Keys); err != nil {
			return nil, err
		}
		dec, err := chain.Cipher.Decrypt(data, password, p.Keys)
		if err != nil {
			return nil, err
		}
		log.Debug("復号しました", "cipher", len(chain.Cipher.Specs), "bytes", len(dec))
		data = dec
	}

	stages := chain.Reverse()
	for i, st := range stages {
		c, err := New(st)
		if err != nil {
			return nil, err
		}
		limit := -1
		if i == len(stages)-1 {
			limit = int(originalSize)
		}
		out, err := c.Decode(data, limit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Name(), err)
		}
		log.Debug("ステージを展開しました", "stage", st.String(), "in", len(data), "out", len(out))
		data = out
	}

	if int64(len(data)) != originalSize {
		return nil, fmt.Errorf("%w: %dバイト (期待値 %dバイト)", ErrSizeMismatch, len(data), originalSize)
	}
	return data, nil
}

// Encode は宣言順にステージを適用し、暗号指定があれば最後に暗号化します
func (p *Pipeline) Encode(chain *method.Chain, data []byte, password string) ([]byte, error) {
	log := p.logger()
	for _, st := range chain.Stages {
		c, err := New(st)
		if err != nil {
			return nil, err
		}
		out, err := c.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Name(), err)
		}
		log.Debug("ステージを適用しました", "stage", st.String(), "in", len(data), "out", len(out))
		data = out
	}

	if chain.Encrypted() {
		if password == "" {
			return nil, crypto.ErrPasswordRequired
		}
		return chain.Cipher.Encrypt(data, password, p.Keys)
	}
	return data, nil
}
