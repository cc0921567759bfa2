package crypto

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultKeyCacheSize は KeyCache の既定エントリ数です
const DefaultKeyCacheSize = 64

// KeyCache は (アルゴリズム, ソルト, 反復回数, パスワード) ごとに導出済みの鍵を保持するLRUキャッシュです。
// 同じ暗号指定を持つブロックが多いソリッドアーカイブでPBKDF2の再計算を省きます。
// nil の KeyCache は毎回導出します。
type KeyCache struct {
	entries *lru.Cache[[sha256.Size]byte, Material]
}

// NewKeyCache は size エントリの KeyCache を作成します
func NewKeyCache(size int) (*KeyCache, error) {
	if size <= 0 {
		size = DefaultKeyCacheSize
	}
	c, err := lru.New[[sha256.Size]byte, Material](size)
	if err != nil {
		return nil, err
	}
	return &KeyCache{entries: c}, nil
}

// Derive はキャッシュを参照しつつ鍵とチェックコードを導出します
func (k *KeyCache) Derive(spec *EncryptionSpec, password string) (Material, error) {
	if k == nil {
		return Derive(spec, password)
	}
	id := cacheKey(spec, password)
	if m, ok := k.entries.Get(id); ok {
		return m, nil
	}
	m, err := Derive(spec, password)
	if err != nil {
		return Material{}, err
	}
	k.entries.Add(id, m)
	return m, nil
}

// Len はキャッシュされているエントリ数を返します
func (k *KeyCache) Len() int {
	if k == nil {
		return 0
	}
	return k.entries.Len()
}

// cacheKey は鍵導出に関わる値だけから作ります。IVはブロックごとに変わるため含めません。
func cacheKey(spec *EncryptionSpec, password string) [sha256.Size]byte {
	h := sha256.New()
	fmt.Fprintf(h, "%s-%d:n%d:s%x:f%t", spec.Algorithm, spec.KeyBits, spec.Iterations, spec.Salt, spec.UTF8Password)
	h.Write([]byte{0})
	h.Write([]byte(password))
	var id [sha256.Size]byte
	h.Sum(id[:0])
	return id
}
