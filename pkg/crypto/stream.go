package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// NewStream は spec と導出済みの鍵からキーストリームを作成します。
// CTRモードでは暗号化と復号は同じ XORKeyStream 操作です。
func NewStream(spec *EncryptionSpec, key []byte) (cipher.Stream, error) {
	if spec.Mode != CTR {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, spec.Mode)
	}
	if len(key) != spec.KeyLen() {
		return nil, fmt.Errorf("%w: %dバイト必要ですが%dバイトです", ErrBadKeyLength, spec.KeyLen(), len(key))
	}

	var (
		block cipher.Block
		err   error
	)
	switch spec.Algorithm {
	case Blowfish:
		block, err = blowfish.NewCipher(key)
	case AES:
		block, err = aes.NewCipher(key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCipher, spec.Algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadKeyLength, err)
	}

	if len(spec.IV) != block.BlockSize() {
		return nil, fmt.Errorf("%w: %dバイト必要ですが%dバイトです", ErrBadIVLength, block.BlockSize(), len(spec.IV))
	}
	return newCTRLE(block, spec.IV), nil
}
