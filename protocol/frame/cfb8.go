package frame

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/go-pantheon/fabrica-util/errors"
)

// SecretLen is the length of the shared secret negotiated during login. The
// secret doubles as both AES key and initialization vector.
const SecretLen = 16

// ErrSecretLen is returned for a shared secret that is not 16 bytes.
var ErrSecretLen = errors.New("shared secret must be 16 bytes")

// cfb8 is an AES-128 CFB-8 self-synchronizing stream cipher: one byte of
// shift-register state per byte of data. The wire protocol mandates CFB-8,
// which the stdlib CFB implementation (full-block feedback) cannot produce.
type cfb8 struct {
	block   cipher.Block
	sr      [aes.BlockSize]byte
	decrypt bool
}

var _ cipher.Stream = (*cfb8)(nil)

func newCFB8(secret []byte, decrypt bool) (cipher.Stream, error) {
	if len(secret) != SecretLen {
		return nil, ErrSecretLen
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, errors.Wrap(err, "init aes cipher failed")
	}

	c := &cfb8{block: block, decrypt: decrypt}
	copy(c.sr[:], secret)

	return c, nil
}

// NewEncryptStream returns the sending half of the session cipher pair.
func NewEncryptStream(secret []byte) (cipher.Stream, error) {
	return newCFB8(secret, false)
}

// NewDecryptStream returns the receiving half of the session cipher pair.
func NewDecryptStream(secret []byte) (cipher.Stream, error) {
	return newCFB8(secret, true)
}

func (c *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("frame: cfb8 output smaller than input")
	}

	var ks [aes.BlockSize]byte

	for i := range src {
		c.block.Encrypt(ks[:], c.sr[:])

		in := src[i]
		out := in ^ ks[0]

		copy(c.sr[:], c.sr[1:])

		if c.decrypt {
			c.sr[aes.BlockSize-1] = in
		} else {
			c.sr[aes.BlockSize-1] = out
		}

		dst[i] = out
	}
}
