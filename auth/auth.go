// Package auth implements the login-phase cryptography: the server RSA
// keypair, verify tokens, the session-server hash and profile lookup.
package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"io"
	"strings"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/google/uuid"
)

const (
	keyBits        = 1024
	verifyTokenLen = 4
)

var (
	// ErrVerifyTokenMismatch is returned when the echoed verify token does
	// not match the one sent, meaning the peer never held the public key.
	ErrVerifyTokenMismatch = errors.New("verify token mismatch")
)

// KeyPair is the server's login RSA keypair, generated once at startup and
// shared by every connection.
type KeyPair struct {
	private *rsa.PrivateKey
	pubDER  []byte
}

func NewKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, errors.Wrap(err, "generate rsa keypair failed")
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "encode rsa public key failed")
	}

	return &KeyPair{private: private, pubDER: pubDER}, nil
}

// PublicKeyDER returns the DER-encoded public key sent in EncryptionRequest.
func (k *KeyPair) PublicKeyDER() []byte {
	return k.pubDER
}

// Decrypt unwraps an RSA/PKCS1-encrypted block from the client.
func (k *KeyPair) Decrypt(data []byte) ([]byte, error) {
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, k.private, data)
	if err != nil {
		return nil, errors.Wrap(err, "rsa decrypt failed")
	}

	return plain, nil
}

// NewVerifyToken returns fresh random bytes for one login attempt.
func NewVerifyToken() ([]byte, error) {
	token := make([]byte, verifyTokenLen)
	if _, err := rand.Read(token); err != nil {
		return nil, errors.Wrap(err, "generate verify token failed")
	}

	return token, nil
}

// ServerHash computes the session-server lookup hash: SHA-1 over server id,
// shared secret and public key DER, rendered as a signed hex integer. A
// digest with the top bit set is printed as the negated two's complement
// with a leading minus, matching the session server's convention.
func ServerHash(serverID string, secret, pubDER []byte) string {
	h := sha1.New()
	io.WriteString(h, serverID)
	h.Write(secret)
	h.Write(pubDER)

	return signedHexDigest(h.Sum(nil))
}

func signedHexDigest(sum []byte) string {
	negative := sum[0]&0x80 != 0

	if negative {
		carry := true

		for i := len(sum) - 1; i >= 0; i-- {
			sum[i] = ^sum[i]

			if carry {
				sum[i]++
				carry = sum[i] == 0
			}
		}
	}

	s := strings.TrimLeft(hex.EncodeToString(sum), "0")
	if s == "" {
		s = "0"
	}

	if negative {
		s = "-" + s
	}

	return s
}

// Profile is an authenticated player identity.
type Profile struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// OfflineProfile derives the deterministic offline-mode identity for a name:
// a v3 UUID over "OfflinePlayer:"+name with no namespace prefix, matching
// the identity clients compute for themselves.
func OfflineProfile(name string) Profile {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))

	var id uuid.UUID
	copy(id[:], sum[:])

	id[6] = (id[6] & 0x0F) | 0x30 // version 3
	id[8] = (id[8] & 0x3F) | 0x80 // RFC 4122 variant

	return Profile{ID: id, Name: name}
}
