package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHash(t *testing.T) {
	t.Parallel()

	// Published session-server vectors: plain SHA-1 of the name rendered as a
	// signed hex integer.
	tests := []struct {
		name string
		want string
	}{
		{"Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48"},
		{"jeb_", "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1"},
		{"simon", "88e16a1019277b15d58faf0541e11910eb756f6"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ServerHash(tt.name, nil, nil), tt.name)
	}
}

func TestServerHashCoversAllInputs(t *testing.T) {
	t.Parallel()

	base := ServerHash("", []byte{1, 2}, []byte{3, 4})

	assert.NotEqual(t, base, ServerHash("x", []byte{1, 2}, []byte{3, 4}))
	assert.NotEqual(t, base, ServerHash("", []byte{1, 3}, []byte{3, 4}))
	assert.NotEqual(t, base, ServerHash("", []byte{1, 2}, []byte{3, 5}))
}

func TestKeyPairRoundTrip(t *testing.T) {
	t.Parallel()

	kp, err := NewKeyPair()
	require.NoError(t, err)

	// The DER blob must parse back into an RSA key a client can encrypt to.
	parsed, err := x509.ParsePKIXPublicKey(kp.PublicKeyDER())
	require.NoError(t, err)

	pub, ok := parsed.(*rsa.PublicKey)
	require.True(t, ok)

	secret := []byte("sixteen byte key")

	ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	require.NoError(t, err)
	require.NotEqual(t, secret, ct)

	plain, err := kp.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, secret, plain)
}

func TestNewVerifyToken(t *testing.T) {
	t.Parallel()

	a, err := NewVerifyToken()
	require.NoError(t, err)
	require.Len(t, a, 4)

	b, err := NewVerifyToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOfflineProfile(t *testing.T) {
	t.Parallel()

	p := OfflineProfile("Notch")

	assert.Equal(t, "Notch", p.Name)
	assert.Equal(t, p, OfflineProfile("Notch"))
	assert.NotEqual(t, p.ID, OfflineProfile("notch").ID)

	// Name-derived identity is a v3 UUID with the RFC 4122 variant.
	assert.Equal(t, byte(0x30), p.ID[6]&0xF0)
	assert.Equal(t, byte(0x80), p.ID[8]&0xC0)
}
