package cryptox

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := VerifyPassword("correct horse", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("battery staple", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, err := HashPassword("pw")
	require.NoError(t, err)
	b, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=1$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
	}
	for _, c := range cases {
		_, err := VerifyPassword("pw", c)
		assert.ErrorIs(t, err, ErrMalformedHash, c)
	}
}

func TestSignatureKey_SignVerifies(t *testing.T) {
	k, err := GenerateSignatureKey(1024)
	require.NoError(t, err)

	sig, err := k.Sign("payload")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	sum := sha1.Sum([]byte("payload"))
	require.NoError(t, rsa.VerifyPKCS1v15(k.PublicKey(), crypto.SHA1, sum[:], raw))
}

func TestSignatureKey_PublicKeyPEM(t *testing.T) {
	k, err := GenerateSignatureKey(1024)
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(k.PublicKeyPEM()))
	require.NotNil(t, block)
	assert.Equal(t, "PUBLIC KEY", block.Type)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
	assert.True(t, k.PublicKey().Equal(pub))
}

func TestLoadSignatureKey_FromFile(t *testing.T) {
	k, err := GenerateSignatureKey(1024)
	require.NoError(t, err)

	dir := t.TempDir()

	pkcs8, err := x509.MarshalPKCS8PrivateKey(k.private)
	require.NoError(t, err)
	p8 := filepath.Join(dir, "key8.pem")
	require.NoError(t, os.WriteFile(p8, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), 0o600))

	p1 := filepath.Join(dir, "key1.pem")
	require.NoError(t, os.WriteFile(p1, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k.private)}), 0o600))

	for _, p := range []string{p8, p1} {
		loaded, err := LoadSignatureKey(p)
		require.NoError(t, err)
		assert.Equal(t, k.PublicKeyPEM(), loaded.PublicKeyPEM())
	}
}

func TestLoadSignatureKey_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSignatureKey(filepath.Join(dir, "missing.pem"))
	require.Error(t, err)

	junk := filepath.Join(dir, "junk.pem")
	require.NoError(t, os.WriteFile(junk, []byte("not pem"), 0o600))
	_, err = LoadSignatureKey(junk)
	require.Error(t, err)

	other := filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(other, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}), 0o600))
	_, err = LoadSignatureKey(other)
	require.Error(t, err)
}
