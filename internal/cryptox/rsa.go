package cryptox

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const signatureKeyBits = 4096

// SignatureKey signs profile property values with RSA PKCS#1 v1.5 over SHA-1,
// which is what game clients verify against the published public key.
type SignatureKey struct {
	private   *rsa.PrivateKey
	publicPEM string
}

func NewSignatureKey(key *rsa.PrivateKey) (*SignatureKey, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return &SignatureKey{private: key, publicPEM: string(block)}, nil
}

// LoadSignatureKey reads a PKCS#8 or PKCS#1 private key from a PEM file.
// An empty path generates a fresh key; signatures then change across restarts.
func LoadSignatureKey(path string) (*SignatureKey, error) {
	if path == "" {
		return GenerateSignatureKey(signatureKeyBits)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signature key: %w", err)
	}
	key, err := ParsePrivateKeyPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("parse signature key %s: %w", path, err)
	}
	return NewSignatureKey(key)
}

func GenerateSignatureKey(bits int) (*SignatureKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	return NewSignatureKey(key)
}

func ParsePrivateKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("not an RSA key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// PublicKeyPEM returns the PKIX public key as a PEM document.
func (k *SignatureKey) PublicKeyPEM() string {
	return k.publicPEM
}

func (k *SignatureKey) PublicKey() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Sign returns the base64 encoded signature of value.
func (k *SignatureKey) Sign(value string) (string, error) {
	sum := sha1.Sum([]byte(value))
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.private, crypto.SHA1, sum[:])
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
