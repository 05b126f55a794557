// Package auth mints and verifies access tokens. Tokens are HS256 JWTs carrying the
// owning user id and a random jti, so two tokens minted in the same second
// never collide. The token table stays the authority on validity; the
// signature lets the token store turn away forged or malformed strings
// before the table lookup.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid access token")

// Claims carries the registered claims plus the client token the access
// token was issued for.
type Claims struct {
	jwt.RegisteredClaims
	ClientToken string `json:"ctk,omitempty"`
}

// Minter signs and verifies access tokens with a shared HMAC secret.
type Minter struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewMinter creates a Minter.
//
// Parameters:
//   - secret: HMAC key shared by Mint and Parse
//   - issuer: value of the iss claim
//   - ttl: lifetime written to the exp claim
func NewMinter(secret []byte, issuer string, ttl time.Duration) *Minter {
	return &Minter{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// Mint returns a signed access token for userID.
func (m *Minter) Mint(userID int64, clientToken string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		ClientToken: clientToken,
	})

	return token.SignedString(m.secret)
}

// Parse verifies the signature and expiry and returns the claims.
func (m *Minter) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
