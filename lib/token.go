package lib

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/glimpse/lib/challenge"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("lib: pass token is not valid")

// PassClaims are the claims of a pass token, minted when a client passes a
// challenge. Subject is a hash of the client identity.
type PassClaims struct {
	Kind       challenge.Kind `json:"kind"`
	Difficulty int            `json:"difficulty"`
	Score      int            `json:"score"`
	jwt.RegisteredClaims
}

// TokenSigner mints and checks pass tokens. It signs with HS512 when a
// shared secret is set and with EdDSA otherwise.
type TokenSigner struct {
	ed25519Priv ed25519.PrivateKey
	hs512Secret []byte
	expiration  time.Duration
	now         func() time.Time
}

func (ts *TokenSigner) method() jwt.SigningMethod {
	if len(ts.hs512Secret) != 0 {
		return jwt.SigningMethodHS512
	}
	return jwt.SigningMethodEdDSA
}

// Sign fills in the registered claims and signs them.
func (ts *TokenSigner) Sign(claims PassClaims) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("can't mint token id: %w", err)
	}

	now := ts.now()
	claims.ID = id.String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now.Add(-1 * time.Minute))
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ts.expiration))

	tok := jwt.NewWithClaims(ts.method(), claims)

	if len(ts.hs512Secret) != 0 {
		return tok.SignedString(ts.hs512Secret)
	}
	return tok.SignedString(ts.ed25519Priv)
}

// Verify parses a token and checks its signature, algorithm and expiry.
func (ts *TokenSigner) Verify(tokenString string) (*PassClaims, error) {
	var claims PassClaims

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if len(ts.hs512Secret) != 0 {
			return ts.hs512Secret, nil
		}
		return ts.ed25519Priv.Public(), nil
	},
		jwt.WithValidMethods([]string{ts.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
