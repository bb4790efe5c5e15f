package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid identity token")

// Signer mints and verifies bearer identity tokens. With a service-account
// private key configured it signs RS256; otherwise it falls back to HS256
// with a shared secret (development mode).
type Signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
}

type identityClaims struct {
	jwt.RegisteredClaims
}

// NewSigner builds a Signer from service-account style fields. privateKey
// accepts both literal newlines and the "\n" escape sequence, since
// single-line env files commonly store PEM keys escaped.
func NewSigner(projectID, clientEmail, privateKey, secret string) (*Signer, error) {
	if privateKey != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalizePrivateKey(privateKey)))
		if err != nil {
			return nil, fmt.Errorf("parse auth private key: %w", err)
		}
		return &Signer{
			method:    jwt.SigningMethodRS256,
			signKey:   key,
			verifyKey: &key.PublicKey,
			issuer:    clientEmail,
			audience:  projectID,
		}, nil
	}

	if secret == "" {
		return nil, errors.New("auth signer: neither private key nor secret configured")
	}

	return &Signer{
		method:    jwt.SigningMethodHS256,
		signKey:   []byte(secret),
		verifyKey: []byte(secret),
		issuer:    clientEmail,
		audience:  projectID,
	}, nil
}

func normalizePrivateKey(raw string) string {
	if strings.Contains(raw, `\n`) {
		return strings.ReplaceAll(raw, `\n`, "\n")
	}
	return raw
}

// Mint issues an identity token for uid valid for ttl.
func (s *Signer) Mint(uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
}

// Verify checks the token signature and expiry and returns the uid.
// Callers must treat every failure identically; the error carries no
// detail about which check failed.
func (s *Signer) Verify(tokenString string) (string, error) {
	claims := &identityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, ErrInvalidToken
		}
		return s.verifyKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
