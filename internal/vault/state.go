package vault

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrInvalidState = errors.New("invalid oauth state")

// NonceStore tracks outstanding state nonces so each state token redeems
// at most once. Consume reports whether the nonce was still live and
// removes it atomically.
type NonceStore interface {
	Save(ctx context.Context, jti string, ttl time.Duration) error
	Consume(ctx context.Context, jti string) (bool, error)
}

type RedisNonceStore struct {
	client *goredis.Client
	prefix string
}

func NewRedisNonceStore(client *goredis.Client) *RedisNonceStore {
	return &RedisNonceStore{
		client: client,
		prefix: "oauth_state:",
	}
}

func (r *RedisNonceStore) Save(ctx context.Context, jti string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+jti, "1", ttl).Err()
}

func (r *RedisNonceStore) Consume(ctx context.Context, jti string) (bool, error) {
	_, err := r.client.GetDel(ctx, r.prefix+jti).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StateSigner issues and redeems the OAuth state parameter. The state is
// a signed, short-lived, single-use token carrying the uid, so a forged
// or replayed callback cannot bind an authorization code to someone
// else's account.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	nonces NonceStore
}

func NewStateSigner(secret string, ttl time.Duration, nonces NonceStore) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		ttl:    ttl,
		nonces: nonces,
	}
}

type stateClaims struct {
	jwt.RegisteredClaims
}

// Issue mints a state token for uid and records its nonce.
func (s *StateSigner) Issue(ctx context.Context, uid string) (string, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	if err := s.nonces.Save(ctx, jti, s.ttl); err != nil {
		return "", err
	}

	return token, nil
}

// Redeem verifies the state token and consumes its nonce, returning the
// uid it was issued for. A second redeem of the same token fails.
func (s *StateSigner) Redeem(ctx context.Context, state string) (string, error) {
	claims := &stateClaims{}

	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidState
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return "", ErrInvalidState
	}

	live, err := s.nonces.Consume(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if !live {
		return "", ErrInvalidState
	}

	return claims.Subject, nil
}
