package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HMAC key size accepted for HS256.
const MinSecretLength = 32

// Kind distinguishes access tokens from refresh tokens. It is carried inside
// the signed payload so one kind cannot be replayed as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrTokenParse    = errors.New("token parse failed")
	ErrSecretTooWeak = errors.New("signing secret too short")
	ErrInvalidTTL    = errors.New("token ttl must be positive")
)

type Claims struct {
	Kind Kind `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and parses compact HS256 tokens with a single process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

func NewCodec(secret string, now func() time.Time) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretTooWeak, MinSecretLength)
	}
	if now == nil {
		now = time.Now
	}

	return &Codec{
		secret: []byte(secret),
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

func (c *Codec) Sign(subject string, kind Kind, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, ErrInvalidTTL
	}

	issuedAt := c.now().UTC()
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return signed, claims, nil
}

// Parse verifies the signature and time-based claims and returns the payload.
// Every failure is reported as ErrTokenParse so callers never see library
// specific error types.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenParse, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenParse
	}

	return claims, nil
}
