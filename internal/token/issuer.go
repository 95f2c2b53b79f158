package token

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Issuer mints access and refresh tokens and answers the questions the
// request pipeline and the login/refresh flow ask about them.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrInvalidTTL
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh ttl must not be shorter than access ttl")
	}

	codec, err := NewCodec(cfg.Secret, cfg.Now)
	if err != nil {
		return nil, err
	}

	return &Issuer{
		codec:      codec,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (i *Issuer) IssueAccessToken(subject string) (string, error) {
	signed, _, err := i.codec.Sign(subject, KindAccess, i.accessTTL)
	return signed, err
}

func (i *Issuer) IssueRefreshToken(subject string) (string, error) {
	signed, _, err := i.codec.Sign(subject, KindRefresh, i.refreshTTL)
	return signed, err
}

// Validate reports whether the token is well formed, correctly signed and
// not yet expired. It never returns an error.
func (i *Issuer) Validate(tokenString string) bool {
	_, err := i.codec.Parse(tokenString)
	return err == nil
}

func (i *Issuer) ExtractSubject(tokenString string) (string, error) {
	claims, err := i.codec.Parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrTokenParse)
	}

	return claims.Subject, nil
}

// IsRefreshKind is false for access tokens and for anything unparsable.
func (i *Issuer) IsRefreshKind(tokenString string) bool {
	claims, err := i.codec.Parse(tokenString)
	if err != nil {
		return false
	}

	return claims.Kind == KindRefresh
}

// Inspect parses the token once and returns subject and kind, for callers
// that need both without paying for two signature checks.
func (i *Issuer) Inspect(tokenString string) (string, Kind, bool) {
	claims, err := i.codec.Parse(tokenString)
	if err != nil || claims.Subject == "" {
		return "", "", false
	}

	return claims.Subject, claims.Kind, true
}

func (i *Issuer) AccessTokenTTL() time.Duration {
	return i.accessTTL
}

func (i *Issuer) RefreshTokenTTL() time.Duration {
	return i.refreshTTL
}
