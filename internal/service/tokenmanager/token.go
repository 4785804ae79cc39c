package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultTTL           = 24 * time.Hour
	defaultSigningMethod = "HS256"
)

// Operator token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetime
	// If not set than default is used
	TTL time.Duration
}

type TokenManager struct {
	key string
	alg jwt.SigningMethod
	ttl time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}

	return &TokenManager{
		key: cfg.SecretKey,
		alg: alg,
		ttl: cfg.TTL,
	}, nil
}

// Issue signs token for operator identified by subject
func (m *TokenManager) Issue(subject string) (token string, expiresAt time.Time, err error) {
	if subject == "" {
		return "", expiresAt, errors.New("token subject must not be empty")
	}

	now := time.Now().Truncate(time.Second)
	expiresAt = now.Add(m.ttl)

	t := jwt.NewWithClaims(m.alg, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	token, err = t.SignedString([]byte(m.key))
	if err != nil {
		return "", expiresAt, fmt.Errorf("error while signing token. Err: %w", err)
	}

	return token, expiresAt, nil
}

// Parse validates token and returns its subject
func (m *TokenManager) Parse(token string) (subject string, err error) {
	claims := &jwt.RegisteredClaims{}

	_, err = jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}
