package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"iotdashboard/backend/libs/password"
)

// ErrInvalidCredentials is returned for unknown users or wrong passwords.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims represents the dashboard JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// GenerateToken issues a JWT for a dashboard viewer.
func (t *TokenService) GenerateToken(subject, role string) (string, error) {
	if subject == "" {
		return "", errors.New("token: subject is required")
	}

	now := t.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies and decodes a JWT.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("token: invalid claims")
}

// Authenticator checks viewer credentials against configured bcrypt hashes.
type Authenticator struct {
	users  map[string]string
	hasher password.Hasher
	tokens *TokenService
}

// NewAuthenticator returns authenticator. users maps username to bcrypt hash.
func NewAuthenticator(users map[string]string, hasher password.Hasher, tokens *TokenService) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens}
}

// Login returns a signed token for valid credentials.
func (a *Authenticator) Login(_ context.Context, username, secret string) (string, error) {
	hash, ok := a.users[strings.TrimSpace(username)]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := a.hasher.Compare(hash, secret); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	return a.tokens.GenerateToken(strings.TrimSpace(username), "viewer")
}
