package authservice

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/twinj/uuid"
)

const DefaultAccessTokenExpiry = 30 * time.Minute

type Config struct {
	AccessSecret []byte
	AccessExpiry time.Duration
}

type Tokenizer interface {
	Sign(id authsvc.Identity) (string, error)
	Verify(token string) (authsvc.Claims, error)
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type tokenizer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenizer(c Config) (Tokenizer, error) {
	if len(c.AccessSecret) == 0 {
		return nil, errors.New("access secret must not be empty")
	}
	expiry := c.AccessExpiry
	if expiry == 0 {
		expiry = DefaultAccessTokenExpiry
	}
	if expiry < 0 {
		return nil, errors.New("access token expiry must be positive")
	}
	return &tokenizer{secret: c.AccessSecret, expiry: expiry, now: time.Now}, nil
}

var uuidV4 = uuid.NewV4

func (t *tokenizer) Sign(id authsvc.Identity) (string, error) {
	now := t.now()
	claims := accessClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuidV4().String(),
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify fails closed: every rejection is authsvc.ErrUnauthenticated.
func (t *tokenizer) Verify(token string) (authsvc.Claims, error) {
	if token == "" {
		return authsvc.Claims{}, authsvc.ErrUnauthenticated
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &accessClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return authsvc.Claims{}, authsvc.ErrUnauthenticated
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return authsvc.Claims{}, authsvc.ErrUnauthenticated
	}

	out := authsvc.Claims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
