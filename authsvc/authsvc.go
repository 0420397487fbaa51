package authsvc

import (
	"context"
	"errors"
	"time"
)

// Identity is the minimal authenticated principal. It never carries
// password material.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c Claims) Identity() Identity {
	return Identity{ID: c.Subject, Email: c.Email}
}

type Tokens struct {
	AccessToken string `json:"access_token"`
}

type contextKey string

const identityContextKey contextKey = "Identity"

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.ID == "" {
		return Identity{}, false
	}
	return id, true
}

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)
