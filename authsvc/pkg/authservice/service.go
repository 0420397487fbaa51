package authservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/password"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
)

type Service interface {
	Login(ctx context.Context, email, password string) (authsvc.Tokens, error)
}

func New(users usersvc.UserRepository, h password.Hasher, t Tokenizer, logger log.Logger) (Service, error) {
	basic, err := NewBasicService(users, h, t)
	if err != nil {
		return nil, err
	}

	var svc Service
	{
		svc = basic
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc, nil
}

// Authenticator is the trust boundary: credential lookup, hash verification
// and token issuance.
type Authenticator struct {
	users     usersvc.UserRepository
	hasher    password.Hasher
	tokenizer Tokenizer

	// dummyHash is compared against when there is no stored hash to check,
	// so every failure path costs one bcrypt comparison.
	dummyHash string
}

func NewBasicService(users usersvc.UserRepository, h password.Hasher, t Tokenizer) (*Authenticator, error) {
	dummy, err := h.Hash(uuidV4().String())
	if err != nil {
		return nil, err
	}
	return &Authenticator{users: users, hasher: h, tokenizer: t, dummyHash: dummy}, nil
}

func (s *Authenticator) Authenticate(ctx context.Context, email, plaintext string) (authsvc.Identity, error) {
	if strings.TrimSpace(email) == "" || plaintext == "" {
		s.hasher.Verify(plaintext, s.dummyHash)
		return authsvc.Identity{}, authsvc.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, usersvc.ErrUserNotFound) {
		s.hasher.Verify(plaintext, s.dummyHash)
		return authsvc.Identity{}, authsvc.ErrInvalidCredentials
	}
	if err != nil {
		return authsvc.Identity{}, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Verify(plaintext, user.PasswordHash) {
		return authsvc.Identity{}, authsvc.ErrInvalidCredentials
	}

	return authsvc.Identity{ID: user.ID, Email: user.Email}, nil
}

func (s *Authenticator) IssueToken(id authsvc.Identity) (string, error) {
	token, err := s.tokenizer.Sign(id)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *Authenticator) Login(ctx context.Context, email, plaintext string) (authsvc.Tokens, error) {
	id, err := s.Authenticate(ctx, email, plaintext)
	if err != nil {
		return authsvc.Tokens{}, err
	}

	token, err := s.IssueToken(id)
	if err != nil {
		return authsvc.Tokens{}, err
	}
	return authsvc.Tokens{AccessToken: token}, nil
}
