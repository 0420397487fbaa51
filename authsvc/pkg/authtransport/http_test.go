package authtransport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/password"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdkit/taskd/db"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
	usergorm "github.com/ichigozero/gtdkit/taskd/usersvc/db/gorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newServer(t *testing.T) (*httptest.Server, authservice.Tokenizer) {
	t.Helper()
	conn, err := db.Open(db.Config{SQLitePath: filepath.Join(t.TempDir(), "auth.db")}, log.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	hasher, err := password.New(password.Config{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	hash, err := hasher.Hash("pw1")
	require.NoError(t, err)

	users := usergorm.NewUserRepository(conn)
	_, err = users.Create(context.Background(), usersvc.User{Email: "alice@example.com", PasswordHash: hash})
	require.NoError(t, err)

	tokenizer, err := authservice.NewTokenizer(authservice.Config{AccessSecret: []byte("test-secret")})
	require.NoError(t, err)
	svc, err := authservice.New(users, hasher, tokenizer, log.NewNopLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(NewHTTPHandler(authendpoint.New(svc, log.NewNopLogger()), log.NewNopLogger()))
	t.Cleanup(srv.Close)
	return srv, tokenizer
}

func TestHTTP_Login(t *testing.T) {
	srv, tokenizer := newServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"success", `{"email":"Alice@Example.com","password":"pw1"}`, http.StatusOK},
		{"wrong password", `{"email":"alice@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"unknown email", `{"email":"nobody@example.com","password":"pw1"}`, http.StatusUnauthorized},
		{"malformed", `{"email":`, http.StatusBadRequest},
	}
	var failures []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/auth/login", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			if tt.code == http.StatusUnauthorized {
				failures = append(failures, string(body))
			}
			if tt.code == http.StatusOK {
				assert.Contains(t, string(body), `"access_token"`)
			}
		})
	}
	require.Len(t, failures, 2)
	assert.Equal(t, failures[0], failures[1])

	set, err := NewHTTPClient(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	tokens, err := set.Login(context.Background(), "alice@example.com", "pw1")
	require.NoError(t, err)
	claims, err := tokenizer.Verify(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)

	_, err = set.Login(context.Background(), "alice@example.com", "nope")
	assert.ErrorIs(t, err, authsvc.ErrInvalidCredentials)
}
