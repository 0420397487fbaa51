package authservice

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T, secret string, expiry time.Duration) *tokenizer {
	t.Helper()
	tk, err := NewTokenizer(Config{AccessSecret: []byte(secret), AccessExpiry: expiry})
	require.NoError(t, err)
	return tk.(*tokenizer)
}

func TestTokenizer_RoundTrip(t *testing.T) {
	tk := newTokenizer(t, "secret", time.Hour)

	token, err := tk.Sign(authsvc.Identity{ID: "user-1", Email: "alice@example.com"})
	require.NoError(t, err)

	claims, err := tk.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, authsvc.Identity{ID: "user-1", Email: "alice@example.com"}, claims.Identity())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestTokenizer_RejectsEverythingWithOneError(t *testing.T) {
	tk := newTokenizer(t, "secret", time.Hour)
	good, err := tk.Sign(authsvc.Identity{ID: "user-1", Email: "a@example.com"})
	require.NoError(t, err)

	expired := newTokenizer(t, "secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Sign(authsvc.Identity{ID: "user-1"})
	require.NoError(t, err)

	otherKey, err := newTokenizer(t, "other", time.Hour).Sign(authsvc.Identity{ID: "user-1"})
	require.NoError(t, err)

	noSubject, err := tk.Sign(authsvc.Identity{Email: "a@example.com"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, token := range map[string]string{
		"empty":      "",
		"malformed":  "not-a-jwt",
		"expired":    expiredToken,
		"other key":  otherKey,
		"no subject": noSubject,
		"alg none":   none,
		"no expiry":  noExpiry,
		"tampered":   tampered,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tk.Verify(token)
			assert.Equal(t, authsvc.ErrUnauthenticated, err)
		})
	}
}

func TestNewTokenizer_Validation(t *testing.T) {
	_, err := NewTokenizer(Config{})
	assert.Error(t, err)

	_, err = NewTokenizer(Config{AccessSecret: []byte("s"), AccessExpiry: -time.Second})
	assert.Error(t, err)

	tk := newTokenizer(t, "s", 0)
	assert.Equal(t, DefaultAccessTokenExpiry, tk.expiry)
}
