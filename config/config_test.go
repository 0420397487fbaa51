package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	return flag.NewFlagSet("test", flag.ContinueOnError)
}

func TestLoadServer_Defaults(t *testing.T) {
	t.Setenv("ACCESS_SECRET", "s3cret")

	c, err := LoadServer(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":8082", c.GRPCAddr)
	assert.Equal(t, "taskd.db", c.SQLitePath)
	assert.Equal(t, 30*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, "taskd", c.ServiceName)
	assert.Empty(t, c.ConsulAddr)

	assert.Equal(t, []byte("s3cret"), c.Token().AccessSecret)
	assert.Equal(t, 10, c.Password().Cost)
	assert.Equal(t, "taskd.db", c.DB().SQLitePath)
}

func TestLoadServer_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("ACCESS_SECRET", "s3cret")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")

	c, err := LoadServer(newFlagSet(), []string{"-http.addr", ":9001", "-bcrypt.cost", "12"})
	require.NoError(t, err)
	assert.Equal(t, ":9001", c.HTTPAddr)
	assert.Equal(t, time.Hour, c.AccessTokenTTL)
	assert.Equal(t, 12, c.BcryptCost)
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"missing secret", nil, nil},
		{"zero ttl", map[string]string{"ACCESS_SECRET": "s"}, []string{"-access.ttl", "0s"}},
		{"negative ttl", map[string]string{"ACCESS_SECRET": "s", "ACCESS_TOKEN_TTL": "-1m"}, nil},
		{"cost too low", map[string]string{"ACCESS_SECRET": "s"}, []string{"-bcrypt.cost", "2"}},
		{"cost too high", map[string]string{"ACCESS_SECRET": "s", "BCRYPT_COST": "40"}, nil},
		{"no database", map[string]string{"ACCESS_SECRET": "s"}, []string{"-sqlite.path", ""}},
		{"bad duration", map[string]string{"ACCESS_SECRET": "s", "ACCESS_TOKEN_TTL": "soon"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ACCESS_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadServer(newFlagSet(), tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadGateway(t *testing.T) {
	t.Setenv("UPSTREAM", "tasks")

	c, err := LoadGateway(newFlagSet(), []string{"-retry.max", "5"})
	require.NoError(t, err)
	assert.Equal(t, "tasks", c.Upstream)
	assert.Equal(t, 5, c.RetryMax)
	assert.Equal(t, 500*time.Millisecond, c.RetryTimeout)

	_, err = LoadGateway(newFlagSet(), []string{"-retry.max", "0"})
	assert.Error(t, err)
}
