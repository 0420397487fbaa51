// Package config loads process settings from the environment, with command
// line flags taking precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ichigozero/gtdkit/taskd/authsvc/password"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdkit/taskd/db"
	"golang.org/x/crypto/bcrypt"
)

// Server configures cmd/taskd.
type Server struct {
	HTTPAddr       string        `env:"HTTP_ADDR"        envDefault:":8080"`
	GRPCAddr       string        `env:"GRPC_ADDR"        envDefault:":8082"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	SQLitePath     string        `env:"SQLITE_PATH"      envDefault:"taskd.db"`
	AccessSecret   string        `env:"ACCESS_SECRET"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	BcryptCost     int           `env:"BCRYPT_COST"      envDefault:"10"`
	ConsulAddr     string        `env:"CONSUL_ADDR"`
	OTELEndpoint   string        `env:"OTEL_ENDPOINT"`
	ServiceName    string        `env:"SERVICE_NAME"     envDefault:"taskd"`
}

// LoadServer parses the environment and then args through fs.
func LoadServer(fs *flag.FlagSet, args []string) (Server, error) {
	var c Server
	if err := env.Parse(&c); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&c.HTTPAddr, "http.addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.GRPCAddr, "grpc.addr", c.GRPCAddr, "gRPC listen address")
	fs.StringVar(&c.DatabaseURL, "database.url", c.DatabaseURL, "PostgreSQL URL; SQLite is used when empty")
	fs.StringVar(&c.SQLitePath, "sqlite.path", c.SQLitePath, "SQLite database file")
	fs.DurationVar(&c.AccessTokenTTL, "access.ttl", c.AccessTokenTTL, "access token lifetime")
	fs.IntVar(&c.BcryptCost, "bcrypt.cost", c.BcryptCost, "bcrypt work factor")
	fs.StringVar(&c.ConsulAddr, "consul.addr", c.ConsulAddr, "Consul agent address; registration is skipped when empty")
	fs.StringVar(&c.OTELEndpoint, "otel.endpoint", c.OTELEndpoint, "OTLP/HTTP traces endpoint URL; tracing is off when empty")
	fs.StringVar(&c.ServiceName, "service.name", c.ServiceName, "name registered in Consul and reported in traces")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}

	if err := c.Validate(); err != nil {
		return Server{}, err
	}
	return c, nil
}

func (c Server) Validate() error {
	switch {
	case c.AccessSecret == "":
		return errors.New("ACCESS_SECRET must be set")
	case c.AccessTokenTTL <= 0:
		return fmt.Errorf("access token TTL must be positive, got %s", c.AccessTokenTTL)
	case c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost:
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	case c.DatabaseURL == "" && c.SQLitePath == "":
		return errors.New("one of DATABASE_URL or SQLITE_PATH must be set")
	}
	return nil
}

func (c Server) DB() db.Config {
	return db.Config{DatabaseURL: c.DatabaseURL, SQLitePath: c.SQLitePath}
}

func (c Server) Token() authservice.Config {
	return authservice.Config{AccessSecret: []byte(c.AccessSecret), AccessExpiry: c.AccessTokenTTL}
}

func (c Server) Password() password.Config {
	return password.Config{Cost: c.BcryptCost}
}

// Gateway configures cmd/gateway.
type Gateway struct {
	HTTPAddr     string        `env:"HTTP_ADDR"     envDefault:":8000"`
	ConsulAddr   string        `env:"CONSUL_ADDR"   envDefault:"localhost:8500"`
	Upstream     string        `env:"UPSTREAM"      envDefault:"taskd"`
	RetryMax     int           `env:"RETRY_MAX"     envDefault:"3"`
	RetryTimeout time.Duration `env:"RETRY_TIMEOUT" envDefault:"500ms"`
	OTELEndpoint string        `env:"OTEL_ENDPOINT"`
}

func LoadGateway(fs *flag.FlagSet, args []string) (Gateway, error) {
	var c Gateway
	if err := env.Parse(&c); err != nil {
		return Gateway{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&c.HTTPAddr, "http.addr", c.HTTPAddr, "HTTP listen address")
	fs.StringVar(&c.ConsulAddr, "consul.addr", c.ConsulAddr, "Consul agent address")
	fs.StringVar(&c.Upstream, "upstream", c.Upstream, "Consul service name of the backend")
	fs.IntVar(&c.RetryMax, "retry.max", c.RetryMax, "per-request retries to different instances")
	fs.DurationVar(&c.RetryTimeout, "retry.timeout", c.RetryTimeout, "per-request timeout, including retries")
	fs.StringVar(&c.OTELEndpoint, "otel.endpoint", c.OTELEndpoint, "OTLP/HTTP traces endpoint URL; tracing is off when empty")
	if err := fs.Parse(args); err != nil {
		return Gateway{}, err
	}

	switch {
	case c.Upstream == "":
		return Gateway{}, errors.New("upstream service name must be set")
	case c.RetryMax < 1:
		return Gateway{}, fmt.Errorf("retry max must be at least 1, got %d", c.RetryMax)
	case c.RetryTimeout <= 0:
		return Gateway{}, fmt.Errorf("retry timeout must be positive, got %s", c.RetryTimeout)
	}
	return c, nil
}
