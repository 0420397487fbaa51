package client

import (
	"context"
	"net"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authtransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConsul struct {
	entries []*api.ServiceEntry
	done    chan struct{}
}

func (c *staticConsul) Register(*api.AgentServiceRegistration) error   { return nil }
func (c *staticConsul) Deregister(*api.AgentServiceRegistration) error { return nil }

func (c *staticConsul) Service(_, _ string, _ bool, opts *api.QueryOptions) ([]*api.ServiceEntry, *api.QueryMeta, error) {
	if opts != nil && opts.WaitIndex > 0 {
		<-c.done
		return nil, nil, context.Canceled
	}
	return c.entries, &api.QueryMeta{LastIndex: 1}, nil
}

type countingLogin struct{ calls atomic.Int32 }

func (s *countingLogin) Login(_ context.Context, email, password string) (authsvc.Tokens, error) {
	s.calls.Add(1)
	if password != "pw1" {
		return authsvc.Tokens{}, authsvc.ErrInvalidCredentials
	}
	return authsvc.Tokens{AccessToken: "tok"}, nil
}

func TestNew(t *testing.T) {
	svc := &countingLogin{}
	srv := httptest.NewServer(authtransport.NewHTTPHandler(authendpoint.New(svc, log.NewNopLogger()), log.NewNopLogger()))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	consul := &staticConsul{
		entries: []*api.ServiceEntry{{
			Node:    &api.Node{Address: host},
			Service: &api.AgentService{Service: "taskd", Address: host, Port: p, Tags: []string{Tag}},
		}},
		done: make(chan struct{}),
	}
	t.Cleanup(func() { close(consul.done) })

	set, err := New(consul, "taskd", log.NewNopLogger(), 3, time.Second)
	require.NoError(t, err)

	tokens, err := set.Login(context.Background(), "alice@example.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "tok", tokens.AccessToken)

	_, err = set.Login(context.Background(), "alice@example.com", "nope")
	assert.ErrorIs(t, err, authsvc.ErrInvalidCredentials)
	assert.Equal(t, int32(2), svc.calls.Load())
}
