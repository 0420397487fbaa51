package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authtransport"
)

// Tag marks the HTTP registration of a service in consul.
const Tag = "http"

func New(apiclient consulsd.Client, service string, logger log.Logger, retryMax int, retryTimeout time.Duration) (authendpoint.Set, error) {
	var (
		tags        = []string{Tag}
		passingOnly = true
		endpoints   = authendpoint.Set{}
		instancer   = consulsd.NewInstancer(apiclient, logger, service, tags, passingOnly)
	)
	{
		factory := factoryFor(func(s authendpoint.Set) endpoint.Endpoint { return s.LoginEndpoint })
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.LoginEndpoint = retry
	}

	return endpoints, nil
}

func factoryFor(pick func(authendpoint.Set) endpoint.Endpoint) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := authtransport.NewHTTPClient(instance)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}
