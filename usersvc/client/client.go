package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/userendpoint"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/usertransport"
)

// Tag marks the HTTP registration of a service in consul.
const Tag = "http"

// New balances the user endpoints over the HTTP instances of service.
// Registration is not retried: a second attempt after a lost reply would
// report a duplicate email.
func New(apiclient consulsd.Client, service string, logger log.Logger, retryMax int, retryTimeout time.Duration) (userendpoint.Set, error) {
	var (
		tags        = []string{Tag}
		passingOnly = true
		endpoints   = userendpoint.Set{}
		instancer   = consulsd.NewInstancer(apiclient, logger, service, tags, passingOnly)
	)
	{
		factory := factoryFor(func(s userendpoint.Set) endpoint.Endpoint { return s.RegisterEndpoint })
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(1, retryTimeout, balancer)
		endpoints.RegisterEndpoint = retry
	}
	{
		factory := factoryFor(func(s userendpoint.Set) endpoint.Endpoint { return s.ProfileEndpoint })
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.ProfileEndpoint = retry
	}
	{
		factory := factoryFor(func(s userendpoint.Set) endpoint.Endpoint { return s.UpdateProfileEndpoint })
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UpdateProfileEndpoint = retry
	}
	{
		factory := factoryFor(func(s userendpoint.Set) endpoint.Endpoint { return s.SummaryEndpoint })
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.SummaryEndpoint = retry
	}

	return endpoints, nil
}

func factoryFor(pick func(userendpoint.Set) endpoint.Endpoint) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := usertransport.NewHTTPClient(instance)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}
