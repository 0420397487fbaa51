package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pb"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/tasktransport"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tag marks the gRPC registration of a service in consul.
const Tag = "grpc"

// New discovers the gRPC instances of service in consul and balances each
// endpoint over them round-robin with retries.
func New(apiclient consulsd.Client, service string, logger log.Logger, retryMax int, retryTimeout time.Duration) (taskendpoint.Set, error) {
	var (
		tags        = []string{Tag}
		passingOnly = true
		endpoints   = taskendpoint.Set{}
		instancer   = consulsd.NewInstancer(apiclient, logger, service, tags, passingOnly)
	)
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.CreateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.CreateTaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.TasksEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TasksEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.TaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.UpdateTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UpdateTaskEndpoint = retry
	}
	{
		factory := factoryFor(func(s taskendpoint.Set) endpoint.Endpoint { return s.DeleteTaskEndpoint }, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.DeleteTaskEndpoint = retry
	}
	return endpoints, nil
}

func factoryFor(pick func(taskendpoint.Set) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		conn, err := Dial(instance)
		if err != nil {
			return nil, nil, err
		}
		return pick(tasktransport.NewGRPCClient(conn, logger)), conn, nil
	}
}

// Dial opens a plaintext connection to a TaskSVC instance using the JSON
// codec, with client-side tracing.
func Dial(instance string) (*grpc.ClientConn, error) {
	return grpc.NewClient(
		instance,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.ContentSubtype)),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
}
