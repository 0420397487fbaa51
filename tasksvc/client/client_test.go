package client

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/log"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pb"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// fakeConsul answers the first blocking query with its entries and parks
// every later one until the test ends.
type fakeConsul struct {
	entries []*api.ServiceEntry
	done    chan struct{}
}

func (c *fakeConsul) Register(*api.AgentServiceRegistration) error   { return nil }
func (c *fakeConsul) Deregister(*api.AgentServiceRegistration) error { return nil }

func (c *fakeConsul) Service(service, tag string, _ bool, opts *api.QueryOptions) ([]*api.ServiceEntry, *api.QueryMeta, error) {
	if opts != nil && opts.WaitIndex > 0 {
		<-c.done
		return nil, nil, context.Canceled
	}
	var out []*api.ServiceEntry
	for _, e := range c.entries {
		if e.Service.Service != service {
			continue
		}
		for _, t := range e.Service.Tags {
			if t == tag {
				out = append(out, e)
				break
			}
		}
	}
	return out, &api.QueryMeta{LastIndex: 1}, nil
}

type fakeTaskSVC struct {
	taskCalls   atomic.Int32
	deleteCalls atomic.Int32
	lastAuth    atomic.Value
}

func (s *fakeTaskSVC) CreateTask(context.Context, *pb.CreateTaskRequest) (*pb.CreateTaskReply, error) {
	return nil, status.Error(codes.Unimplemented, "unused")
}

func (s *fakeTaskSVC) Tasks(ctx context.Context, req *pb.TasksRequest) (*pb.TasksReply, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get("authorization"); len(v) > 0 {
		s.lastAuth.Store(v[0])
	}
	return &pb.TasksReply{Tasks: []*pb.Task{{ID: "t1", Title: "Buy milk", Status: req.Status}}}, nil
}

func (s *fakeTaskSVC) Task(context.Context, *pb.TaskRequest) (*pb.TaskReply, error) {
	s.taskCalls.Add(1)
	return nil, status.Error(codes.Unavailable, "try elsewhere")
}

func (s *fakeTaskSVC) UpdateTask(context.Context, *pb.UpdateTaskRequest) (*pb.UpdateTaskReply, error) {
	return nil, status.Error(codes.Unimplemented, "unused")
}

func (s *fakeTaskSVC) DeleteTask(context.Context, *pb.DeleteTaskRequest) (*pb.DeleteTaskReply, error) {
	s.deleteCalls.Add(1)
	return nil, status.Error(codes.PermissionDenied, tasksvc.ErrNotFoundOrForbidden.Error())
}

func newClient(t *testing.T, retryMax int) (taskendpoint.Set, *fakeTaskSVC) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	fake := &fakeTaskSVC{}
	pb.RegisterTaskSVCServer(srv, fake)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	host, port, err := net.SplitHostPort(lis.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	consul := &fakeConsul{
		entries: []*api.ServiceEntry{
			{Node: &api.Node{Address: host}, Service: &api.AgentService{Service: "taskd", Address: host, Port: p, Tags: []string{Tag}}},
			{Node: &api.Node{Address: host}, Service: &api.AgentService{Service: "taskd", Address: host, Port: 1, Tags: []string{"http"}}},
		},
		done: make(chan struct{}),
	}
	t.Cleanup(func() { close(consul.done) })

	set, err := New(consul, "taskd", log.NewNopLogger(), retryMax, 2*time.Second)
	require.NoError(t, err)
	return set, fake
}

func TestNew_ForwardsToken(t *testing.T) {
	set, fake := newClient(t, 3)
	ctx := context.WithValue(context.Background(), kitjwt.JWTContextKey, "tok")

	tasks, err := set.Tasks(ctx, "", tasksvc.StatusPending)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, tasksvc.StatusPending, tasks[0].Status)
	assert.Equal(t, "Bearer tok", fake.lastAuth.Load())
}

func TestNew_DomainErrorsAreNotRetried(t *testing.T) {
	set, fake := newClient(t, 3)

	_, err := set.DeleteTask(context.Background(), "", "t1")
	assert.ErrorIs(t, err, tasksvc.ErrNotFoundOrForbidden)
	assert.Equal(t, int32(1), fake.deleteCalls.Load())
}

func TestNew_TransportErrorsAreRetried(t *testing.T) {
	set, fake := newClient(t, 3)

	_, err := set.Task(context.Background(), "", "t1")
	assert.Error(t, err)
	assert.Equal(t, int32(3), fake.taskCalls.Load())
}
