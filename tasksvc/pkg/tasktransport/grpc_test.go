package tasktransport

import (
	"context"
	"errors"
	"net"
	"testing"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pb"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

func newGRPCClient(t *testing.T) (taskendpoint.Set, backend) {
	t.Helper()
	b := newBackend(t)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	pb.RegisterTaskSVCServer(srv, NewGRPCServer(b.endpoints, log.NewNopLogger()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.ContentSubtype)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewGRPCClient(conn, log.NewNopLogger()), b
}

func withToken(token string) context.Context {
	return context.WithValue(context.Background(), kitjwt.JWTContextKey, token)
}

func TestGRPC_TaskLifecycle(t *testing.T) {
	client, b := newGRPCClient(t)
	alice := withToken(b.aliceToken)
	desc := "2l"

	created, err := client.CreateTask(alice, "", tasksvc.NewTask{Title: "Buy milk", Description: &desc, DueDate: "2025-12-31"})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", created.Title)
	require.NotNil(t, created.Description)
	assert.Equal(t, "2l", *created.Description)

	tasks, err := client.Tasks(alice, "", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.Equal(t, tasksvc.StatusPending, tasks[0].Status)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, 2025, tasks[0].DueDate.UTC().Year())

	completed := tasksvc.StatusCompleted
	empty := ""
	updated, err := client.UpdateTask(alice, "", created.ID, tasksvc.TaskPatch{Status: &completed, Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, tasksvc.StatusCompleted, updated.Status)
	assert.Nil(t, updated.Description)

	task, err := client.Task(alice, "", created.ID)
	require.NoError(t, err)
	assert.Equal(t, tasksvc.StatusCompleted, task.Status)

	deleted, err := client.DeleteTask(alice, "", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	tasks, err = client.Tasks(alice, "", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestGRPC_DomainErrors(t *testing.T) {
	client, b := newGRPCClient(t)
	alice, bob := withToken(b.aliceToken), withToken(b.bobToken)

	created, err := client.CreateTask(alice, "", tasksvc.NewTask{Title: "Buy milk"})
	require.NoError(t, err)

	_, err = client.DeleteTask(bob, "", created.ID)
	assert.ErrorIs(t, err, tasksvc.ErrNotFoundOrForbidden)
	_, err = client.Task(alice, "", created.ID)
	assert.NoError(t, err)

	_, err = client.CreateTask(alice, "", tasksvc.NewTask{Title: ""})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)

	_, err = client.Tasks(context.Background(), "", "")
	assert.ErrorIs(t, err, authsvc.ErrUnauthenticated)

	_, err = client.Tasks(withToken("garbage"), "", "")
	assert.ErrorIs(t, err, authsvc.ErrUnauthenticated)
}

func TestErr2Status(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{tasksvc.ErrInvalidArgument, codes.InvalidArgument},
		{authsvc.ErrUnauthenticated, codes.Unauthenticated},
		{tasksvc.ErrNotFoundOrForbidden, codes.PermissionDenied},
		{errors.New("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		st, ok := status.FromError(err2status(tt.err))
		require.True(t, ok)
		assert.Equal(t, tt.code, st.Code())
		if tt.code == codes.Internal {
			assert.Equal(t, "internal error", st.Message())
		}
		assert.Equal(t, tt.code != codes.Internal, status2err(err2status(tt.err)) != nil)
	}
	assert.Nil(t, status2err(errors.New("connection refused")))
}
