package tasktransport

import (
	"context"
	"errors"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport"
	grpctransport "github.com/go-kit/kit/transport/grpc"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pb"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type grpcServer struct {
	createTask grpctransport.Handler
	tasks      grpctransport.Handler
	task       grpctransport.Handler
	updateTask grpctransport.Handler
	deleteTask grpctransport.Handler
}

func NewGRPCServer(endpoints taskendpoint.Set, logger log.Logger) pb.TaskSVCServer {
	options := []grpctransport.ServerOption{
		grpctransport.ServerBefore(kitjwt.GRPCToContext()),
		grpctransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	return &grpcServer{
		createTask: grpctransport.NewServer(
			endpoints.CreateTaskEndpoint,
			decodeGRPCCreateTaskRequest,
			encodeGRPCCreateTaskResponse,
			options...,
		),
		tasks: grpctransport.NewServer(
			endpoints.TasksEndpoint,
			decodeGRPCTasksRequest,
			encodeGRPCTasksResponse,
			options...,
		),
		task: grpctransport.NewServer(
			endpoints.TaskEndpoint,
			decodeGRPCTaskRequest,
			encodeGRPCTaskResponse,
			options...,
		),
		updateTask: grpctransport.NewServer(
			endpoints.UpdateTaskEndpoint,
			decodeGRPCUpdateTaskRequest,
			encodeGRPCUpdateTaskResponse,
			options...,
		),
		deleteTask: grpctransport.NewServer(
			endpoints.DeleteTaskEndpoint,
			decodeGRPCDeleteTaskRequest,
			encodeGRPCDeleteTaskResponse,
			options...,
		),
	}
}

func (s *grpcServer) CreateTask(ctx context.Context, req *pb.CreateTaskRequest) (*pb.CreateTaskReply, error) {
	_, rep, err := s.createTask.ServeGRPC(ctx, req)
	if err != nil {
		return nil, err2status(err)
	}
	return rep.(*pb.CreateTaskReply), nil
}

func (s *grpcServer) Tasks(ctx context.Context, req *pb.TasksRequest) (*pb.TasksReply, error) {
	_, rep, err := s.tasks.ServeGRPC(ctx, req)
	if err != nil {
		return nil, err2status(err)
	}
	return rep.(*pb.TasksReply), nil
}

func (s *grpcServer) Task(ctx context.Context, req *pb.TaskRequest) (*pb.TaskReply, error) {
	_, rep, err := s.task.ServeGRPC(ctx, req)
	if err != nil {
		return nil, err2status(err)
	}
	return rep.(*pb.TaskReply), nil
}

func (s *grpcServer) UpdateTask(ctx context.Context, req *pb.UpdateTaskRequest) (*pb.UpdateTaskReply, error) {
	_, rep, err := s.updateTask.ServeGRPC(ctx, req)
	if err != nil {
		return nil, err2status(err)
	}
	return rep.(*pb.UpdateTaskReply), nil
}

func (s *grpcServer) DeleteTask(ctx context.Context, req *pb.DeleteTaskRequest) (*pb.DeleteTaskReply, error) {
	_, rep, err := s.deleteTask.ServeGRPC(ctx, req)
	if err != nil {
		return nil, err2status(err)
	}
	return rep.(*pb.DeleteTaskReply), nil
}

// NewGRPCClient returns endpoints backed by a remote TaskSVC. conn must use
// the pb.ContentSubtype codec. The caller's bearer token is forwarded from
// the context.
func NewGRPCClient(conn *grpc.ClientConn, logger log.Logger) taskendpoint.Set {
	options := []grpctransport.ClientOption{
		grpctransport.ClientBefore(kitjwt.ContextToGRPC()),
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = grpctransport.NewClient(
			conn,
			pb.ServiceName,
			"CreateTask",
			encodeGRPCCreateTaskRequest,
			decodeGRPCCreateTaskResponse,
			pb.CreateTaskReply{},
			options...,
		).Endpoint()
		createTaskEndpoint = clientMiddleware("CreateTask", func(err error) interface{} {
			return taskendpoint.CreateTaskResponse{Err: err}
		})(createTaskEndpoint)
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = grpctransport.NewClient(
			conn,
			pb.ServiceName,
			"Tasks",
			encodeGRPCTasksRequest,
			decodeGRPCTasksResponse,
			pb.TasksReply{},
			options...,
		).Endpoint()
		tasksEndpoint = clientMiddleware("Tasks", func(err error) interface{} {
			return taskendpoint.TasksResponse{Err: err}
		})(tasksEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = grpctransport.NewClient(
			conn,
			pb.ServiceName,
			"Task",
			encodeGRPCTaskRequest,
			decodeGRPCTaskResponse,
			pb.TaskReply{},
			options...,
		).Endpoint()
		taskEndpoint = clientMiddleware("Task", func(err error) interface{} {
			return taskendpoint.TaskResponse{Err: err}
		})(taskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = grpctransport.NewClient(
			conn,
			pb.ServiceName,
			"UpdateTask",
			encodeGRPCUpdateTaskRequest,
			decodeGRPCUpdateTaskResponse,
			pb.UpdateTaskReply{},
			options...,
		).Endpoint()
		updateTaskEndpoint = clientMiddleware("UpdateTask", func(err error) interface{} {
			return taskendpoint.UpdateTaskResponse{Err: err}
		})(updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = grpctransport.NewClient(
			conn,
			pb.ServiceName,
			"DeleteTask",
			encodeGRPCDeleteTaskRequest,
			decodeGRPCDeleteTaskResponse,
			pb.DeleteTaskReply{},
			options...,
		).Endpoint()
		deleteTaskEndpoint = clientMiddleware("DeleteTask", func(err error) interface{} {
			return taskendpoint.DeleteTaskResponse{Err: err}
		})(deleteTaskEndpoint)
	}

	return taskendpoint.Set{
		CreateTaskEndpoint: createTaskEndpoint,
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
	}
}

// clientMiddleware turns a domain status into a failed response built by
// failed, so that only transport failures reach the circuit breaker.
func clientMiddleware(name string, failed func(error) interface{}) endpoint.Middleware {
	breaker := circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
	}))

	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return breaker(func(ctx context.Context, request interface{}) (interface{}, error) {
			response, err := next(ctx, request)
			if derr := status2err(err); derr != nil {
				return failed(derr), nil
			}
			return response, err
		})
	}
}

func err2status(err error) error {
	switch {
	case errors.Is(err, tasksvc.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, tasksvc.ErrInvalidArgument.Error())
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, authsvc.ErrUnauthenticated.Error())
	case errors.Is(err, tasksvc.ErrNotFoundOrForbidden):
		return status.Error(codes.PermissionDenied, tasksvc.ErrNotFoundOrForbidden.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

// status2err returns the domain error a status stands for, or nil when the
// status is not a domain answer.
func status2err(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return tasksvc.ErrInvalidArgument
	case codes.Unauthenticated:
		return authsvc.ErrUnauthenticated
	case codes.PermissionDenied:
		return tasksvc.ErrNotFoundOrForbidden
	}
	return nil
}

func taskToPB(t tasksvc.Task) *pb.Task {
	return &pb.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func pbToTask(t *pb.Task) tasksvc.Task {
	if t == nil {
		return tasksvc.Task{}
	}
	return tasksvc.Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      tasksvc.Status(t.Status),
		Priority:    tasksvc.Priority(t.Priority),
		DueDate:     t.DueDate,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// The server-side encoders surface a failed response as an error so that
// the handler maps it onto a status code.

func decodeGRPCCreateTaskRequest(_ context.Context, grpcReq interface{}) (interface{}, error) {
	req := grpcReq.(*pb.CreateTaskRequest)
	return taskendpoint.CreateTaskRequest{NewTask: tasksvc.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      tasksvc.Status(req.Status),
		Priority:    tasksvc.Priority(req.Priority),
		DueDate:     req.DueDate,
	}}, nil
}

func encodeGRPCCreateTaskResponse(_ context.Context, response interface{}) (interface{}, error) {
	resp := response.(taskendpoint.CreateTaskResponse)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &pb.CreateTaskReply{
		ID:          resp.Task.ID,
		Title:       resp.Task.Title,
		Description: resp.Task.Description,
	}, nil
}

func encodeGRPCCreateTaskRequest(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(taskendpoint.CreateTaskRequest)
	return &pb.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Status:      string(req.Status),
		Priority:    string(req.Priority),
		DueDate:     req.DueDate,
	}, nil
}

func decodeGRPCCreateTaskResponse(_ context.Context, grpcReply interface{}) (interface{}, error) {
	reply := grpcReply.(*pb.CreateTaskReply)
	return taskendpoint.CreateTaskResponse{Task: tasksvc.CreatedTask{
		ID:          reply.ID,
		Title:       reply.Title,
		Description: reply.Description,
	}}, nil
}

func decodeGRPCTasksRequest(_ context.Context, grpcReq interface{}) (interface{}, error) {
	req := grpcReq.(*pb.TasksRequest)
	return taskendpoint.TasksRequest{Status: tasksvc.Status(req.Status)}, nil
}

func encodeGRPCTasksResponse(_ context.Context, response interface{}) (interface{}, error) {
	resp := response.(taskendpoint.TasksResponse)
	if resp.Err != nil {
		return nil, resp.Err
	}
	tasks := make([]*pb.Task, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		tasks = append(tasks, taskToPB(t))
	}
	return &pb.TasksReply{Tasks: tasks}, nil
}

func encodeGRPCTasksRequest(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(taskendpoint.TasksRequest)
	return &pb.TasksRequest{Status: string(req.Status)}, nil
}

func decodeGRPCTasksResponse(_ context.Context, grpcReply interface{}) (interface{}, error) {
	reply := grpcReply.(*pb.TasksReply)
	tasks := make([]tasksvc.Task, 0, len(reply.Tasks))
	for _, t := range reply.Tasks {
		tasks = append(tasks, pbToTask(t))
	}
	return taskendpoint.TasksResponse{Tasks: tasks}, nil
}

func decodeGRPCTaskRequest(_ context.Context, grpcReq interface{}) (interface{}, error) {
	req := grpcReq.(*pb.TaskRequest)
	return taskendpoint.TaskRequest{TaskID: req.TaskID}, nil
}

func encodeGRPCTaskResponse(_ context.Context, response interface{}) (interface{}, error) {
	resp := response.(taskendpoint.TaskResponse)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &pb.TaskReply{Task: taskToPB(resp.Task)}, nil
}

func encodeGRPCTaskRequest(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(taskendpoint.TaskRequest)
	return &pb.TaskRequest{TaskID: req.TaskID}, nil
}

func decodeGRPCTaskResponse(_ context.Context, grpcReply interface{}) (interface{}, error) {
	reply := grpcReply.(*pb.TaskReply)
	return taskendpoint.TaskResponse{Task: pbToTask(reply.Task)}, nil
}

func decodeGRPCUpdateTaskRequest(_ context.Context, grpcReq interface{}) (interface{}, error) {
	req := grpcReq.(*pb.UpdateTaskRequest)
	patch := tasksvc.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		s := tasksvc.Status(*req.Status)
		patch.Status = &s
	}
	if req.Priority != nil {
		p := tasksvc.Priority(*req.Priority)
		patch.Priority = &p
	}
	return taskendpoint.UpdateTaskRequest{TaskID: req.TaskID, TaskPatch: patch}, nil
}

func encodeGRPCUpdateTaskResponse(_ context.Context, response interface{}) (interface{}, error) {
	resp := response.(taskendpoint.UpdateTaskResponse)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &pb.UpdateTaskReply{Task: taskToPB(resp.Task)}, nil
}

func encodeGRPCUpdateTaskRequest(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(taskendpoint.UpdateTaskRequest)
	out := &pb.UpdateTaskRequest{
		TaskID:      req.TaskID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		s := string(*req.Status)
		out.Status = &s
	}
	if req.Priority != nil {
		p := string(*req.Priority)
		out.Priority = &p
	}
	return out, nil
}

func decodeGRPCUpdateTaskResponse(_ context.Context, grpcReply interface{}) (interface{}, error) {
	reply := grpcReply.(*pb.UpdateTaskReply)
	return taskendpoint.UpdateTaskResponse{Task: pbToTask(reply.Task)}, nil
}

func decodeGRPCDeleteTaskRequest(_ context.Context, grpcReq interface{}) (interface{}, error) {
	req := grpcReq.(*pb.DeleteTaskRequest)
	return taskendpoint.DeleteTaskRequest{TaskID: req.TaskID}, nil
}

func encodeGRPCDeleteTaskResponse(_ context.Context, response interface{}) (interface{}, error) {
	resp := response.(taskendpoint.DeleteTaskResponse)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &pb.DeleteTaskReply{Task: taskToPB(resp.Task)}, nil
}

func encodeGRPCDeleteTaskRequest(_ context.Context, request interface{}) (interface{}, error) {
	req := request.(taskendpoint.DeleteTaskRequest)
	return &pb.DeleteTaskRequest{TaskID: req.TaskID}, nil
}

func decodeGRPCDeleteTaskResponse(_ context.Context, grpcReply interface{}) (interface{}, error) {
	reply := grpcReply.(*pb.DeleteTaskReply)
	return taskendpoint.DeleteTaskResponse{Task: pbToTask(reply.Task)}, nil
}
