package taskendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskservice"
)

type Set struct {
	CreateTaskEndpoint endpoint.Endpoint
	TasksEndpoint      endpoint.Endpoint
	TaskEndpoint       endpoint.Endpoint
	UpdateTaskEndpoint endpoint.Endpoint
	DeleteTaskEndpoint endpoint.Endpoint
}

// New wires every endpoint behind authn, which must place the caller's
// authsvc.Identity into the context.
func New(svc taskservice.Service, authn endpoint.Middleware, logger log.Logger) Set {
	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = MakeCreateTaskEndpoint(svc)
		createTaskEndpoint = authn(createTaskEndpoint)
		createTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateTask"))(createTaskEndpoint)
	}
	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = MakeTasksEndpoint(svc)
		tasksEndpoint = authn(tasksEndpoint)
		tasksEndpoint = LoggingMiddleware(log.With(logger, "method", "Tasks"))(tasksEndpoint)
	}
	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = MakeTaskEndpoint(svc)
		taskEndpoint = authn(taskEndpoint)
		taskEndpoint = LoggingMiddleware(log.With(logger, "method", "Task"))(taskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = MakeUpdateTaskEndpoint(svc)
		updateTaskEndpoint = authn(updateTaskEndpoint)
		updateTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateTask"))(updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = MakeDeleteTaskEndpoint(svc)
		deleteTaskEndpoint = authn(deleteTaskEndpoint)
		deleteTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteTask"))(deleteTaskEndpoint)
	}

	return Set{
		CreateTaskEndpoint: createTaskEndpoint,
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
	}
}

// The Set methods implement taskservice.Service for clients. ownerID is
// ignored: the server derives the owner from the bearer token carried in ctx.

func (s Set) CreateTask(ctx context.Context, _ string, in tasksvc.NewTask) (tasksvc.CreatedTask, error) {
	resp, err := s.CreateTaskEndpoint(ctx, CreateTaskRequest{NewTask: in})
	if err != nil {
		return tasksvc.CreatedTask{}, err
	}
	response := resp.(CreateTaskResponse)
	return response.Task, response.Err
}

func (s Set) Tasks(ctx context.Context, _ string, status tasksvc.Status) ([]tasksvc.Task, error) {
	resp, err := s.TasksEndpoint(ctx, TasksRequest{Status: status})
	if err != nil {
		return nil, err
	}
	response := resp.(TasksResponse)
	return response.Tasks, response.Err
}

func (s Set) Task(ctx context.Context, _ string, taskID string) (tasksvc.Task, error) {
	resp, err := s.TaskEndpoint(ctx, TaskRequest{TaskID: taskID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) UpdateTask(ctx context.Context, _ string, taskID string, patch tasksvc.TaskPatch) (tasksvc.Task, error) {
	resp, err := s.UpdateTaskEndpoint(ctx, UpdateTaskRequest{TaskID: taskID, TaskPatch: patch})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(UpdateTaskResponse)
	return response.Task, response.Err
}

func (s Set) DeleteTask(ctx context.Context, _ string, taskID string) (tasksvc.Task, error) {
	resp, err := s.DeleteTaskEndpoint(ctx, DeleteTaskRequest{TaskID: taskID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(DeleteTaskResponse)
	return response.Task, response.Err
}

func MakeCreateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, err := identity(ctx)
		if err != nil {
			return nil, err
		}

		req := request.(CreateTaskRequest)
		t, err := s.CreateTask(ctx, id.ID, req.NewTask)
		return CreateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeTasksEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, err := identity(ctx)
		if err != nil {
			return nil, err
		}

		req := request.(TasksRequest)
		t, err := s.Tasks(ctx, id.ID, req.Status)
		return TasksResponse{Tasks: t, Err: err}, nil
	}
}

func MakeTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, err := identity(ctx)
		if err != nil {
			return nil, err
		}

		req := request.(TaskRequest)
		t, err := s.Task(ctx, id.ID, req.TaskID)
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeUpdateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, err := identity(ctx)
		if err != nil {
			return nil, err
		}

		req := request.(UpdateTaskRequest)
		t, err := s.UpdateTask(ctx, id.ID, req.TaskID, req.TaskPatch)
		return UpdateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeDeleteTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, err := identity(ctx)
		if err != nil {
			return nil, err
		}

		req := request.(DeleteTaskRequest)
		t, err := s.DeleteTask(ctx, id.ID, req.TaskID)
		return DeleteTaskResponse{Task: t, Err: err}, nil
	}
}

func identity(ctx context.Context) (authsvc.Identity, error) {
	id, ok := authsvc.FromContext(ctx)
	if !ok {
		return authsvc.Identity{}, authsvc.ErrUnauthenticated
	}
	return id, nil
}

var (
	_ endpoint.Failer = CreateTaskResponse{}
	_ endpoint.Failer = TasksResponse{}
	_ endpoint.Failer = TaskResponse{}
	_ endpoint.Failer = UpdateTaskResponse{}
	_ endpoint.Failer = DeleteTaskResponse{}
)

type CreateTaskRequest struct {
	tasksvc.NewTask
}

type CreateTaskResponse struct {
	Task tasksvc.CreatedTask `json:"task"`
	Err  error               `json:"-"`
}

func (r CreateTaskResponse) Failed() error { return r.Err }

type TasksRequest struct {
	Status tasksvc.Status
}

type TasksResponse struct {
	Tasks []tasksvc.Task `json:"tasks"`
	Err   error          `json:"-"`
}

func (r TasksResponse) Failed() error { return r.Err }

type TaskRequest struct {
	TaskID string
}

type TaskResponse struct {
	Task tasksvc.Task `json:"task"`
	Err  error        `json:"-"`
}

func (r TaskResponse) Failed() error { return r.Err }

type UpdateTaskRequest struct {
	TaskID string `json:"-"`
	tasksvc.TaskPatch
}

type UpdateTaskResponse struct {
	Task tasksvc.Task `json:"task"`
	Err  error        `json:"-"`
}

func (r UpdateTaskResponse) Failed() error { return r.Err }

type DeleteTaskRequest struct {
	TaskID string
}

type DeleteTaskResponse struct {
	Task tasksvc.Task `json:"task"`
	Err  error        `json:"-"`
}

func (r DeleteTaskResponse) Failed() error { return r.Err }
