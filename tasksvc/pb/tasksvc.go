// Package pb declares the TaskSVC gRPC service by hand. Messages travel as
// JSON under the "json" content-subtype.
package pb

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const ServiceName = "tasksvc.TaskSVC"

// ContentSubtype selects the JSON codec on a client connection.
const ContentSubtype = "json"

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	UserID      string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	DueDate     string  `json:"due_date,omitempty"`
}

type CreateTaskReply struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type TasksRequest struct {
	Status string `json:"status,omitempty"`
}

type TasksReply struct {
	Tasks []*Task `json:"tasks"`
}

type TaskRequest struct {
	TaskID string `json:"task_id"`
}

type TaskReply struct {
	Task *Task `json:"task"`
}

type UpdateTaskRequest struct {
	TaskID      string  `json:"task_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

type UpdateTaskReply struct {
	Task *Task `json:"task"`
}

type DeleteTaskRequest struct {
	TaskID string `json:"task_id"`
}

type DeleteTaskReply struct {
	Task *Task `json:"task"`
}

type TaskSVCServer interface {
	CreateTask(context.Context, *CreateTaskRequest) (*CreateTaskReply, error)
	Tasks(context.Context, *TasksRequest) (*TasksReply, error)
	Task(context.Context, *TaskRequest) (*TaskReply, error)
	UpdateTask(context.Context, *UpdateTaskRequest) (*UpdateTaskReply, error)
	DeleteTask(context.Context, *DeleteTaskRequest) (*DeleteTaskReply, error)
}

func RegisterTaskSVCServer(s grpc.ServiceRegistrar, srv TaskSVCServer) {
	s.RegisterService(&TaskSVCServiceDesc, srv)
}

var TaskSVCServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TaskSVCServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateTask",
			Handler: unary("CreateTask", func(s TaskSVCServer, ctx context.Context, req *CreateTaskRequest) (interface{}, error) {
				return s.CreateTask(ctx, req)
			}),
		},
		{
			MethodName: "Tasks",
			Handler: unary("Tasks", func(s TaskSVCServer, ctx context.Context, req *TasksRequest) (interface{}, error) {
				return s.Tasks(ctx, req)
			}),
		},
		{
			MethodName: "Task",
			Handler: unary("Task", func(s TaskSVCServer, ctx context.Context, req *TaskRequest) (interface{}, error) {
				return s.Task(ctx, req)
			}),
		},
		{
			MethodName: "UpdateTask",
			Handler: unary("UpdateTask", func(s TaskSVCServer, ctx context.Context, req *UpdateTaskRequest) (interface{}, error) {
				return s.UpdateTask(ctx, req)
			}),
		},
		{
			MethodName: "DeleteTask",
			Handler: unary("DeleteTask", func(s TaskSVCServer, ctx context.Context, req *DeleteTaskRequest) (interface{}, error) {
				return s.DeleteTask(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

type methodHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func unary[Req any](method string, call func(TaskSVCServer, context.Context, *Req) (interface{}, error)) methodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TaskSVCServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TaskSVCServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return ContentSubtype }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
