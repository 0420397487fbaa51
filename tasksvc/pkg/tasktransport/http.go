package tasktransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/tasksvc/pkg/taskendpoint"
)

// NewHTTPHandler serves the task routes under /tasks. The bearer token is
// moved into the context for the endpoints' guard.
func NewHTTPHandler(endpoints taskendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerBefore(kitjwt.HTTPToContext()),
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	createTaskHandler := httptransport.NewServer(
		endpoints.CreateTaskEndpoint,
		decodeHTTPCreateTaskRequest,
		encodeHTTPResponse(http.StatusCreated, func(r interface{}) interface{} {
			return r.(taskendpoint.CreateTaskResponse).Task
		}),
		options...,
	)

	tasksHandler := httptransport.NewServer(
		endpoints.TasksEndpoint,
		decodeHTTPTasksRequest,
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(taskendpoint.TasksResponse).Tasks
		}),
		options...,
	)

	taskHandler := httptransport.NewServer(
		endpoints.TaskEndpoint,
		decodeHTTPTaskRequest,
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(taskendpoint.TaskResponse).Task
		}),
		options...,
	)

	updateTaskHandler := httptransport.NewServer(
		endpoints.UpdateTaskEndpoint,
		decodeHTTPUpdateTaskRequest,
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(taskendpoint.UpdateTaskResponse).Task
		}),
		options...,
	)

	deleteTaskHandler := httptransport.NewServer(
		endpoints.DeleteTaskEndpoint,
		decodeHTTPDeleteTaskRequest,
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(taskendpoint.DeleteTaskResponse).Task
		}),
		options...,
	)

	r := mux.NewRouter()

	r.Methods("POST").Path("/tasks").Handler(createTaskHandler)
	r.Methods("GET").Path("/tasks").Handler(tasksHandler)
	r.Methods("GET").Path("/tasks/{task_id}").Handler(taskHandler)
	r.Methods("PATCH").Path("/tasks/{task_id}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path("/tasks/{task_id}").Handler(deleteTaskHandler)

	return r
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorWrapper{Error: msg})
}

type errorWrapper struct {
	Error string `json:"error"`
}

func err2code(err error) int {
	switch {
	case errors.Is(err, tasksvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, tasksvc.ErrNotFoundOrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, tasksvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return taskendpoint.TasksRequest{
		Status: tasksvc.Status(r.URL.Query().Get("status")),
	}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDVar(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{TaskID: taskID}, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDVar(r)
	if err != nil {
		return nil, err
	}

	var req taskendpoint.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, tasksvc.ErrInvalidArgument
	}
	req.TaskID = taskID

	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := taskIDVar(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{TaskID: taskID}, nil
}

func taskIDVar(r *http.Request) (string, error) {
	taskID, ok := mux.Vars(r)["task_id"]
	if !ok {
		return "", ErrBadRouting
	}
	return taskID, nil
}

// ErrBadRouting is returned when an expected path variable is missing.
// It always indicates programmer error.
var ErrBadRouting = errors.New("inconsistent mapping between route and handler (programmer error)")

// encodeHTTPResponse writes the body selected from a successful response
// with the given status code. Failed responses go through errorEncoder.
func encodeHTTPResponse(code int, body func(response interface{}) interface{}) httptransport.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
			errorEncoder(ctx, f.Failed(), w)
			return nil
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		return json.NewEncoder(w).Encode(body(response))
	}
}
