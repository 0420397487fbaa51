package usertransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/userendpoint"
)

// NewHTTPHandler serves registration and the caller's own account under
// /users.
func NewHTTPHandler(endpoints userendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerBefore(kitjwt.HTTPToContext()),
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	registerHandler := httptransport.NewServer(
		endpoints.RegisterEndpoint,
		decodeHTTPRegisterRequest,
		encodeHTTPResponse(http.StatusCreated, func(r interface{}) interface{} {
			return r.(userendpoint.RegisterResponse).Profile
		}),
		options...,
	)

	summaryHandler := httptransport.NewServer(
		endpoints.SummaryEndpoint,
		decodeHTTPEmptyRequest(userendpoint.SummaryRequest{}),
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(userendpoint.SummaryResponse).Summary
		}),
		options...,
	)

	profileHandler := httptransport.NewServer(
		endpoints.ProfileEndpoint,
		decodeHTTPEmptyRequest(userendpoint.ProfileRequest{}),
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(userendpoint.ProfileResponse).Profile
		}),
		options...,
	)

	updateProfileHandler := httptransport.NewServer(
		endpoints.UpdateProfileEndpoint,
		decodeHTTPUpdateProfileRequest,
		encodeHTTPResponse(http.StatusOK, func(r interface{}) interface{} {
			return r.(userendpoint.ProfileResponse).Profile
		}),
		options...,
	)

	r := mux.NewRouter()
	r.Methods("POST").Path("/users").Handler(registerHandler)
	r.Methods("GET").Path("/users/me").Handler(summaryHandler)
	r.Methods("PATCH").Path("/users/me").Handler(updateProfileHandler)
	r.Methods("GET").Path("/users/me/profile").Handler(profileHandler)

	return r
}

// NewHTTPClient returns a Set backed by a remote HTTP instance. The bearer
// token in the context, if any, is forwarded.
func NewHTTPClient(instance string) (userendpoint.Set, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return userendpoint.Set{}, err
	}

	options := []httptransport.ClientOption{
		httptransport.ClientBefore(kitjwt.ContextToHTTP()),
	}

	return userendpoint.Set{
		RegisterEndpoint: httptransport.NewClient(
			"POST", copyURL(u, "/users"),
			encodeHTTPGenericRequest,
			decodeHTTPClientResponse(http.StatusCreated, func(body io.Reader) (interface{}, error) {
				var p usersvc.Profile
				err := json.NewDecoder(body).Decode(&p)
				return userendpoint.RegisterResponse{Profile: p}, err
			}, func(err error) interface{} { return userendpoint.RegisterResponse{Err: err} }),
			options...,
		).Endpoint(),
		ProfileEndpoint: httptransport.NewClient(
			"GET", copyURL(u, "/users/me/profile"),
			encodeHTTPNoBody,
			decodeHTTPClientResponse(http.StatusOK, decodeProfile, failedProfile),
			options...,
		).Endpoint(),
		UpdateProfileEndpoint: httptransport.NewClient(
			"PATCH", copyURL(u, "/users/me"),
			encodeHTTPGenericRequest,
			decodeHTTPClientResponse(http.StatusOK, decodeProfile, failedProfile),
			options...,
		).Endpoint(),
		SummaryEndpoint: httptransport.NewClient(
			"GET", copyURL(u, "/users/me"),
			encodeHTTPNoBody,
			decodeHTTPClientResponse(http.StatusOK, func(body io.Reader) (interface{}, error) {
				var s usersvc.Summary
				err := json.NewDecoder(body).Decode(&s)
				return userendpoint.SummaryResponse{Summary: s}, err
			}, func(err error) interface{} { return userendpoint.SummaryResponse{Err: err} }),
			options...,
		).Endpoint(),
	}, nil
}

func decodeProfile(body io.Reader) (interface{}, error) {
	var p usersvc.Profile
	err := json.NewDecoder(body).Decode(&p)
	return userendpoint.ProfileResponse{Profile: p}, err
}

func failedProfile(err error) interface{} { return userendpoint.ProfileResponse{Err: err} }

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = path
	return &next
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
	case errors.Is(err, usersvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, authsvc.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, usersvc.ErrDuplicateEmail):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func code2err(code int, msg string) error {
	switch code {
	case http.StatusBadRequest:
		return usersvc.ErrInvalidArgument
	case http.StatusUnauthorized:
		return authsvc.ErrUnauthenticated
	case http.StatusNotFound:
		return usersvc.ErrUserNotFound
	case http.StatusConflict:
		return usersvc.ErrDuplicateEmail
	}
	return errors.New(msg)
}

func decodeHTTPRegisterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userendpoint.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, usersvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPUpdateProfileRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userendpoint.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, usersvc.ErrInvalidArgument
	}
	return req, nil
}

func decodeHTTPEmptyRequest(req interface{}) httptransport.DecodeRequestFunc {
	return func(context.Context, *http.Request) (interface{}, error) {
		return req, nil
	}
}

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

// decodeHTTPClientResponse turns an error body from the server into a failed
// response so that only transport failures surface as endpoint errors.
func decodeHTTPClientResponse(
	want int,
	decode func(io.Reader) (interface{}, error),
	failed func(error) interface{},
) httptransport.DecodeResponseFunc {
	return func(_ context.Context, r *http.Response) (interface{}, error) {
		if r.StatusCode != want {
			var e errorWrapper
			if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
				return nil, errors.New(r.Status)
			}
			if r.StatusCode >= http.StatusInternalServerError {
				return nil, errors.New(e.Error)
			}
			return failed(code2err(r.StatusCode, e.Error)), nil
		}
		return decode(r.Body)
	}
}

func encodeHTTPNoBody(context.Context, *http.Request, interface{}) error { return nil }

func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Body = io.NopCloser(&buf)
	return nil
}
