package authtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authendpoint"
)

func NewHTTPHandler(endpoints authendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	loginHandler := httptransport.NewServer(
		endpoints.LoginEndpoint,
		decodeHTTPLoginRequest,
		encodeHTTPLoginResponse,
		options...,
	)

	r := mux.NewRouter()
	r.Methods("POST").Path("/auth/login").Handler(loginHandler)

	return r
}

func NewHTTPClient(instance string) (authendpoint.Set, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return authendpoint.Set{}, err
	}

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/auth/login"),
			encodeHTTPGenericRequest,
			decodeHTTPLoginResponse,
		).Endpoint()
	}

	return authendpoint.Set{
		LoginEndpoint: loginEndpoint,
	}, nil
}

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

func err2code(err error) int {
	switch {
	case errors.Is(err, authsvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, authsvc.ErrInvalidCredentials), errors.Is(err, authsvc.ErrUnauthenticated):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// code2err maps a failed response back onto the error the server encoded.
func code2err(code int, msg string) error {
	switch code {
	case http.StatusBadRequest:
		return authsvc.ErrInvalidArgument
	case http.StatusUnauthorized:
		if msg == authsvc.ErrUnauthenticated.Error() {
			return authsvc.ErrUnauthenticated
		}
		return authsvc.ErrInvalidCredentials
	}
	return errors.New(msg)
}

type errorWrapper struct {
	Error string `json:"error"`
}

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, authsvc.ErrInvalidArgument
	}
	return req, nil
}

func encodeHTTPLoginResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(authendpoint.LoginResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(resp.Tokens)
}

func decodeHTTPLoginResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		var e errorWrapper
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			return nil, errors.New(r.Status)
		}
		return authendpoint.LoginResponse{Err: code2err(r.StatusCode, e.Error)}, nil
	}
	var tokens authsvc.Tokens
	err := json.NewDecoder(r.Body).Decode(&tokens)
	return authendpoint.LoginResponse{Tokens: tokens}, err
}

// encodeHTTPGenericRequest is a transport/http.EncodeRequestFunc that
// JSON-encodes any request to the request body. Primarily useful in a client.
func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Body = io.NopCloser(&buf)
	return nil
}
