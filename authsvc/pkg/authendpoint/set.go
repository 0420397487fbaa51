package authendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/authsvc/pkg/authservice"
)

type Set struct {
	LoginEndpoint endpoint.Endpoint
}

func New(svc authservice.Service, logger log.Logger) Set {
	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	return Set{
		LoginEndpoint: loginEndpoint,
	}
}

func (s Set) Login(ctx context.Context, email, password string) (authsvc.Tokens, error) {
	response, err := s.LoginEndpoint(ctx, LoginRequest{Email: email, Password: password})
	if err != nil {
		return authsvc.Tokens{}, err
	}

	resp := response.(LoginResponse)
	return resp.Tokens, resp.Err
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		t, err := s.Login(ctx, req.Email, req.Password)

		return LoginResponse{Tokens: t, Err: err}, nil
	}
}

func LoggingMiddleware(logger log.Logger) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				logger.Log("transport_error", err, "took", time.Since(begin))
			}(time.Now())
			return next(ctx, request)
		}
	}
}

var _ endpoint.Failer = LoginResponse{}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Tokens authsvc.Tokens `json:"tokens"`
	Err    error          `json:"-"`
}

func (r LoginResponse) Failed() error { return r.Err }
