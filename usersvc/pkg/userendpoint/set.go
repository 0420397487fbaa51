package userendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc/pkg/userservice"
)

type Set struct {
	RegisterEndpoint      endpoint.Endpoint
	ProfileEndpoint       endpoint.Endpoint
	UpdateProfileEndpoint endpoint.Endpoint
	SummaryEndpoint       endpoint.Endpoint
}

// New wires the user endpoints. Registration is public; the others act on
// the caller identified by authn.
func New(svc userservice.Service, authn endpoint.Middleware, logger log.Logger) Set {
	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = MakeRegisterEndpoint(svc)
		registerEndpoint = LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}
	var profileEndpoint endpoint.Endpoint
	{
		profileEndpoint = MakeProfileEndpoint(svc)
		profileEndpoint = authn(profileEndpoint)
		profileEndpoint = LoggingMiddleware(log.With(logger, "method", "Profile"))(profileEndpoint)
	}
	var updateProfileEndpoint endpoint.Endpoint
	{
		updateProfileEndpoint = MakeUpdateProfileEndpoint(svc)
		updateProfileEndpoint = authn(updateProfileEndpoint)
		updateProfileEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateProfile"))(updateProfileEndpoint)
	}
	var summaryEndpoint endpoint.Endpoint
	{
		summaryEndpoint = MakeSummaryEndpoint(svc)
		summaryEndpoint = authn(summaryEndpoint)
		summaryEndpoint = LoggingMiddleware(log.With(logger, "method", "Summary"))(summaryEndpoint)
	}

	return Set{
		RegisterEndpoint:      registerEndpoint,
		ProfileEndpoint:       profileEndpoint,
		UpdateProfileEndpoint: updateProfileEndpoint,
		SummaryEndpoint:       summaryEndpoint,
	}
}

// The Set methods implement userservice.Service for clients; userID is taken
// from the bearer token on the server side.

func (s Set) Register(ctx context.Context, name, email, password string) (usersvc.Profile, error) {
	resp, err := s.RegisterEndpoint(ctx, RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return usersvc.Profile{}, err
	}
	response := resp.(RegisterResponse)
	return response.Profile, response.Err
}

func (s Set) Profile(ctx context.Context, _ string) (usersvc.Profile, error) {
	resp, err := s.ProfileEndpoint(ctx, ProfileRequest{})
	if err != nil {
		return usersvc.Profile{}, err
	}
	response := resp.(ProfileResponse)
	return response.Profile, response.Err
}

func (s Set) UpdateProfile(ctx context.Context, _ string, patch usersvc.ProfilePatch) (usersvc.Profile, error) {
	resp, err := s.UpdateProfileEndpoint(ctx, UpdateProfileRequest{ProfilePatch: patch})
	if err != nil {
		return usersvc.Profile{}, err
	}
	response := resp.(ProfileResponse)
	return response.Profile, response.Err
}

func (s Set) Summary(ctx context.Context, _ string) (usersvc.Summary, error) {
	resp, err := s.SummaryEndpoint(ctx, SummaryRequest{})
	if err != nil {
		return usersvc.Summary{}, err
	}
	response := resp.(SummaryResponse)
	return response.Summary, response.Err
}

func MakeRegisterEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(RegisterRequest)
		p, err := s.Register(ctx, req.Name, req.Email, req.Password)
		return RegisterResponse{Profile: p, Err: err}, nil
	}
}

func MakeProfileEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, ok := authsvc.FromContext(ctx)
		if !ok {
			return nil, authsvc.ErrUnauthenticated
		}
		p, err := s.Profile(ctx, id.ID)
		return ProfileResponse{Profile: p, Err: err}, nil
	}
}

func MakeUpdateProfileEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, ok := authsvc.FromContext(ctx)
		if !ok {
			return nil, authsvc.ErrUnauthenticated
		}
		req := request.(UpdateProfileRequest)
		p, err := s.UpdateProfile(ctx, id.ID, req.ProfilePatch)
		return ProfileResponse{Profile: p, Err: err}, nil
	}
}

func MakeSummaryEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id, ok := authsvc.FromContext(ctx)
		if !ok {
			return nil, authsvc.ErrUnauthenticated
		}
		sum, err := s.Summary(ctx, id.ID)
		return SummaryResponse{Summary: sum, Err: err}, nil
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

var (
	_ endpoint.Failer = RegisterResponse{}
	_ endpoint.Failer = ProfileResponse{}
	_ endpoint.Failer = SummaryResponse{}
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Profile usersvc.Profile `json:"profile"`
	Err     error           `json:"-"`
}

func (r RegisterResponse) Failed() error { return r.Err }

type ProfileRequest struct{}

type UpdateProfileRequest struct {
	usersvc.ProfilePatch
}

type ProfileResponse struct {
	Profile usersvc.Profile `json:"profile"`
	Err     error           `json:"-"`
}

func (r ProfileResponse) Failed() error { return r.Err }

type SummaryRequest struct{}

type SummaryResponse struct {
	Summary usersvc.Summary `json:"summary"`
	Err     error           `json:"-"`
}

func (r SummaryResponse) Failed() error { return r.Err }
