package authtransport

import (
	"context"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/ichigozero/gtdkit/taskd/authsvc"
)

type Verifier interface {
	Verify(token string) (authsvc.Claims, error)
}

// NewAuthenticator guards an endpoint with the bearer token that
// kitjwt.HTTPToContext or kitjwt.GRPCToContext placed in the context. The
// verified identity is attached with authsvc.NewContext.
func NewAuthenticator(v Verifier) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			token, ok := ctx.Value(kitjwt.JWTContextKey).(string)
			if !ok || token == "" {
				return nil, authsvc.ErrUnauthenticated
			}

			claims, err := v.Verify(token)
			if err != nil {
				return nil, authsvc.ErrUnauthenticated
			}

			return next(authsvc.NewContext(ctx, claims.Identity()), request)
		}
	}
}
