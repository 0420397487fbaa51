package userservice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Register(ctx context.Context, name, email, password string) (p usersvc.Profile, err error) {
	defer func() {
		mw.logger.Log("method", "Register", "email", email, "id", p.ID, "err", err)
	}()
	return mw.next.Register(ctx, name, email, password)
}

func (mw loggingMiddleware) Profile(ctx context.Context, userID string) (p usersvc.Profile, err error) {
	defer func() {
		mw.logger.Log("method", "Profile", "id", userID, "err", err)
	}()
	return mw.next.Profile(ctx, userID)
}

func (mw loggingMiddleware) UpdateProfile(ctx context.Context, userID string, patch usersvc.ProfilePatch) (p usersvc.Profile, err error) {
	defer func() {
		mw.logger.Log("method", "UpdateProfile", "id", userID, "err", err)
	}()
	return mw.next.UpdateProfile(ctx, userID, patch)
}

func (mw loggingMiddleware) Summary(ctx context.Context, userID string) (s usersvc.Summary, err error) {
	defer func() {
		mw.logger.Log("method", "Summary", "id", userID, "total", s.Stats.TotalTasks, "err", err)
	}()
	return mw.next.Summary(ctx, userID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	lvs := []string{"method", method, "error", fmt.Sprint(err != nil)}
	mw.requestCount.With(lvs...).Add(1)
	mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Register(ctx context.Context, name, email, password string) (p usersvc.Profile, err error) {
	defer func(begin time.Time) { mw.observe("register", begin, err) }(time.Now())
	return mw.next.Register(ctx, name, email, password)
}

func (mw instrumentingMiddleware) Profile(ctx context.Context, userID string) (p usersvc.Profile, err error) {
	defer func(begin time.Time) { mw.observe("profile", begin, err) }(time.Now())
	return mw.next.Profile(ctx, userID)
}

func (mw instrumentingMiddleware) UpdateProfile(ctx context.Context, userID string, patch usersvc.ProfilePatch) (p usersvc.Profile, err error) {
	defer func(begin time.Time) { mw.observe("update_profile", begin, err) }(time.Now())
	return mw.next.UpdateProfile(ctx, userID, patch)
}

func (mw instrumentingMiddleware) Summary(ctx context.Context, userID string) (s usersvc.Summary, err error) {
	defer func(begin time.Time) { mw.observe("summary", begin, err) }(time.Now())
	return mw.next.Summary(ctx, userID)
}
