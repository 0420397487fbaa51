package taskservice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
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

func (mw loggingMiddleware) CreateTask(ctx context.Context, ownerID string, in tasksvc.NewTask) (t tasksvc.CreatedTask, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"user_id", ownerID,
			"task_id", t.ID,
			"status", in.Status,
			"priority", in.Priority,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, ownerID, in)
}

func (mw loggingMiddleware) Tasks(ctx context.Context, ownerID string, status tasksvc.Status) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"user_id", ownerID,
			"status", status,
			"n", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, ownerID, status)
}

func (mw loggingMiddleware) Task(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"user_id", ownerID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, ownerID, taskID)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID string, patch tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"user_id", ownerID,
			"task_id", taskID,
			"status", t.Status,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, ownerID, taskID, patch)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"user_id", ownerID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, ownerID, taskID)
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

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, ownerID string, in tasksvc.NewTask) (t tasksvc.CreatedTask, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "create_task", "error", fmt.Sprint(err != nil)}
		mw.requestCount.With(lvs...).Add(1)
		mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.CreateTask(ctx, ownerID, in)
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, ownerID string, status tasksvc.Status) (t []tasksvc.Task, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "tasks", "error", fmt.Sprint(err != nil)}
		mw.requestCount.With(lvs...).Add(1)
		mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Tasks(ctx, ownerID, status)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "task", "error", fmt.Sprint(err != nil)}
		mw.requestCount.With(lvs...).Add(1)
		mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Task(ctx, ownerID, taskID)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID string, patch tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "update_task", "error", fmt.Sprint(err != nil)}
		mw.requestCount.With(lvs...).Add(1)
		mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.UpdateTask(ctx, ownerID, taskID, patch)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) {
		lvs := []string{"method", "delete_task", "error", fmt.Sprint(err != nil)}
		mw.requestCount.With(lvs...).Add(1)
		mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.DeleteTask(ctx, ownerID, taskID)
}

// TracingMiddleware opens one span per service call.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next Service) Service {
		return tracingMiddleware{tracer, next}
	}
}

type tracingMiddleware struct {
	tracer trace.Tracer
	next   Service
}

func (mw tracingMiddleware) start(ctx context.Context, name, ownerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("task.owner_id", ownerID))
	return mw.tracer.Start(ctx, "taskservice."+name, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func (mw tracingMiddleware) CreateTask(ctx context.Context, ownerID string, in tasksvc.NewTask) (t tasksvc.CreatedTask, err error) {
	ctx, span := mw.start(ctx, "CreateTask", ownerID)
	defer func() {
		span.SetAttributes(attribute.String("task.id", t.ID))
		end(span, err)
	}()
	return mw.next.CreateTask(ctx, ownerID, in)
}

func (mw tracingMiddleware) Tasks(ctx context.Context, ownerID string, status tasksvc.Status) (t []tasksvc.Task, err error) {
	ctx, span := mw.start(ctx, "Tasks", ownerID, attribute.String("task.status", string(status)))
	defer func() {
		span.SetAttributes(attribute.Int("task.count", len(t)))
		end(span, err)
	}()
	return mw.next.Tasks(ctx, ownerID, status)
}

func (mw tracingMiddleware) Task(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	ctx, span := mw.start(ctx, "Task", ownerID, attribute.String("task.id", taskID))
	defer func() { end(span, err) }()
	return mw.next.Task(ctx, ownerID, taskID)
}

func (mw tracingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID string, patch tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	ctx, span := mw.start(ctx, "UpdateTask", ownerID, attribute.String("task.id", taskID))
	defer func() { end(span, err) }()
	return mw.next.UpdateTask(ctx, ownerID, taskID, patch)
}

func (mw tracingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID string) (t tasksvc.Task, err error) {
	ctx, span := mw.start(ctx, "DeleteTask", ownerID, attribute.String("task.id", taskID))
	defer func() { end(span, err) }()
	return mw.next.DeleteTask(ctx, ownerID, taskID)
}
