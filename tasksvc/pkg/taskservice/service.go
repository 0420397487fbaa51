package taskservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
)

type Service interface {
	CreateTask(ctx context.Context, ownerID string, in tasksvc.NewTask) (tasksvc.CreatedTask, error)
	Tasks(ctx context.Context, ownerID string, status tasksvc.Status) ([]tasksvc.Task, error)
	Task(ctx context.Context, ownerID, taskID string) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID string, patch tasksvc.TaskPatch) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) (tasksvc.Task, error)
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
	now   func() time.Time
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t, now: time.Now}
}

func (s basicService) CreateTask(ctx context.Context, ownerID string, in tasksvc.NewTask) (tasksvc.CreatedTask, error) {
	if ownerID == "" {
		return tasksvc.CreatedTask{}, tasksvc.ErrInvalidArgument
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return tasksvc.CreatedTask{}, tasksvc.ErrInvalidArgument
	}

	status := in.Status
	if status == "" {
		status = tasksvc.StatusPending
	}
	priority := in.Priority
	if priority == "" {
		priority = tasksvc.PriorityMedium
	}
	if !status.Valid() || !priority.Valid() {
		return tasksvc.CreatedTask{}, tasksvc.ErrInvalidArgument
	}

	due, err := dueDate(in.DueDate)
	if err != nil {
		return tasksvc.CreatedTask{}, err
	}

	now := s.now().UTC()
	task, err := s.tasks.Create(ctx, tasksvc.Task{
		Title:       title,
		Description: description(in.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     due,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return tasksvc.CreatedTask{}, err
	}

	return tasksvc.CreatedTask{ID: task.ID, Title: task.Title, Description: task.Description}, nil
}

func (s basicService) Tasks(ctx context.Context, ownerID string, status tasksvc.Status) ([]tasksvc.Task, error) {
	if ownerID == "" {
		return nil, tasksvc.ErrInvalidArgument
	}
	if status != "" && !status.Valid() {
		return nil, tasksvc.ErrInvalidArgument
	}

	tasks, err := s.tasks.FindAll(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []tasksvc.Task{}
	}
	return tasks, nil
}

func (s basicService) Task(ctx context.Context, ownerID, taskID string) (tasksvc.Task, error) {
	return s.owned(ctx, ownerID, taskID)
}

func (s basicService) UpdateTask(ctx context.Context, ownerID, taskID string, patch tasksvc.TaskPatch) (tasksvc.Task, error) {
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	if err := apply(&task, patch); err != nil {
		return tasksvc.Task{}, err
	}
	task.UpdatedAt = s.now().UTC()

	updated, err := s.tasks.Update(ctx, ownerID, task)
	if errors.Is(err, tasksvc.ErrTaskNotFound) {
		return tasksvc.Task{}, tasksvc.ErrNotFoundOrForbidden
	}
	return updated, err
}

func (s basicService) DeleteTask(ctx context.Context, ownerID, taskID string) (tasksvc.Task, error) {
	task, err := s.owned(ctx, ownerID, taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	err = s.tasks.Delete(ctx, ownerID, taskID)
	if errors.Is(err, tasksvc.ErrTaskNotFound) {
		return tasksvc.Task{}, tasksvc.ErrNotFoundOrForbidden
	}
	if err != nil {
		return tasksvc.Task{}, err
	}
	return task, nil
}

// owned loads a task and asserts ownerID owns it. A missing task and a
// foreign task are indistinguishable to the caller.
func (s basicService) owned(ctx context.Context, ownerID, taskID string) (tasksvc.Task, error) {
	if ownerID == "" || taskID == "" {
		return tasksvc.Task{}, tasksvc.ErrNotFoundOrForbidden
	}

	task, err := s.tasks.Find(ctx, taskID)
	if errors.Is(err, tasksvc.ErrTaskNotFound) {
		return tasksvc.Task{}, tasksvc.ErrNotFoundOrForbidden
	}
	if err != nil {
		return tasksvc.Task{}, err
	}
	if task.UserID != ownerID {
		return tasksvc.Task{}, tasksvc.ErrNotFoundOrForbidden
	}
	return task, nil
}

func apply(task *tasksvc.Task, patch tasksvc.TaskPatch) error {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return tasksvc.ErrInvalidArgument
		}
		task.Title = title
	}
	if patch.Description != nil {
		task.Description = description(patch.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return tasksvc.ErrInvalidArgument
		}
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return tasksvc.ErrInvalidArgument
		}
		task.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		due, err := dueDate(*patch.DueDate)
		if err != nil {
			return err
		}
		task.DueDate = due
	}
	return nil
}

// description stores an empty description as NULL.
func description(d *string) *string {
	if d == nil || *d == "" {
		return nil
	}
	v := *d
	return &v
}

func dueDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := tasksvc.ParseDueDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
