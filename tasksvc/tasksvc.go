package tasksvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ichigozero/gtdkit/taskd/usersvc"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string     `json:"title" gorm:"not null"`
	Description *string    `json:"description"`
	Status      Status     `json:"status" gorm:"type:varchar(16);not null;index"`
	Priority    Priority   `json:"priority" gorm:"type:varchar(8);not null"`
	DueDate     *time.Time `json:"dueDate"`
	UserID      string     `json:"userId" gorm:"type:varchar(36);not null;index"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Owner *usersvc.User `json:"-" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// NewTask is the input of a create operation. Zero Status and Priority take
// the defaults.
type NewTask struct {
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
}

// CreatedTask is the minimal projection returned by a create operation.
type CreatedTask struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// TaskPatch carries a partial update. A nil field is left untouched. An
// empty Description or DueDate clears the stored value.
type TaskPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
}

type Counts struct {
	Total      int64
	Completed  int64
	InProgress int64
}

type TaskRepository interface {
	Create(ctx context.Context, task Task) (Task, error)
	FindAll(ctx context.Context, userID string, status Status) ([]Task, error)
	Find(ctx context.Context, taskID string) (Task, error)
	Update(ctx context.Context, userID string, task Task) (Task, error)
	Delete(ctx context.Context, userID, taskID string) error
	Counts(ctx context.Context, userID string) (Counts, error)
}

const dueDateLayout = "2006-01-02"

// ParseDueDate maps a calendar date to midnight UTC of that day. RFC 3339
// timestamps are truncated to their UTC calendar day.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dueDateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidArgument
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFoundOrForbidden = errors.New("task not found or access forbidden")

	// ErrTaskNotFound is returned by repositories. Services never surface it.
	ErrTaskNotFound = errors.New("task not found")
)
