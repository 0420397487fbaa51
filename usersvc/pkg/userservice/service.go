package userservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdkit/taskd/authsvc/password"
	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/ichigozero/gtdkit/taskd/usersvc"
)

type Service interface {
	Register(ctx context.Context, name, email, password string) (usersvc.Profile, error)
	Profile(ctx context.Context, userID string) (usersvc.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch usersvc.ProfilePatch) (usersvc.Profile, error)
	Summary(ctx context.Context, userID string) (usersvc.Summary, error)
}

// TaskCounter is the aggregate view of a user's tasks.
type TaskCounter interface {
	Counts(ctx context.Context, userID string) (tasksvc.Counts, error)
}

func New(users usersvc.UserRepository, tasks TaskCounter, h password.Hasher, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(users, tasks, h)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

func NewBasicService(users usersvc.UserRepository, tasks TaskCounter, h password.Hasher) Service {
	return basicService{users: users, tasks: tasks, hasher: h}
}

type basicService struct {
	users  usersvc.UserRepository
	tasks  TaskCounter
	hasher password.Hasher
}

func (s basicService) Register(ctx context.Context, name, email, plaintext string) (usersvc.Profile, error) {
	email, err := validEmail(email)
	if err != nil {
		return usersvc.Profile{}, err
	}
	if plaintext == "" {
		return usersvc.Profile{}, usersvc.ErrInvalidArgument
	}

	_, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return usersvc.Profile{}, usersvc.ErrDuplicateEmail
	case !errors.Is(err, usersvc.ErrUserNotFound):
		return usersvc.Profile{}, err
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return usersvc.Profile{}, err
	}

	user, err := s.users.Create(ctx, usersvc.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
	})
	if err != nil {
		return usersvc.Profile{}, err
	}
	return user.Profile(), nil
}

func (s basicService) Profile(ctx context.Context, userID string) (usersvc.Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return usersvc.Profile{}, err
	}
	return user.Profile(), nil
}

func (s basicService) UpdateProfile(ctx context.Context, userID string, patch usersvc.ProfilePatch) (usersvc.Profile, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}

	if patch.Email != nil {
		email, err := validEmail(*patch.Email)
		if err != nil {
			return usersvc.Profile{}, err
		}
		patch.Email = &email

		owner, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != userID:
			return usersvc.Profile{}, usersvc.ErrDuplicateEmail
		case err != nil && !errors.Is(err, usersvc.ErrUserNotFound):
			return usersvc.Profile{}, err
		}
	}

	user, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		return usersvc.Profile{}, err
	}
	return user.Profile(), nil
}

func (s basicService) Summary(ctx context.Context, userID string) (usersvc.Summary, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return usersvc.Summary{}, err
	}

	counts, err := s.tasks.Counts(ctx, userID)
	if err != nil {
		return usersvc.Summary{}, fmt.Errorf("summary: %w", err)
	}

	return usersvc.Summary{
		Profile: user.Profile(),
		Stats: usersvc.Stats{
			TotalTasks:          counts.Total,
			CompletedTasks:      counts.Completed,
			InProgressTasks:     counts.InProgress,
			CompletedPercentage: completedPercentage(counts.Completed, counts.Total),
		},
	}, nil
}

// completedPercentage rounds half away from zero to two decimals.
func completedPercentage(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

func validEmail(email string) (string, error) {
	email = usersvc.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", usersvc.ErrInvalidArgument
	}
	return email, nil
}
