package usersvc

import (
	"context"
	"errors"
	"strings"
	"time"
)

// User is the persisted credential record. PasswordHash never leaves the
// service layer; read paths return Profile.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	Email        string    `gorm:"type:varchar(320);uniqueIndex;not null"`
	Name         string    `gorm:"type:varchar(255)"`
	PasswordHash string    `gorm:"column:password;not null" json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the outward projection of a User.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ProfilePatch carries the fields of a profile update. Nil means unchanged.
type ProfilePatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type Stats struct {
	TotalTasks          int64   `json:"totalTasks"`
	CompletedTasks      int64   `json:"completedTasks"`
	InProgressTasks     int64   `json:"inProgressTasks"`
	CompletedPercentage float64 `json:"completedPercentage"`
}

type Summary struct {
	Profile
	Stats Stats `json:"stats"`
}

type UserRepository interface {
	Create(ctx context.Context, u User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	Update(ctx context.Context, id string, patch ProfilePatch) (User, error)
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("e-mail already in use")
)
