package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ichigozero/gtdkit/taskd/usersvc"
	"github.com/twinj/uuid"
	libgorm "gorm.io/gorm"
)

type userRepository struct {
	db *libgorm.DB
}

func NewUserRepository(db *libgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

func (u *userRepository) Create(ctx context.Context, user usersvc.User) (usersvc.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewV4().String()
	}
	user.Email = usersvc.NormalizeEmail(user.Email)

	err := u.db.WithContext(ctx).Create(&user).Error
	if errors.Is(err, libgorm.ErrDuplicatedKey) {
		return usersvc.User{}, usersvc.ErrDuplicateEmail
	}
	if err != nil {
		return usersvc.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (u *userRepository) FindByEmail(ctx context.Context, email string) (usersvc.User, error) {
	var user usersvc.User
	err := u.db.WithContext(ctx).
		Where("email = ?", usersvc.NormalizeEmail(email)).
		First(&user).Error

	return user, translate(err, "find user by email")
}

func (u *userRepository) FindByID(ctx context.Context, id string) (usersvc.User, error) {
	var user usersvc.User
	err := u.db.WithContext(ctx).Where("id = ?", id).First(&user).Error

	return user, translate(err, "find user")
}

func (u *userRepository) Update(ctx context.Context, id string, patch usersvc.ProfilePatch) (usersvc.User, error) {
	fields := map[string]interface{}{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Email != nil {
		fields["email"] = usersvc.NormalizeEmail(*patch.Email)
	}

	if len(fields) > 0 {
		result := u.db.WithContext(ctx).Model(&usersvc.User{}).Where("id = ?", id).Updates(fields)
		if errors.Is(result.Error, libgorm.ErrDuplicatedKey) {
			return usersvc.User{}, usersvc.ErrDuplicateEmail
		}
		if result.Error != nil {
			return usersvc.User{}, fmt.Errorf("update user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return usersvc.User{}, usersvc.ErrUserNotFound
		}
	}

	return u.FindByID(ctx, id)
}

func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, libgorm.ErrRecordNotFound):
		return usersvc.ErrUserNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
