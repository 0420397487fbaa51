package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ichigozero/gtdkit/taskd/tasksvc"
	"github.com/twinj/uuid"
	libgorm "gorm.io/gorm"
)

type taskRepository struct {
	db *libgorm.DB
}

func NewTaskRepository(db *libgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

func (t taskRepository) Create(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewV4().String()
	}
	if err := t.db.WithContext(ctx).Create(&task).Error; err != nil {
		return tasksvc.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (t taskRepository) FindAll(ctx context.Context, userID string, status tasksvc.Status) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}
	q := t.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	return tasks, nil
}

func (t taskRepository) Find(ctx context.Context, taskID string) (tasksvc.Task, error) {
	var task tasksvc.Task
	err := t.db.WithContext(ctx).Where("id = ?", taskID).First(&task).Error
	if errors.Is(err, libgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err != nil {
		return tasksvc.Task{}, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (t taskRepository) Update(ctx context.Context, userID string, task tasksvc.Task) (tasksvc.Task, error) {
	result := t.db.WithContext(ctx).
		Model(&tasksvc.Task{}).
		Where("id = ? AND user_id = ?", task.ID, userID).
		Select("title", "description", "status", "priority", "due_date", "updated_at").
		Updates(&task)
	if result.Error != nil {
		return tasksvc.Task{}, fmt.Errorf("update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return t.Find(ctx, task.ID)
}

func (t taskRepository) Delete(ctx context.Context, userID, taskID string) error {
	result := t.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		Delete(&tasksvc.Task{})
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

func (t taskRepository) Counts(ctx context.Context, userID string) (tasksvc.Counts, error) {
	var row struct {
		Total      int64
		Completed  int64
		InProgress int64
	}
	err := t.db.WithContext(ctx).
		Model(&tasksvc.Task{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS in_progress",
			tasksvc.StatusCompleted, tasksvc.StatusInProgress,
		).
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return tasksvc.Counts{}, fmt.Errorf("count tasks: %w", err)
	}
	return tasksvc.Counts{Total: row.Total, Completed: row.Completed, InProgress: row.InProgress}, nil
}
