package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"plotledger_app/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// decodeArgs converts the stored argument map into a typed struct
func decodeArgs(args map[string]interface{}, dest interface{}) error {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, dest); err != nil {
		return fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return nil
}

// EnsureRecurringTask creates the active recurring task for taskName unless one already exists.
// It returns the existing or newly created row.
func EnsureRecurringTask(db *gorm.DB, taskName, rule string, due time.Time, maxAttempt int) (*models.ScheduledTask, error) {
	var existing models.ScheduledTask
	err := db.Where("task_name = ? AND task_type = ? AND status = ?",
		taskName, models.ScheduledTaskTypeRecurring, models.ScheduledTaskStatusActive).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	interval := rule
	task, err := BuildScheduledTask(taskName, map[string]interface{}{}, due, &interval, models.ScheduledTaskTypeRecurring, maxAttempt)
	if err != nil {
		return nil, err
	}
	if err := db.Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}
