package tasks

import (
	"context"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
)

// LogInfoTaskDef writes its message argument to the worker log
type LogInfoTaskDef struct {
	log *logrus.Entry
}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

// HandleExecution handles logging information
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	message, ok := task.Arguments["message"].(string)
	if !ok {
		message = "No message provided"
	}
	t.log.WithField("task", t.TaskID()).Info(message)

	return map[string]interface{}{
		"status":            "success",
		"message":           message,
		"max_attempts_info": task.MaxAttempt,
	}, nil
}
