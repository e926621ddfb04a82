package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
)

const (
	historyStatusSuccess         = "success"
	historyStatusFailure         = "failure"
	historyStatusHandlerNotFound = "handler_not_found"
)

// TaskObserver receives the outcome of every task attempt
type TaskObserver interface {
	ObserveTask(task, status string, runtime time.Duration)
}

// Runner executes due scheduled tasks through a registry and records their history
type Runner struct {
	db       *gorm.DB
	registry *Registry
	now      func() time.Time
	log      *logrus.Entry
	observer TaskObserver
}

func NewRunner(db *gorm.DB, registry *Registry, now func() time.Time, log *logrus.Entry) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{db: db, registry: registry, now: now, log: log}
}

// WithObserver reports every attempt to o
func (r *Runner) WithObserver(o TaskObserver) *Runner {
	r.observer = o
	return r
}

func (r *Runner) observe(task, status string, runtime time.Duration) {
	if r.observer != nil {
		r.observer.ObserveTask(task, status, runtime)
	}
}

// ProcessDue runs every active task whose due time has passed and returns how many were picked up
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pendingTasks []models.ScheduledTask
	now := r.now()
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due").
		Find(&pendingTasks).Error; err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	if len(pendingTasks) == 0 {
		r.log.Debug("No pending tasks found")
		return 0, nil
	}

	r.log.Infof("Found %d pending tasks", len(pendingTasks))

	processed := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			break
		}
		r.execute(ctx, task)
		processed++
	}
	return processed, nil
}

// execute runs one task, retrying in place up to MaxAttempt times
func (r *Runner) execute(ctx context.Context, task models.ScheduledTask) {
	log := r.log.WithFields(logrus.Fields{"task": task.TaskName, "task_id": task.ID})
	log.Info("Processing task")

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warn("Task handler not found, marking as failure")
		now := r.now()
		r.recordHistory(ctx, task, now, 0, historyStatusHandlerNotFound, 1, map[string]interface{}{"error": "Handler not found"})
		r.observe(task.TaskName, historyStatusHandlerNotFound, 0)
		r.updateTask(ctx, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
	)
	for attempt := 1; attempt <= maxAttempt; attempt++ {
		if ctx.Err() != nil {
			return
		}

		var result map[string]interface{}
		startTime = r.now()
		result, err = handler(ctx, task)
		runtime := r.now().Sub(startTime)
		runtimeMs := int(runtime.Milliseconds())

		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("Task failed")
			r.recordHistory(ctx, task, startTime, runtimeMs, historyStatusFailure, attempt, map[string]interface{}{"error": err.Error()})
			r.observe(task.TaskName, historyStatusFailure, runtime)
			continue
		}

		log.Info("Task completed successfully")
		r.recordHistory(ctx, task, startTime, runtimeMs, historyStatusSuccess, attempt, result)
		r.observe(task.TaskName, historyStatusSuccess, runtime)
		break
	}

	r.updateTask(ctx, task, r.nextState(task, startTime, err))
}

// nextState decides the task row update after a run.
// Recurring tasks keep running after a failed occurrence.
func (r *Runner) nextState(task models.ScheduledTask, ranAt time.Time, runErr error) map[string]interface{} {
	updates := map[string]interface{}{
		"last_run": &ranAt,
	}

	if task.IsRecurring() {
		if nextDue := task.NextDueAfter(r.now()); nextDue.After(task.Due) {
			updates["status"] = models.ScheduledTaskStatusActive
			updates["due"] = nextDue
			return updates
		}
	}

	if runErr != nil {
		updates["status"] = models.ScheduledTaskStatusFailure
	} else {
		updates["status"] = models.ScheduledTaskStatusDone
	}
	return updates
}

func (r *Runner) recordHistory(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtimeMs int, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		Runtime:         runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		r.log.WithError(err).WithField("task_id", task.ID).Error("Failed to record task history")
	}
}

func (r *Runner) updateTask(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		r.log.WithError(err).WithField("task_id", task.ID).Error("Failed to update task")
	}
}
