package tasks

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

const notificationMaxAttempt = 3

// TaskNotifier queues a send_notification task per notification; the worker delivers it
type TaskNotifier struct {
	db  *gorm.DB
	now func() time.Time
	log *logrus.Entry
}

func NewTaskNotifier(db *gorm.DB, now func() time.Time, log *logrus.Entry) *TaskNotifier {
	if now == nil {
		now = time.Now
	}
	return &TaskNotifier{db: db, now: now, log: log}
}

// Notify enqueues delivery. Failures are logged and dropped.
func (n *TaskNotifier) Notify(ctx context.Context, msg services.Notification) {
	log := n.log.WithFields(logrus.Fields{"event": msg.Event, "user_id": msg.UserID})

	var user models.User
	if err := n.db.WithContext(ctx).First(&user, msg.UserID).Error; err != nil {
		log.WithError(err).Warn("Notification dropped: user lookup failed")
		return
	}

	recipient := NotificationUser{
		UserID:      user.ID,
		Name:        user.Name,
		Email:       user.Email,
		PhoneNumber: user.Phone,
	}
	if user.Username != nil {
		recipient.Username = *user.Username
	}

	args := SendNotificationArgs{
		Users:         []NotificationUser{recipient},
		Event:         msg.Event,
		NotifTemplate: msg.Message,
		Subject:       msg.Subject,
	}

	task, err := BuildScheduledTask(SendNotificationTaskName, args, n.now(), nil, models.ScheduledTaskTypeOneTime, notificationMaxAttempt)
	if err != nil {
		log.WithError(err).Warn("Notification dropped: could not build task")
		return
	}
	if err := n.db.WithContext(ctx).Create(task).Error; err != nil {
		log.WithError(err).Warn("Notification dropped: could not enqueue task")
		return
	}

	log.WithField("task_id", task.ID).Debug("Notification queued")
}

var _ services.Notifier = (*TaskNotifier)(nil)
