package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
)

// SendNotificationTaskName delivers queued notifications
const SendNotificationTaskName = "send_notification"

const notificationRetryDelay = 5 * time.Minute

// NotificationUser represents the user in the notification payload
type NotificationUser struct {
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
}

// SendNotificationArgs defines the arguments for a notification task
type SendNotificationArgs struct {
	Users         []NotificationUser `json:"users"`
	Event         string             `json:"event"`
	NotifTemplate string             `json:"notiftemplate"`
	Subject       string             `json:"subject"`
	AttemptCount  int                `json:"attempt_count"`
}

// SendNotificationTaskDef delivers a message to each user over their preferred channel
type SendNotificationTaskDef struct {
	db       *gorm.DB
	email    EmailSender
	whatsapp WhatsappSender
	now      func() time.Time
	log      *logrus.Entry
}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return SendNotificationTaskName
}

// HandleExecution handles sending notifications based on user preference
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var parsedArgs SendNotificationArgs
	if err := decodeArgs(task.Arguments, &parsedArgs); err != nil {
		return nil, err
	}

	log := t.log.WithFields(logrus.Fields{"task": t.TaskID(), "event": parsedArgs.Event})

	total := len(parsedArgs.Users)
	successCount := 0
	skippedCount := 0
	failureCount := 0
	var failures []string
	var failedUsers []NotificationUser

	for _, user := range parsedArgs.Users {
		pref, err := t.preference(user.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", user.UserID).Error("Failed to fetch notification preference")
			failureCount++
			failures = append(failures, fmt.Sprintf("%d: db error", user.UserID))
			failedUsers = append(failedUsers, user)
			continue
		}

		var sendErr error
		switch pref.Channel {
		case models.NotificationChannelEmail:
			sendErr = t.sendEmailNotif(user, parsedArgs)
		case models.NotificationChannelWhatsapp:
			sendErr = t.sendWhatsappNotif(ctx, user, parsedArgs, pref)
		case models.NotificationChannelNone:
			log.WithField("user_id", user.UserID).Info("Notification disabled for user")
			skippedCount++
			continue
		default:
			log.WithFields(logrus.Fields{"user_id": user.UserID, "channel": pref.Channel}).Warn("Unsupported notification channel")
			skippedCount++
			continue
		}

		if sendErr != nil {
			log.WithError(sendErr).WithFields(logrus.Fields{"user_id": user.UserID, "channel": pref.Channel}).Warn("Failed to send notification")
			failureCount++
			failures = append(failures, fmt.Sprintf("%d: %v", user.UserID, sendErr))
			failedUsers = append(failedUsers, user)
		} else {
			successCount++
		}
	}

	result := map[string]interface{}{
		"total":   total,
		"success": successCount,
		"skipped": skippedCount,
		"failure": failureCount,
	}

	if failureCount == 0 {
		return result, nil
	}

	result["errors"] = failures

	attempt := parsedArgs.AttemptCount
	maxRetries := task.MaxAttempt
	if attempt >= maxRetries {
		log.Warnf("Max attempts (%d) reached for %d failed users", maxRetries, len(failedUsers))
		return result, fmt.Errorf("max attempts reached, failed to deliver to %d users", len(failedUsers))
	}

	log.Infof("Partial failure: %d users failed, rescheduling attempt %d", len(failedUsers), attempt+1)

	newArgs := parsedArgs
	newArgs.Users = failedUsers
	newArgs.AttemptCount = attempt + 1

	newTask, err := BuildScheduledTask(t.TaskID(), newArgs, t.now().Add(notificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, maxRetries)
	if err != nil {
		return result, fmt.Errorf("failed to build retry task: %w", err)
	}
	if err := t.db.WithContext(ctx).Create(newTask).Error; err != nil {
		return result, fmt.Errorf("failed to create retry task: %w", err)
	}
	result["retry_task_id"] = newTask.ID

	return result, nil
}

// preference loads the stored channel choice, defaulting to e-mail
func (t *SendNotificationTaskDef) preference(userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := t.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotifPreference(userID), nil
	}
	return pref, err
}

// sendWhatsappNotif handles sending WhatsApp notifications
func (t *SendNotificationTaskDef) sendWhatsappNotif(ctx context.Context, user NotificationUser, args SendNotificationArgs, pref models.UserNotifPreference) error {
	if args.NotifTemplate == "" {
		return fmt.Errorf("notiftemplate is missing")
	}

	var chatID string
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		chatID = pref.WhatsappGroupID
		if chatID == "" {
			return fmt.Errorf("group ID is empty")
		}
		if !strings.HasSuffix(chatID, "@g.us") {
			chatID = chatID + "@g.us"
		}
	} else {
		chatID = user.PhoneNumber
		if chatID == "" {
			return fmt.Errorf("phone number is empty")
		}
	}

	return t.whatsapp.SendMessage(ctx, chatID, replacePlaceholders(args.NotifTemplate, user, args))
}

// sendEmailNotif handles sending Email notifications
func (t *SendNotificationTaskDef) sendEmailNotif(user NotificationUser, args SendNotificationArgs) error {
	if args.NotifTemplate == "" {
		return fmt.Errorf("notiftemplate is missing")
	}

	subject := "Notification"
	if args.Subject != "" {
		subject = args.Subject
	}

	return t.email.SendEmail([]string{user.Email}, subject, replacePlaceholders(args.NotifTemplate, user, args))
}

func replacePlaceholders(template string, user NotificationUser, args SendNotificationArgs) string {
	name := user.Name
	if name == "" {
		name = user.Username
	}

	return strings.NewReplacer(
		"$username", user.Username,
		"$name", name,
		"$email", user.Email,
		"$subject", args.Subject,
	).Replace(template)
}
