package tasks

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "plotledger_app/internal/logger"
	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

const preferenceQuery = `SELECT * FROM "user_notif_preferences"`

var preferenceColumns = []string{"id", "user_id", "channel", "whatsapp_target_type", "whatsapp_group_id"}

func notificationTask(t *testing.T, args SendNotificationArgs) models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(SendNotificationTaskName, args, fixedNow, nil, models.ScheduledTaskTypeOneTime, 3)
	require.NoError(t, err)
	task.ID = 1
	return *task
}

func newNotificationTask(deps Dependencies) *SendNotificationTaskDef {
	return &SendNotificationTaskDef{db: deps.DB, email: deps.Email, whatsapp: deps.Whatsapp, now: deps.Now, log: deps.Log}
}

func TestSendNotificationDefaultsToEmail(t *testing.T) {
	db, mock := newMockDB(t)
	deps, email, wa := testDeps(db)

	mock.ExpectQuery(regexp.QuoteMeta(preferenceQuery)).
		WillReturnRows(sqlmock.NewRows(preferenceColumns))

	task := notificationTask(t, SendNotificationArgs{
		Users:         []NotificationUser{{UserID: 7, Name: "Asha", Username: "500550015", Email: "asha@example.com"}},
		NotifTemplate: "Hello $name, your username is $username",
		Subject:       "Welcome",
	})

	result, err := newNotificationTask(deps).HandleExecution(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, 1, result["success"])
	require.Len(t, email.sent, 1)
	assert.Equal(t, []string{"asha@example.com"}, email.sent[0].to)
	assert.Equal(t, "Welcome", email.sent[0].subject)
	assert.Equal(t, "Hello Asha, your username is 500550015", email.sent[0].body)
	assert.Empty(t, wa.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendNotificationWhatsappTargets(t *testing.T) {
	tests := []struct {
		name       string
		targetType string
		groupID    string
		wantChat   string
	}{
		{name: "personal", targetType: models.WhatsappTargetTypePersonal, wantChat: "9876543210"},
		{name: "group", targetType: models.WhatsappTargetTypeGroup, groupID: "120363", wantChat: "120363@g.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			deps, email, wa := testDeps(db)

			mock.ExpectQuery(regexp.QuoteMeta(preferenceQuery)).
				WillReturnRows(sqlmock.NewRows(preferenceColumns).
					AddRow(1, 7, string(models.NotificationChannelWhatsapp), tt.targetType, tt.groupID))

			task := notificationTask(t, SendNotificationArgs{
				Users:         []NotificationUser{{UserID: 7, Username: "500550015", PhoneNumber: "9876543210"}},
				NotifTemplate: "EMI received for $username",
			})

			_, err := newNotificationTask(deps).HandleExecution(context.Background(), task)
			require.NoError(t, err)

			require.Len(t, wa.sent, 1)
			assert.Equal(t, tt.wantChat, wa.sent[0].chatID)
			assert.Equal(t, "EMI received for 500550015", wa.sent[0].text)
			assert.Empty(t, email.sent)
		})
	}
}

func TestSendNotificationSkipsDisabledChannel(t *testing.T) {
	db, mock := newMockDB(t)
	deps, email, _ := testDeps(db)

	mock.ExpectQuery(regexp.QuoteMeta(preferenceQuery)).
		WillReturnRows(sqlmock.NewRows(preferenceColumns).
			AddRow(1, 7, string(models.NotificationChannelNone), models.WhatsappTargetTypePersonal, ""))

	task := notificationTask(t, SendNotificationArgs{
		Users:         []NotificationUser{{UserID: 7, Email: "asha@example.com"}},
		NotifTemplate: "hi",
	})

	result, err := newNotificationTask(deps).HandleExecution(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, result["skipped"])
	assert.Empty(t, email.sent)
}

func TestSendNotificationReschedulesFailedUsers(t *testing.T) {
	db, mock := newMockDB(t)
	deps, email, _ := testDeps(db)
	email.err = errSMTPDown

	mock.ExpectQuery(regexp.QuoteMeta(preferenceQuery)).
		WillReturnRows(sqlmock.NewRows(preferenceColumns))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "scheduled_tasks"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	task := notificationTask(t, SendNotificationArgs{
		Users:         []NotificationUser{{UserID: 7, Email: "asha@example.com"}},
		NotifTemplate: "hi",
	})

	result, err := newNotificationTask(deps).HandleExecution(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 1, result["failure"])
	assert.Equal(t, uint(42), result["retry_task_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendNotificationGivesUpAfterMaxAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	deps, email, _ := testDeps(db)
	email.err = errSMTPDown

	mock.ExpectQuery(regexp.QuoteMeta(preferenceQuery)).
		WillReturnRows(sqlmock.NewRows(preferenceColumns))

	task := notificationTask(t, SendNotificationArgs{
		Users:         []NotificationUser{{UserID: 7, Email: "asha@example.com"}},
		NotifTemplate: "hi",
		AttemptCount:  3,
	})

	_, err := newNotificationTask(deps).HandleExecution(context.Background(), task)
	assert.ErrorContains(t, err, "max attempts reached")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskNotifierQueuesDelivery(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "username"}).
			AddRow(7, "Asha", "asha@example.com", "9876543210", "500550015"))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "scheduled_tasks"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	notifier := NewTaskNotifier(db, clock, applog.Discard())
	notifier.Notify(context.Background(), services.Notification{
		Event:   services.EventEmiApproved,
		UserID:  7,
		Subject: "EMI approved",
		Message: "Hello $name",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskNotifierDropsUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	notifier := NewTaskNotifier(db, clock, applog.Discard())
	notifier.Notify(context.Background(), services.Notification{Event: services.EventEmiOverdue, UserID: 99})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePlaceholders(t *testing.T) {
	user := NotificationUser{Username: "500550015", Email: "asha@example.com"}
	args := SendNotificationArgs{Subject: "Plot approved"}

	got := replacePlaceholders("$subject for $name <$email>", user, args)
	assert.Equal(t, "Plot approved for 500550015 <asha@example.com>", got)
}
