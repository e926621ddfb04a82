package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "plotledger_app/internal/logger"
	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

var fixedNow = time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

type fakeSweeper struct {
	result *services.SweepResult
	err    error
}

func (f *fakeSweeper) CheckEmiStatus(context.Context) (*services.SweepResult, error) {
	return f.result, f.err
}

type fakeSyncer struct {
	calls []uint
}

func (f *fakeSyncer) SyncWalletFromLedger(_ context.Context, userID uint) (*models.CollaboratorWallet, int64, error) {
	f.calls = append(f.calls, userID)
	return &models.CollaboratorWallet{UserID: userID, CourseBalance: 10000, ServiceBalance: 2000}, 5000, nil
}

type sentEmail struct {
	to      []string
	subject string
	body    string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendEmail(to []string, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

type sentMessage struct {
	chatID string
	text   string
}

type fakeWhatsapp struct {
	sent []sentMessage
}

func (f *fakeWhatsapp) SendMessage(_ context.Context, chatID, text string) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

var errSMTPDown = errors.New("smtp down")

func testDeps(db *gorm.DB) (Dependencies, *fakeEmail, *fakeWhatsapp) {
	email := &fakeEmail{}
	wa := &fakeWhatsapp{}
	return Dependencies{
		DB:       db,
		Sweeper:  &fakeSweeper{result: &services.SweepResult{}},
		Wallets:  &fakeSyncer{},
		Email:    email,
		Whatsapp: wa,
		Now:      clock,
		Log:      applog.Discard(),
	}, email, wa
}
