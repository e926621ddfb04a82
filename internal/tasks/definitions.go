package tasks

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

// EmiSweeper runs the overdue EMI sweep
type EmiSweeper interface {
	CheckEmiStatus(ctx context.Context) (*services.SweepResult, error)
}

// WalletSyncer recomputes a collaborator wallet from the user's ledgers
type WalletSyncer interface {
	SyncWalletFromLedger(ctx context.Context, userID uint) (*models.CollaboratorWallet, int64, error)
}

// EmailSender delivers a plain text e-mail
type EmailSender interface {
	SendEmail(to []string, subject, body string) error
}

// WhatsappSender delivers a WhatsApp text message
type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Dependencies are the collaborators shared by the task handlers
type Dependencies struct {
	DB       *gorm.DB
	Sweeper  EmiSweeper
	Wallets  WalletSyncer
	Email    EmailSender
	Whatsapp WhatsappSender
	Now      func() time.Time
	Log      *logrus.Entry
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Dependencies) {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	// Register general tasks
	logInfo := &LogInfoTaskDef{log: deps.Log}
	r.Register(logInfo.TaskID(), logInfo.HandleExecution)

	// Register ledger tasks
	sweep := &CheckEmiStatusTaskDef{sweeper: deps.Sweeper, log: deps.Log}
	r.Register(sweep.TaskID(), sweep.HandleExecution)

	sync := &SyncCollaboratorWalletTaskDef{wallets: deps.Wallets, log: deps.Log}
	r.Register(sync.TaskID(), sync.HandleExecution)

	// Register notification tasks
	notify := &SendNotificationTaskDef{
		db:       deps.DB,
		email:    deps.Email,
		whatsapp: deps.Whatsapp,
		now:      deps.Now,
		log:      deps.Log,
	}
	r.Register(notify.TaskID(), notify.HandleExecution)
}
