package tasks

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"plotledger_app/internal/models"
)

// CheckEmiStatusTaskName is the recurring overdue sweep
const CheckEmiStatusTaskName = "check_emi_status"

// CheckEmiStatusTaskDef marks overdue EMI ledgers as not eligible
type CheckEmiStatusTaskDef struct {
	sweeper EmiSweeper
	log     *logrus.Entry
}

// TaskID returns the unique identifier for this task
func (t *CheckEmiStatusTaskDef) TaskID() string {
	return CheckEmiStatusTaskName
}

// HandleExecution runs one sweep and reports its counters
func (t *CheckEmiStatusTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	result, err := t.sweeper.CheckEmiStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("emi sweep failed: %w", err)
	}

	marked := make([]interface{}, 0, len(result.MarkedLedgers))
	for _, id := range result.MarkedLedgers {
		marked = append(marked, id)
	}

	t.log.WithFields(logrus.Fields{
		"task":    t.TaskID(),
		"scanned": result.Scanned,
		"marked":  len(result.MarkedLedgers),
		"skipped": result.Skipped,
	}).Info("EMI sweep finished")

	return map[string]interface{}{
		"scanned":        result.Scanned,
		"marked_ledgers": marked,
		"skipped":        result.Skipped,
	}, nil
}

// SyncCollaboratorWalletArgs names the user whose wallet is recomputed
type SyncCollaboratorWalletArgs struct {
	UserID uint `json:"user_id"`
}

// SyncCollaboratorWalletTaskDef tops up a collaborator wallet from the user's ledgers
type SyncCollaboratorWalletTaskDef struct {
	wallets WalletSyncer
	log     *logrus.Entry
}

// TaskID returns the unique identifier for this task
func (t *SyncCollaboratorWalletTaskDef) TaskID() string {
	return "sync_collaborator_wallet"
}

// HandleExecution syncs the wallet named in the arguments
func (t *SyncCollaboratorWalletTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SyncCollaboratorWalletArgs
	if err := decodeArgs(task.Arguments, &args); err != nil {
		return nil, err
	}
	if args.UserID == 0 {
		return nil, fmt.Errorf("user_id not provided or invalid")
	}

	wallet, delta, err := t.wallets.SyncWalletFromLedger(ctx, args.UserID)
	if err != nil {
		return nil, fmt.Errorf("wallet sync for user %d: %w", args.UserID, err)
	}

	t.log.WithFields(logrus.Fields{"task": t.TaskID(), "user_id": args.UserID, "delta": delta}).Info("Collaborator wallet synced")

	return map[string]interface{}{
		"user_id":         args.UserID,
		"delta":           delta,
		"course_balance":  wallet.CourseBalance,
		"service_balance": wallet.ServiceBalance,
	}, nil
}
