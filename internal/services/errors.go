package services

import (
	"errors"
	"fmt"

	"plotledger_app/internal/repository"
)

var (
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrWrongPlanType              = errors.New("operation not allowed for this plan type")
	ErrAlreadyRequested           = errors.New("an EMI payment request is already pending")
	ErrNoPendingRequest           = errors.New("no pending request")
	ErrRequestAlreadyResolved     = errors.New("request was already resolved")
	ErrRequestAlreadyPending      = errors.New("a withdrawal request is already pending")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrNotFound                   = errors.New("not found")
	ErrAlreadyCompleted           = errors.New("payment already completed")
	ErrMissingDueDate             = errors.New("ledger has no next due date")
	ErrServiceCapExceeded         = errors.New("service balance limit exceeded")
	ErrCollaboratorPlanRestricted = errors.New("collaborator referrals may only choose EMI plans")
	ErrInvalidState               = errors.New("operation not allowed in the current state")
	ErrLockBusy                   = errors.New("resource is busy, try again")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvalidReferral            = errors.New("referral code does not match the referral source")
	ErrAlreadyRegistered          = errors.New("already registered")
	ErrStorage                    = errors.New("storage failure")
)

// storageErr maps repository errors onto service errors. Business errors pass through unchanged.
func storageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrRequestAlreadyResolved
	case isBusinessErr(err):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

func isBusinessErr(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrWrongPlanType, ErrAlreadyRequested, ErrNoPendingRequest,
		ErrRequestAlreadyResolved, ErrRequestAlreadyPending, ErrInsufficientBalance,
		ErrNotFound, ErrAlreadyCompleted, ErrMissingDueDate, ErrServiceCapExceeded,
		ErrCollaboratorPlanRestricted, ErrInvalidState, ErrLockBusy, ErrStorage,
		ErrInvalidInput, ErrInvalidReferral, ErrAlreadyRegistered,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
