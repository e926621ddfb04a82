package services

import "context"

const (
	EventPurchaseRequested = "purchase_requested"
	EventPlotApproved      = "plot_approved"
	EventPlotDeclined      = "plot_declined"
	EventEmiRequested      = "emi_requested"
	EventEmiApproved       = "emi_approved"
	EventEmiDeclined       = "emi_declined"
	EventFullPaymentDone   = "full_payment_approved"
	EventEmiOverdue        = "emi_overdue"
	EventCredentialsIssued = "credentials_issued"
	EventWithdrawalUpdate  = "withdrawal_update"
)

// Notification is a message for a single user. Message may use the $name, $username and $email placeholders.
type Notification struct {
	Event   string
	UserID  uint
	Subject string
	Message string
}

// Notifier hands notifications off for asynchronous delivery.
// Implementations log their own failures, a notification never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}
