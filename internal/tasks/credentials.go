package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

const credentialsTemplate = "Hello $name, your plot purchase was approved.\nUsername: $username\nPassword: %s"

// CredentialDelivery sends login credentials over the user's preferred channel at issuance time.
// Nothing is queued, so the password never reaches scheduled_tasks or its history.
type CredentialDelivery struct {
	sender *SendNotificationTaskDef
	log    *logrus.Entry
}

func NewCredentialDelivery(db *gorm.DB, email EmailSender, whatsapp WhatsappSender, log *logrus.Entry) *CredentialDelivery {
	log = log.WithField("component", "credential_delivery")
	return &CredentialDelivery{
		sender: &SendNotificationTaskDef{db: db, email: email, whatsapp: whatsapp, now: time.Now, log: log},
		log:    log,
	}
}

// DeliverCredentials falls back to e-mail when the user opted out of notifications,
// since credentials are the only way into the account
func (d *CredentialDelivery) DeliverCredentials(ctx context.Context, user *models.User, password string) error {
	pref, err := d.sender.preference(user.ID)
	if err != nil {
		return fmt.Errorf("load notification preference: %w", err)
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
		Event:         services.EventCredentialsIssued,
		NotifTemplate: fmt.Sprintf(credentialsTemplate, password),
		Subject:       "Your account credentials",
	}

	if pref.Channel == models.NotificationChannelWhatsapp {
		return d.sender.sendWhatsappNotif(ctx, recipient, args, pref)
	}
	if pref.Channel != models.NotificationChannelEmail {
		d.log.WithFields(logrus.Fields{"user_id": user.ID, "channel": pref.Channel}).Info("Sending credentials by e-mail")
	}
	return d.sender.sendEmailNotif(recipient, args)
}

var _ services.CredentialDelivery = (*CredentialDelivery)(nil)
