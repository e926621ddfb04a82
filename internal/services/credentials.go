package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"plotledger_app/internal/models"
	"plotledger_app/internal/repository"
)

const (
	generatedPasswordLength = 8
	passwordAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// CredentialDelivery sends freshly generated credentials straight to the user.
// The plaintext password must never be persisted by an implementation.
type CredentialDelivery interface {
	DeliverCredentials(ctx context.Context, user *models.User, password string) error
}

// CredentialIssuer creates login credentials for a buyer once their first plot is approved
type CredentialIssuer struct {
	store    repository.Store
	seq      SequenceAllocator
	locker   Locker
	delivery CredentialDelivery
	prefix   string
	suffix   string
	log      *logrus.Entry
}

func NewCredentialIssuer(store repository.Store, seq SequenceAllocator, locker Locker, delivery CredentialDelivery, prefix, suffix string, log *logrus.Entry) *CredentialIssuer {
	return &CredentialIssuer{
		store:    store,
		seq:      seq,
		locker:   locker,
		delivery: delivery,
		prefix:   prefix,
		suffix:   suffix,
		log:      log.WithField("component", "credentials"),
	}
}

// IssueCredentials is a no-op for users who already received credentials
func (c *CredentialIssuer) IssueCredentials(ctx context.Context, userID uint) error {
	unlock, err := c.locker.Lock(ctx, userLockKey(userID))
	if err != nil {
		return err
	}
	defer unlock()

	user, err := c.store.Users().GetByID(ctx, userID)
	if err != nil {
		return storageErr(err)
	}
	if user.CredentialsSent {
		return nil
	}

	// A user whose earlier delivery failed keeps the username already allocated
	if user.Username == nil {
		n, err := c.seq.Next(ctx, SequenceUsername)
		if err != nil {
			return err
		}
		username := FormatUsername(c.prefix, n, c.suffix)
		user.Username = &username
	}

	password, err := generatePassword(generatedPasswordLength)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.CredentialsSent = true
	if err := c.store.Users().Update(ctx, user); err != nil {
		return storageErr(err)
	}

	log := c.log.WithFields(logrus.Fields{"user_id": userID, "username": *user.Username})
	if err := c.delivery.DeliverCredentials(ctx, user, password); err != nil {
		// Leave the user eligible for another issuance attempt
		user.CredentialsSent = false
		if resetErr := c.store.Users().Update(ctx, user); resetErr != nil {
			log.WithError(resetErr).Error("Failed to reset credentials flag after delivery failure")
		}
		return fmt.Errorf("deliver credentials: %w", err)
	}

	log.Info("Credentials issued")
	return nil
}

// FormatUsername renders <prefix><n, at least two digits><suffix>
func FormatUsername(prefix string, n int64, suffix string) string {
	return fmt.Sprintf("%s%02d%s", prefix, n, suffix)
}

func generatePassword(length int) (string, error) {
	return randomString(passwordAlphabet, length)
}

// randomString draws length characters from alphabet using crypto/rand
func randomString(alphabet string, length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf), nil
}
