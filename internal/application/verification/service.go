package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"
	"leadmarket-backend/internal/pkg/validation"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const DefaultTTL = 15 * time.Minute

var ErrInvalidEmail = domain.NewError(domain.KindInvalidInput, "A valid email is required")

type Service struct {
	Tx       *database.TxRunner
	Notifier *notifications.Dispatcher
	TTL      time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// Issued is returned to the caller that asked for a code. Code is the plaintext and must
// only ever leave the process through the outbox email.
type Issued struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue stores a new one-time code for email and queues it for delivery.
func (s *Service) Issue(ctx context.Context, email string) (*Issued, error) {
	email = validation.NormalizeEmail(email)
	if !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	code, err := newCode()
	if err != nil {
		return nil, domain.WrapError(domain.KindInternal, domain.ErrInternal.Message, err)
	}
	expiresAt := s.now().Add(s.ttl())

	err = s.Tx.Run(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&domain.VerificationCode{
			Email:     email,
			CodeHash:  hashCode(code),
			ExpiresAt: expiresAt,
		}).Error; err != nil {
			return err
		}
		s.Notifier.EnqueueBestEffort(tx, domain.EventVerificationCodeIssued, notifications.Static(notifications.Message{
			Recipients: []string{email},
			Code:       code,
			ExpiresAt:  &expiresAt,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("email", email).Time("expires_at", expiresAt).Msg("verification code issued")
	return &Issued{Email: email, Code: code, ExpiresAt: expiresAt}, nil
}

// Consume checks and burns a code in one conditional update, so a code can be accepted
// at most once even under concurrent submission. On success the user's email is marked
// verified in the same transaction.
func (s *Service) Consume(ctx context.Context, email, code string) error {
	email = validation.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return domain.ErrInvalidCode
	}
	now := s.now()

	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&domain.VerificationCode{}).
			Where("email = ? AND code_hash = ? AND used_at IS NULL AND expires_at > ?", email, hashCode(code), now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidCode
		}
		return tx.Model(&domain.User{}).
			Where("email = ? AND email_verified_at IS NULL", email).
			Update("email_verified_at", now).Error
	})
	if err != nil {
		log.Info().Err(err).Str("email", email).Msg("verification code rejected")
		return err
	}
	log.Info().Str("email", email).Msg("verification code consumed")
	return nil
}
