package contractors

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"
	"leadmarket-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrAlreadyRegistered = domain.NewError(domain.KindInvalidStateTransition, "User already has a contractor account")
	ErrEmailTaken        = domain.NewError(domain.KindInvalidStateTransition, "Email is already registered")
)

type Service struct {
	DB       *gorm.DB
	Tx       *database.TxRunner
	Notifier *notifications.Dispatcher
}

// Result is the outcome of a review. Changed is false for an idempotent repeat.
type Result struct {
	Account *domain.ContractorAccount `json:"account"`
	Changed bool                      `json:"changed"`
}

// Register opens a pending contractor account for an existing user.
func (s *Service) Register(ctx context.Context, userID uuid.UUID) (*domain.ContractorAccount, error) {
	var acct *domain.ContractorAccount
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.Where("user_id = ?", userID).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewError(domain.KindNotFound, "User not found")
			}
			return err
		}
		a, err := openAccount(tx, userID)
		if err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("contractor_id", acct.ContractorID.String()).Str("user_id", userID.String()).Msg("contractor registered")
	return acct, nil
}

// SignUp creates the login user and its pending account in one transaction, so a
// failed registration never leaves a contractor user without an account.
func (s *Service) SignUp(ctx context.Context, user *domain.User) (*domain.ContractorAccount, error) {
	var acct *domain.ContractorAccount
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		u := *user
		if err := tx.Create(&u).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailTaken
			}
			return err
		}
		a, err := openAccount(tx, u.UserID)
		if err != nil {
			return err
		}
		*user = u
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("contractor_id", acct.ContractorID.String()).Str("user_id", user.UserID.String()).Msg("contractor signed up")
	return acct, nil
}

func openAccount(tx *gorm.DB, userID uuid.UUID) (*domain.ContractorAccount, error) {
	var existing int64
	if err := tx.Model(&domain.ContractorAccount{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrAlreadyRegistered
	}
	a := &domain.ContractorAccount{UserID: userID, Status: domain.ContractorPending}
	if err := tx.Create(a).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return a, nil
}

// GetByUser returns the account owned by a login user.
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.ContractorAccount, error) {
	return s.find(s.DB.WithContext(ctx), "user_id = ?", userID)
}

func (s *Service) find(db *gorm.DB, query string, arg interface{}) (*domain.ContractorAccount, error) {
	var acct domain.ContractorAccount
	if err := db.Where(query, arg).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContractorNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// Approve moves a pending account to approved. Approving an approved account is a no-op
// success; a rejected account cannot be approved.
func (s *Service) Approve(ctx context.Context, contractorID uuid.UUID, notes string) (*Result, error) {
	return s.review(ctx, contractorID, domain.ContractorApproved, notes)
}

// Reject moves a pending account to rejected. Rejecting a rejected account is a no-op
// success; an approved account cannot be rejected.
func (s *Service) Reject(ctx context.Context, contractorID uuid.UUID, reason string) (*Result, error) {
	return s.review(ctx, contractorID, domain.ContractorRejected, reason)
}

func (s *Service) review(ctx context.Context, contractorID uuid.UUID, target domain.ContractorStatus, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	var result *Result
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		var acct domain.ContractorAccount
		if err := database.ForUpdate(tx).Where("contractor_id = ?", contractorID).First(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrContractorNotFound
			}
			return err
		}
		if acct.Status == target {
			result = &Result{Account: &acct, Changed: false}
			return nil
		}
		if acct.Status != domain.ContractorPending {
			return domain.NewError(domain.KindInvalidStateTransition,
				"Contractor account is "+string(acct.Status)+" and cannot be "+string(target))
		}

		now := time.Now()
		fields := map[string]interface{}{
			"status":      target,
			"reviewed_at": now,
			"updated_at":  now,
		}
		event := domain.EventContractorApproved
		if target == domain.ContractorApproved {
			if text != "" {
				fields["review_notes"] = text
				acct.ReviewNotes = &text
			}
		} else {
			event = domain.EventContractorRejected
			if text != "" {
				fields["rejection_reason"] = text
				acct.RejectionReason = &text
			}
		}
		res := tx.Model(&domain.ContractorAccount{}).
			Where("contractor_id = ? AND status = ?", contractorID, domain.ContractorPending).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidStateTransition
		}

		s.Notifier.EnqueueBestEffort(tx, event, func(sp *gorm.DB) (notifications.Message, error) {
			email, err := notifications.UserEmail(sp, acct.UserID)
			if err != nil {
				return notifications.Message{}, err
			}
			msg := notifications.Message{
				Recipients:   notifications.Recipients(email),
				ContractorID: &acct.ContractorID,
			}
			if target == domain.ContractorRejected {
				msg.Notes = text
			}
			return msg, nil
		})

		acct.Status = target
		acct.ReviewedAt = &now
		acct.UpdatedAt = now
		result = &Result{Account: &acct, Changed: true}
		return nil
	})
	if err != nil {
		log.Info().Err(err).Str("contractor_id", contractorID.String()).Str("target", string(target)).Msg("contractor review refused")
		return nil, err
	}
	if result.Changed {
		metrics.ContractorReviews.WithLabelValues(string(target)).Inc()
		log.Info().Str("contractor_id", contractorID.String()).Str("status", string(target)).Msg("contractor reviewed")
	}
	return result, nil
}
