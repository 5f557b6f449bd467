package leads

import (
	"context"
	"errors"
	"time"

	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Service struct {
	DB       *gorm.DB
	Tx       *database.TxRunner
	Notifier *notifications.Dispatcher
}

// GetLead returns a lead to its owning customer. Anyone else gets not found.
func (s *Service) GetLead(ctx context.Context, leadID, customerID uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	if err := s.DB.WithContext(ctx).Where("lead_id = ? AND customer_id = ?", leadID, customerID).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, err
	}
	return &lead, nil
}

// CancelLead lets the owning customer withdraw a lead that nobody has claimed yet.
// A lead owned by someone else is reported as not found.
func (s *Service) CancelLead(ctx context.Context, leadID, customerID uuid.UUID) (*domain.Lead, error) {
	var out domain.Lead
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		var lead domain.Lead
		if err := database.ForUpdate(tx).Where("lead_id = ?", leadID).First(&lead).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLeadNotFound
			}
			return err
		}
		if lead.CustomerID != customerID {
			return domain.ErrLeadNotFound
		}
		if !lead.Status.Claimable() {
			return domain.ErrLeadNotCancellable
		}

		now := time.Now()
		res := tx.Model(&domain.Lead{}).
			Where("lead_id = ? AND status IN ? AND version = ?", lead.LeadID, domain.ClaimableLeadStatuses, lead.Version).
			Updates(map[string]interface{}{
				"status":     domain.LeadStatusCancelledByCustomer,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrLeadNotCancellable
		}

		s.Notifier.EnqueueBestEffort(tx, domain.EventLeadCancelled, func(sp *gorm.DB) (notifications.Message, error) {
			email, err := notifications.UserEmail(sp, customerID)
			if err != nil {
				return notifications.Message{}, err
			}
			return notifications.Message{
				Recipients: notifications.Recipients(email),
				LeadID:     &lead.LeadID,
				LeadTitle:  lead.Title,
				CustomerID: &customerID,
			}, nil
		})

		lead.Status = domain.LeadStatusCancelledByCustomer
		lead.Version++
		lead.UpdatedAt = now
		out = lead
		return nil
	})
	if err != nil {
		log.Info().Err(err).Str("lead_id", leadID.String()).Str("customer_id", customerID.String()).Msg("lead cancel refused")
		return nil, err
	}
	log.Info().Str("lead_id", leadID.String()).Str("customer_id", customerID.String()).Msg("lead cancelled by customer")
	return &out, nil
}
