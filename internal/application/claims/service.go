package claims

import (
	"context"
	"errors"
	"time"

	"leadmarket-backend/internal/application/ledger"
	"leadmarket-backend/internal/application/notifications"
	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"
	"leadmarket-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DefaultClaimCost is the flat claim price in minor units when nothing else is configured.
const DefaultClaimCost int64 = 5000

// Pricing decides what a claim costs.
type Pricing struct {
	DefaultCost int64
}

// CostFor returns the lead's own claim_cost when set, otherwise the flat rate.
func (p Pricing) CostFor(lead *domain.Lead) int64 {
	if lead.ClaimCost != nil && *lead.ClaimCost > 0 {
		return *lead.ClaimCost
	}
	if p.DefaultCost > 0 {
		return p.DefaultCost
	}
	return DefaultClaimCost
}

// ClaimResult is returned to the winning contractor.
type ClaimResult struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	LeadID       uuid.UUID `json:"lead_id"`
	ContractorID uuid.UUID `json:"contractor_id"`
	Cost         int64     `json:"cost"`
	BalanceAfter int64     `json:"balance_after"`
}

type Service struct {
	Tx       *database.TxRunner
	Ledger   *ledger.Service
	Notifier *notifications.Dispatcher
	Pricing  Pricing
}

// ClaimLead gives the lead to exactly one approved contractor and charges them for it.
// Lead status, debit, ledger entry, assignment and the outbox event commit together or
// not at all. Losers of a race get LeadAlreadyClaimed and are never charged.
func (s *Service) ClaimLead(ctx context.Context, leadID, contractorID uuid.UUID) (*ClaimResult, error) {
	start := time.Now()
	var result *ClaimResult
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		r, err := s.claim(tx, leadID, contractorID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	kind := domain.KindOf(err)
	metrics.ClaimAttempts.WithLabelValues(metrics.Outcome(string(kind))).Inc()
	metrics.ClaimDuration.Observe(time.Since(start).Seconds())

	logger := log.With().Str("lead_id", leadID.String()).Str("contractor_id", contractorID.String()).Logger()
	if err != nil {
		if domain.IsDomain(err) {
			logger.Info().Str("kind", string(kind)).Msg("lead claim refused")
		} else {
			logger.Error().Err(err).Str("kind", string(kind)).Msg("lead claim failed")
		}
		return nil, err
	}
	logger.Info().
		Str("assignment_id", result.AssignmentID.String()).
		Int64("cost", result.Cost).
		Int64("balance_after", result.BalanceAfter).
		Msg("lead claimed")
	return result, nil
}

func (s *Service) claim(tx *gorm.DB, leadID, contractorID uuid.UUID) (*ClaimResult, error) {
	// Lock order is always lead then account.
	var lead domain.Lead
	if err := database.ForUpdate(tx).Where("lead_id = ?", leadID).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, err
	}
	if !lead.Status.Claimable() {
		return nil, domain.ErrLeadAlreadyClaimed
	}

	var acct domain.ContractorAccount
	if err := database.ForUpdate(tx).Where("contractor_id = ?", contractorID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrContractorNotFound
		}
		return nil, err
	}
	if acct.Status != domain.ContractorApproved {
		return nil, domain.ErrContractorNotEligible
	}

	cost := s.Pricing.CostFor(&lead)
	entry, err := s.Ledger.Debit(tx, contractorID, cost, domain.ReasonLeadClaimDebit, &lead.LeadID)
	if err != nil {
		return nil, err
	}

	assignment := &domain.Assignment{
		LeadID:       lead.LeadID,
		ContractorID: contractorID,
		Status:       domain.AssignmentClaimed,
	}
	if err := tx.Create(assignment).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, domain.ErrLeadAlreadyClaimed
		}
		return nil, err
	}

	res := tx.Model(&domain.Lead{}).
		Where("lead_id = ? AND status IN ? AND version = ?", lead.LeadID, domain.ClaimableLeadStatuses, lead.Version).
		Updates(map[string]interface{}{
			"status":     domain.LeadStatusClaimed,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrLeadAlreadyClaimed
	}

	balanceAfter := entry.BalanceAfter
	s.Notifier.EnqueueBestEffort(tx, domain.EventLeadClaimed, func(sp *gorm.DB) (notifications.Message, error) {
		customerEmail, err := notifications.UserEmail(sp, lead.CustomerID)
		if err != nil {
			return notifications.Message{}, err
		}
		contractorEmail, err := notifications.ContractorEmail(sp, contractorID)
		if err != nil {
			return notifications.Message{}, err
		}
		return notifications.Message{
			Recipients:   notifications.Recipients(customerEmail, contractorEmail),
			LeadID:       &lead.LeadID,
			LeadTitle:    lead.Title,
			CustomerID:   &lead.CustomerID,
			ContractorID: &contractorID,
			AssignmentID: &assignment.AssignmentID,
			Cost:         cost,
			BalanceAfter: &balanceAfter,
		}, nil
	})

	return &ClaimResult{
		AssignmentID: assignment.AssignmentID,
		LeadID:       lead.LeadID,
		ContractorID: contractorID,
		Cost:         cost,
		BalanceAfter: balanceAfter,
	}, nil
}
