package ledger

import (
	"context"
	"errors"
	"time"

	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrNonPositiveAmount = errors.New("amount must be positive")

var errLedgerDrift = domain.NewError(domain.KindInternal, "Ledger does not match cached balance")

// Service owns every write to contractor_accounts.balance. Each balance change is paired
// with an append-only ledger entry in the same transaction.
type Service struct {
	DB *gorm.DB
	Tx *database.TxRunner
}

// Report compares the cached balance with the ledger sum.
type Report struct {
	ContractorID uuid.UUID `json:"contractor_id"`
	Cached       int64     `json:"cached_balance"`
	LedgerSum    int64     `json:"ledger_sum"`
	Drift        int64     `json:"drift"`
	Repaired     bool      `json:"repaired"`
}

// Debit takes amount from the contractor inside the caller's transaction. The decrement
// only applies while the balance covers it, so concurrent debits can never overdraw.
func (s *Service) Debit(tx *gorm.DB, contractorID uuid.UUID, amount int64, reason string, leadID *uuid.UUID) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	res := tx.Model(&domain.ContractorAccount{}).
		Where("contractor_id = ? AND balance >= ?", contractorID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.cachedBalance(tx, contractorID); err != nil {
			return nil, err
		}
		return nil, domain.ErrInsufficientCredit
	}
	return s.appendEntry(tx, contractorID, -amount, reason, leadID, nil)
}

// Credit adds amount to the contractor inside the caller's transaction.
func (s *Service) Credit(tx *gorm.DB, contractorID uuid.UUID, amount int64, reason string, note *string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	res := tx.Model(&domain.ContractorAccount{}).
		Where("contractor_id = ?", contractorID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrContractorNotFound
	}
	return s.appendEntry(tx, contractorID, amount, reason, nil, note)
}

// TopUp credits a contractor in its own transaction.
func (s *Service) TopUp(ctx context.Context, contractorID uuid.UUID, amount int64, note string) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	var entry *domain.LedgerEntry
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		var n *string
		if note != "" {
			n = &note
		}
		e, err := s.Credit(tx, contractorID, amount, domain.ReasonAdminTopUp, n)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("contractor_id", contractorID.String()).Int64("amount", amount).Int64("balance_after", entry.BalanceAfter).Msg("contractor topped up")
	return entry, nil
}

func (s *Service) appendEntry(tx *gorm.DB, contractorID uuid.UUID, amount int64, reason string, leadID *uuid.UUID, note *string) (*domain.LedgerEntry, error) {
	balance, err := s.cachedBalance(tx, contractorID)
	if err != nil {
		return nil, err
	}
	entry := &domain.LedgerEntry{
		ContractorID: contractorID,
		Amount:       amount,
		Reason:       reason,
		LeadID:       leadID,
		BalanceAfter: balance,
		Note:         note,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	sum, err := ledgerSum(tx, contractorID)
	if err != nil {
		return nil, err
	}
	if sum != balance {
		log.Error().Str("contractor_id", contractorID.String()).Int64("cached", balance).Int64("ledger_sum", sum).Msg("ledger drift detected, aborting")
		return nil, errLedgerDrift
	}
	return entry, nil
}

// Balance returns the cached balance.
func (s *Service) Balance(ctx context.Context, contractorID uuid.UUID) (int64, error) {
	return s.cachedBalance(s.DB.WithContext(ctx), contractorID)
}

// Entries returns the contractor's ledger, newest first. limit <= 0 returns everything.
func (s *Service) Entries(ctx context.Context, contractorID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	q := s.DB.WithContext(ctx).
		Where("contractor_id = ?", contractorID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Reconcile compares the cached balance with the ledger sum without changing anything.
func (s *Service) Reconcile(ctx context.Context, contractorID uuid.UUID) (*Report, error) {
	db := s.DB.WithContext(ctx)
	cached, err := s.cachedBalance(db, contractorID)
	if err != nil {
		return nil, err
	}
	sum, err := ledgerSum(db, contractorID)
	if err != nil {
		return nil, err
	}
	return &Report{ContractorID: contractorID, Cached: cached, LedgerSum: sum, Drift: cached - sum}, nil
}

// Recompute rewrites the cached balance from the ledger sum under a row lock.
func (s *Service) Recompute(ctx context.Context, contractorID uuid.UUID) (*Report, error) {
	var report *Report
	err := s.Tx.Run(ctx, func(tx *gorm.DB) error {
		var acct domain.ContractorAccount
		if err := database.ForUpdate(tx).Where("contractor_id = ?", contractorID).First(&acct).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrContractorNotFound
			}
			return err
		}
		sum, err := ledgerSum(tx, contractorID)
		if err != nil {
			return err
		}
		report = &Report{ContractorID: contractorID, Cached: acct.Balance, LedgerSum: sum, Drift: acct.Balance - sum}
		if report.Drift == 0 {
			return nil
		}
		res := tx.Model(&domain.ContractorAccount{}).
			Where("contractor_id = ? AND balance = ?", contractorID, acct.Balance).
			Updates(map[string]interface{}{"balance": sum, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLedgerDrift
		}
		report.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if report.Repaired {
		log.Warn().Str("contractor_id", contractorID.String()).Int64("drift", report.Drift).Msg("cached balance recomputed from ledger")
	}
	return report, nil
}

func (s *Service) cachedBalance(db *gorm.DB, contractorID uuid.UUID) (int64, error) {
	var acct domain.ContractorAccount
	err := db.Select("contractor_id", "balance").Where("contractor_id = ?", contractorID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrContractorNotFound
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func ledgerSum(db *gorm.DB, contractorID uuid.UUID) (int64, error) {
	var sum int64
	err := db.Model(&domain.LedgerEntry{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS BIGINT)").
		Where("contractor_id = ?", contractorID).
		Row().Scan(&sum)
	return sum, err
}
