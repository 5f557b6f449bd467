package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (*Service, *gorm.DB) {
	db := testdb.Open(t)
	return &Service{DB: db, Tx: testdb.Runner(db)}, db
}

func TestDebit_AppendsEntryWithBalanceAfter(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 10000)
	lead := uuid.New()

	var entry *domain.LedgerEntry
	err := s.Tx.Run(context.Background(), func(tx *gorm.DB) error {
		var err error
		entry, err = s.Debit(tx, acct.ContractorID, 5000, domain.ReasonLeadClaimDebit, &lead)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-5000), entry.Amount)
	assert.Equal(t, int64(5000), entry.BalanceAfter)
	require.NotNil(t, entry.LeadID)
	assert.Equal(t, lead, *entry.LeadID)

	bal, err := s.Balance(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal)
}

func TestDebit_InsufficientCreditLeavesBalanceUntouched(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 4000)

	err := s.Tx.Run(context.Background(), func(tx *gorm.DB) error {
		_, err := s.Debit(tx, acct.ContractorID, 5000, domain.ReasonLeadClaimDebit, nil)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientCredit))

	bal, err := s.Balance(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), bal)

	entries, err := s.Entries(context.Background(), acct.ContractorID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDebit_UnknownContractor(t *testing.T) {
	s, _ := setupLedger(t)

	err := s.Tx.Run(context.Background(), func(tx *gorm.DB) error {
		_, err := s.Debit(tx, uuid.New(), 100, domain.ReasonLeadClaimDebit, nil)
		return err
	})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestDebit_RejectsNonPositiveAmount(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 100)

	_, err := s.Debit(db, acct.ContractorID, 0, domain.ReasonLeadClaimDebit, nil)
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestDebit_DetectsDriftAndRollsBack(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 1000)
	require.NoError(t, db.Model(&domain.ContractorAccount{}).
		Where("contractor_id = ?", acct.ContractorID).
		Update("balance", 3000).Error)

	err := s.Tx.Run(context.Background(), func(tx *gorm.DB) error {
		_, err := s.Debit(tx, acct.ContractorID, 500, domain.ReasonLeadClaimDebit, nil)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	bal, err := s.Balance(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), bal)
}

func TestConcurrentDebits_NeverOverdraw(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 100)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, insufficient := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Tx.Run(context.Background(), func(tx *gorm.DB) error {
				_, err := s.Debit(tx, acct.ContractorID, 30, domain.ReasonLeadClaimDebit, nil)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientCredit):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, workers-3, insufficient)

	report, err := s.Reconcile(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.Cached)
	assert.Zero(t, report.Drift)
}

func TestTopUp_CreditsAndKeepsLedgerInSync(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorPending, 0)

	entry, err := s.TopUp(context.Background(), acct.ContractorID, 2500, "welcome credit")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), entry.Amount)
	assert.Equal(t, int64(2500), entry.BalanceAfter)
	assert.Equal(t, domain.ReasonAdminTopUp, entry.Reason)
	require.NotNil(t, entry.Note)
	assert.Equal(t, "welcome credit", *entry.Note)

	report, err := s.Reconcile(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), report.LedgerSum)
	assert.Zero(t, report.Drift)
}

func TestTopUp_UnknownContractor(t *testing.T) {
	s, _ := setupLedger(t)
	_, err := s.TopUp(context.Background(), uuid.New(), 100, "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEntries_NewestFirst(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 100)
	_, err := s.TopUp(context.Background(), acct.ContractorID, 50, "")
	require.NoError(t, err)

	entries, err := s.Entries(context.Background(), acct.ContractorID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(150), entries[0].BalanceAfter)
	assert.Equal(t, int64(100), entries[1].BalanceAfter)

	limited, err := s.Entries(context.Background(), acct.ContractorID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecompute_RepairsTamperedCache(t *testing.T) {
	s, db := setupLedger(t)
	acct := testdb.Contractor(t, db, domain.ContractorApproved, 700)
	require.NoError(t, db.Model(&domain.ContractorAccount{}).
		Where("contractor_id = ?", acct.ContractorID).
		Update("balance", 900).Error)

	report, err := s.Reconcile(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), report.Drift)
	assert.False(t, report.Repaired)

	report, err = s.Recompute(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.True(t, report.Repaired)
	assert.Equal(t, int64(700), report.LedgerSum)

	bal, err := s.Balance(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal)

	report, err = s.Recompute(context.Background(), acct.ContractorID)
	require.NoError(t, err)
	assert.False(t, report.Repaired)
}
