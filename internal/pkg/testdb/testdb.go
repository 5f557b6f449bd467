// Package testdb opens migrated in-memory SQLite databases and seeds fixtures for tests.
package testdb

import (
	"testing"
	"time"

	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/infrastructure/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh migrated database. The pool is pinned to one connection so that
// every goroutine in a test sees the same in-memory database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Runner returns a transaction runner with short backoffs.
func Runner(db *gorm.DB) *database.TxRunner {
	p := database.DefaultTxPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 5 * time.Millisecond
	return database.NewTxRunner(db, p)
}

func User(t testing.TB, db *gorm.DB, email, role string) *domain.User {
	t.Helper()
	u := &domain.User{Fullname: "Test " + role, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func Lead(t testing.TB, db *gorm.DB, customerID uuid.UUID, status domain.LeadStatus) *domain.Lead {
	t.Helper()
	l := &domain.Lead{CustomerID: customerID, Title: "Fix leaking tap", Status: status}
	require.NoError(t, db.Create(l).Error)
	return l
}

// Contractor creates an account in the given status. A positive balance is funded
// through an admin_top_up ledger entry so the cache and the ledger agree.
func Contractor(t testing.TB, db *gorm.DB, status domain.ContractorStatus, balance int64) *domain.ContractorAccount {
	t.Helper()
	u := User(t, db, uuid.NewString()+"@contractor.test", "contractor")
	acct := &domain.ContractorAccount{UserID: u.UserID, Status: status, Balance: balance}
	require.NoError(t, db.Create(acct).Error)
	if balance > 0 {
		require.NoError(t, db.Create(&domain.LedgerEntry{
			ContractorID: acct.ContractorID,
			Amount:       balance,
			Reason:       domain.ReasonAdminTopUp,
			BalanceAfter: balance,
		}).Error)
	}
	return acct
}
