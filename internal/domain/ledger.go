package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger reason codes.
const (
	ReasonLeadClaimDebit = "lead_claim_debit"
	ReasonAdminTopUp     = "admin_top_up"
)

// LedgerEntry is an append-only balance change. Amount is signed: debits are negative.
type LedgerEntry struct {
	EntryID      uuid.UUID  `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	ContractorID uuid.UUID  `gorm:"column:contractor_id;type:uuid;not null;index" json:"contractor_id"`
	Amount       int64      `gorm:"column:amount;not null" json:"amount"`
	Reason       string     `gorm:"column:reason;type:varchar(32);not null" json:"reason"`
	LeadID       *uuid.UUID `gorm:"column:lead_id;type:uuid;index" json:"lead_id"`
	BalanceAfter int64      `gorm:"column:balance_after;not null" json:"balance_after"`
	Note         *string    `gorm:"column:note" json:"note,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return nil
}
