package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContractorStatus string

const (
	ContractorPending  ContractorStatus = "pending"
	ContractorApproved ContractorStatus = "approved"
	ContractorRejected ContractorStatus = "rejected"
)

// ContractorAccount holds the approval state and the spendable credit balance.
// Balance is a cache of SUM(ledger_entries.amount) and is only written by the ledger.
type ContractorAccount struct {
	ContractorID    uuid.UUID        `gorm:"column:contractor_id;type:uuid;primaryKey" json:"contractor_id"`
	UserID          uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	Status          ContractorStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'" json:"status"`
	Balance         int64            `gorm:"column:balance;not null;default:0;check:chk_contractor_balance_non_negative,balance >= 0" json:"balance"`
	ReviewNotes     *string          `gorm:"column:review_notes" json:"review_notes"`
	RejectionReason *string          `gorm:"column:rejection_reason" json:"rejection_reason"`
	ReviewedAt      *time.Time       `gorm:"column:reviewed_at" json:"reviewed_at"`
	CreatedAt       time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (ContractorAccount) TableName() string {
	return "contractor_accounts"
}

func (a *ContractorAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ContractorID == uuid.Nil {
		a.ContractorID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ContractorPending
	}
	return nil
}
