package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeadStatus string

const (
	LeadStatusNew                 LeadStatus = "new"
	LeadStatusOpen                LeadStatus = "open"
	LeadStatusClaimed             LeadStatus = "claimed"
	LeadStatusInProgress          LeadStatus = "in_progress"
	LeadStatusCompleted           LeadStatus = "completed"
	LeadStatusCancelledByCustomer LeadStatus = "cancelled_by_customer"
)

// ClaimableLeadStatuses are the pre-claim states. "new" behaves exactly like "open".
var ClaimableLeadStatuses = []LeadStatus{LeadStatusNew, LeadStatusOpen}

// Claimable reports whether a lead in this state may still be claimed or cancelled.
func (s LeadStatus) Claimable() bool {
	for _, st := range ClaimableLeadStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Lead is a customer job request. Rows are never deleted, only status-transitioned.
type Lead struct {
	LeadID     uuid.UUID  `gorm:"column:lead_id;type:uuid;primaryKey" json:"lead_id"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	Title      string     `gorm:"column:title;not null;default:''" json:"title"`
	Status     LeadStatus `gorm:"column:status;type:varchar(32);not null;default:'open';index" json:"status"`
	// ClaimCost overrides the flat claim rate for this lead when set.
	ClaimCost *int64    `gorm:"column:claim_cost" json:"claim_cost"`
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.LeadID == uuid.Nil {
		l.LeadID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LeadStatusOpen
	}
	return nil
}
