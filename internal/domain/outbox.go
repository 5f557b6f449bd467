package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification event types written to the outbox.
const (
	EventLeadClaimed            = "lead.claimed"
	EventLeadCancelled          = "lead.cancelled"
	EventContractorApproved     = "contractor.approved"
	EventContractorRejected     = "contractor.rejected"
	EventVerificationCodeIssued = "verification.code_issued"
)

// OutboxEvent is a pending notification. It is written in the same transaction as the
// state change it describes and delivered later by the relay.
type OutboxEvent struct {
	EventID        uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	EventType      string         `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	Payload        datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt      time.Time      `gorm:"column:created_at;index" json:"created_at"`
	PublishedAt    *time.Time     `gorm:"column:published_at;index" json:"published_at"`
	RetryCount     int            `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	LastError      *string        `gorm:"column:last_error" json:"last_error"`
	LastErrorAt    *time.Time     `gorm:"column:last_error_at" json:"last_error_at"`
	ClaimToken     *string        `gorm:"column:claim_token;index" json:"-"`
	ClaimUntil     *time.Time     `gorm:"column:claim_until" json:"-"`
	DeadLetteredAt *time.Time     `gorm:"column:dead_lettered_at" json:"dead_lettered_at"`
}

func (OutboxEvent) TableName() string {
	return "notification_outbox"
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
