package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentClaimed   AssignmentStatus = "claimed"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

// Assignment binds a claimed lead to its contractor. The partial unique index keeps
// at most one non-cancelled assignment per lead at the storage level.
type Assignment struct {
	AssignmentID uuid.UUID        `gorm:"column:assignment_id;type:uuid;primaryKey" json:"assignment_id"`
	LeadID       uuid.UUID        `gorm:"column:lead_id;type:uuid;not null;index:idx_assignments_active_lead,unique,where:status <> 'cancelled'" json:"lead_id"`
	ContractorID uuid.UUID        `gorm:"column:contractor_id;type:uuid;not null;index" json:"contractor_id"`
	Status       AssignmentStatus `gorm:"column:status;type:varchar(16);not null;default:'claimed'" json:"status"`
	CreatedAt    time.Time        `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"column:updated_at" json:"updated_at"`
}

func (Assignment) TableName() string {
	return "assignments"
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.AssignmentID == uuid.Nil {
		a.AssignmentID = uuid.New()
	}
	return nil
}
