package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationCode is a one-time code. Only the sha256 of the code is stored.
type VerificationCode struct {
	CodeID    uuid.UUID  `gorm:"column:code_id;type:uuid;primaryKey" json:"code_id"`
	Email     string     `gorm:"column:email;not null;index" json:"email"`
	CodeHash  string     `gorm:"column:code_hash;type:varchar(64);not null" json:"-"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at" json:"used_at"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (VerificationCode) TableName() string {
	return "verification_codes"
}

func (v *VerificationCode) BeforeCreate(tx *gorm.DB) error {
	if v.CodeID == uuid.Nil {
		v.CodeID = uuid.New()
	}
	return nil
}
