package domain

import (
	"time"

	"leadmarket-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the login identity behind customers, contractors and administrators.
type User struct {
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname        string     `gorm:"column:fullname;not null" json:"fullname"`
	Email           string     `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash    string     `gorm:"column:password_hash;not null" json:"-"`
	Role            string     `gorm:"column:role;not null;default:customer" json:"role"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at" json:"email_verified_at"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ErrUnknownRole is returned when a user is saved with a role outside constants.ValidRoles.
var ErrUnknownRole = NewError(KindInvalidInput, "Unknown user role")

// BeforeCreate sets UUID if not set (for DBs without gen_random_uuid) and rejects
// unknown roles. An empty role means customer.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	if u.Role == "" {
		u.Role = constants.Customer
	}
	if !constants.IsValidRole(u.Role) {
		return ErrUnknownRole
	}
	return nil
}
