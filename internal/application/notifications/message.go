package notifications

import (
	"errors"
	"time"

	"leadmarket-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is the JSON payload stored on an outbox row. Recipients are resolved when
// the event is enqueued so the relay never has to read domain tables.
type Message struct {
	Recipients   []string   `json:"recipients"`
	LeadID       *uuid.UUID `json:"lead_id,omitempty"`
	LeadTitle    string     `json:"lead_title,omitempty"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	ContractorID *uuid.UUID `json:"contractor_id,omitempty"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	Cost         int64      `json:"cost,omitempty"`
	BalanceAfter *int64     `json:"balance_after,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Code         string     `json:"code,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// UserEmail looks up a user's email. Unknown users resolve to "" without error.
func UserEmail(tx *gorm.DB, userID uuid.UUID) (string, error) {
	var u domain.User
	err := tx.Select("user_id", "email").Where("user_id = ?", userID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

// ContractorEmail resolves the login email behind a contractor account.
func ContractorEmail(tx *gorm.DB, contractorID uuid.UUID) (string, error) {
	var acct domain.ContractorAccount
	err := tx.Select("contractor_id", "user_id").Where("contractor_id = ?", contractorID).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return UserEmail(tx, acct.UserID)
}

// Recipients drops empty addresses.
func Recipients(emails ...string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
