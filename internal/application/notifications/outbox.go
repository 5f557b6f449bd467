package notifications

import (
	"context"
	"fmt"
	"time"

	"leadmarket-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outbox is the relay's view of notification_outbox.
type Outbox struct {
	DB *gorm.DB
}

// Claim reserves up to limit undelivered rows for claimToken until claimUntil. Rows locked
// by another relay are skipped; rows whose claim expired are taken over.
func (o *Outbox) Claim(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []domain.OutboxEvent
	err := o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subquery := tx.Model(&domain.OutboxEvent{}).
			Select("event_id").
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&domain.OutboxEvent{}).
			Where("event_id IN (?)", subquery).
			Updates(map[string]interface{}{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Order("created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, eventID uuid.UUID, claimToken string, at time.Time) error {
	return o.release(ctx, eventID, claimToken, map[string]interface{}{
		"published_at": at,
	})
}

func (o *Outbox) MarkFailed(ctx context.Context, eventID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.release(ctx, eventID, claimToken, map[string]interface{}{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	})
}

func (o *Outbox) MarkDeadLettered(ctx context.Context, eventID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return o.release(ctx, eventID, claimToken, map[string]interface{}{
		"retry_count":      gorm.Expr("retry_count + 1"),
		"last_error":       errMsg,
		"last_error_at":    at,
		"dead_lettered_at": at,
	})
}

// release applies fields and drops the claim, but only while claimToken still owns the row.
func (o *Outbox) release(ctx context.Context, eventID uuid.UUID, claimToken string, fields map[string]interface{}) error {
	fields["claim_token"] = nil
	fields["claim_until"] = nil
	return o.DB.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("event_id = ?", eventID).
		Where("claim_token = ?", claimToken).
		Updates(fields).Error
}

// Pending counts rows that still await delivery.
func (o *Outbox) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := o.DB.WithContext(ctx).Model(&domain.OutboxEvent{}).
		Where("published_at IS NULL AND dead_lettered_at IS NULL").
		Count(&n).Error
	return n, err
}
