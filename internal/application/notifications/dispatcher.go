package notifications

import (
	"context"
	"encoding/json"

	"leadmarket-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dispatcher records notifications in the outbox. The Relay delivers them later.
type Dispatcher struct {
	DB *gorm.DB
}

// Enqueue writes the event inside tx. It commits or rolls back with the caller's change.
func (d *Dispatcher) Enqueue(tx *gorm.DB, eventType string, msg Message) (*domain.OutboxEvent, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	ev := &domain.OutboxEvent{EventType: eventType, Payload: datatypes.JSON(raw)}
	if err := tx.Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// Notify is fire-and-forget for callers outside a transaction. Failures are logged and
// never returned.
func (d *Dispatcher) Notify(ctx context.Context, eventType string, msg Message) {
	if d == nil || d.DB == nil {
		return
	}
	if _, err := d.Enqueue(d.DB.WithContext(ctx), eventType, msg); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("notification dropped")
	}
}

// EnqueueBestEffort builds and enqueues the message under a savepoint inside tx. Recipient
// lookups done by build run in the savepoint too, so any failure there or in the insert
// rolls back only the savepoint and the caller's change still commits.
func (d *Dispatcher) EnqueueBestEffort(tx *gorm.DB, eventType string, build func(sp *gorm.DB) (Message, error)) {
	if d == nil {
		return
	}
	err := tx.Transaction(func(sp *gorm.DB) error {
		msg, err := build(sp)
		if err != nil {
			return err
		}
		_, err = d.Enqueue(sp, eventType, msg)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("notification not enqueued")
	}
}

// Static wraps a message that needs no lookups.
func Static(msg Message) func(*gorm.DB) (Message, error) {
	return func(*gorm.DB) (Message, error) { return msg, nil }
}
