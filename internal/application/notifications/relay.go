package notifications

import (
	"context"
	"encoding/json"
	"time"

	"leadmarket-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dedupePrefix = "notify:sent:"

type RelayConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
	DedupeTTL  time.Duration
}

// Relay pulls undelivered outbox rows and hands them to the Sender.
type Relay struct {
	outbox *Outbox
	sender Sender
	rdb    *redis.Client
	cfg    RelayConfig
}

// Stats summarises one relay pass.
type Stats struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
	Duplicates   int
}

// DefaultRelayConfig polls every 2s and dead-letters after 5 failed sends.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Interval:   2 * time.Second,
		BatchSize:  100,
		ClaimTTL:   30 * time.Second,
		MaxRetries: 5,
		DedupeTTL:  24 * time.Hour,
	}
}

// NewRelay builds a relay. rdb may be nil, in which case deliveries are not de-duplicated.
// Zero fields in cfg fall back to DefaultRelayConfig.
func NewRelay(outbox *Outbox, sender Sender, rdb *redis.Client, cfg RelayConfig) *Relay {
	def := DefaultRelayConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = def.ClaimTTL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = def.DedupeTTL
	}
	if sender == nil {
		sender = LogSender{}
	}
	return &Relay{outbox: outbox, sender: sender, rdb: rdb, cfg: cfg}
}

// Run polls until ctx is cancelled. A failed pass is logged and the loop continues.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.cfg.Interval).Int("batch_size", r.cfg.BatchSize).Msg("notification relay started")
	for {
		if _, err := r.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("notification relay pass failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("notification relay stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch and attempts delivery of each row.
func (r *Relay) ProcessOnce(ctx context.Context) (Stats, error) {
	var st Stats
	claimToken := uuid.NewString()
	rows, err := r.outbox.Claim(ctx, r.cfg.BatchSize, claimToken, time.Now().UTC().Add(r.cfg.ClaimTTL))
	if err != nil {
		return st, err
	}
	st.Claimed = len(rows)

	for _, ev := range rows {
		now := time.Now().UTC()
		logger := log.With().Str("event_id", ev.EventID.String()).Str("event_type", ev.EventType).Int("retry_count", ev.RetryCount).Logger()

		if ev.RetryCount >= r.cfg.MaxRetries {
			st.DeadLettered++
			metrics.OutboxDeliveries.WithLabelValues("dead_lettered").Inc()
			_ = r.outbox.MarkDeadLettered(ctx, ev.EventID, claimToken, "retry threshold reached before delivery", now)
			continue
		}

		var msg Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			st.DeadLettered++
			metrics.OutboxDeliveries.WithLabelValues("dead_lettered").Inc()
			logger.Error().Err(err).Msg("undecodable notification payload moved to dead letter")
			_ = r.outbox.MarkDeadLettered(ctx, ev.EventID, claimToken, err.Error(), now)
			continue
		}

		key := dedupePrefix + ev.EventID.String()
		if r.rdb != nil {
			fresh, err := r.rdb.SetNX(ctx, key, claimToken, r.cfg.DedupeTTL).Result()
			if err != nil {
				logger.Warn().Err(err).Msg("delivery de-dupe unavailable, sending anyway")
			} else if !fresh {
				st.Duplicates++
				metrics.OutboxDeliveries.WithLabelValues("duplicate").Inc()
				logger.Info().Msg("notification already delivered, marking published")
				_ = r.outbox.MarkPublished(ctx, ev.EventID, claimToken, now)
				continue
			}
		}

		if err := r.sender.Send(ctx, ev.EventType, msg); err != nil {
			if r.rdb != nil {
				_ = r.rdb.Del(ctx, key).Err()
			}
			st.Failed++
			if ev.RetryCount+1 >= r.cfg.MaxRetries {
				st.DeadLettered++
				metrics.OutboxDeliveries.WithLabelValues("dead_lettered").Inc()
				logger.Error().Err(err).Msg("notification moved to dead letter")
				_ = r.outbox.MarkDeadLettered(ctx, ev.EventID, claimToken, err.Error(), now)
				continue
			}
			metrics.OutboxDeliveries.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Msg("notification delivery failed, retry scheduled")
			_ = r.outbox.MarkFailed(ctx, ev.EventID, claimToken, err.Error(), now)
			continue
		}

		st.Published++
		metrics.OutboxDeliveries.WithLabelValues("published").Inc()
		_ = r.outbox.MarkPublished(ctx, ev.EventID, claimToken, now)
	}

	if st.Claimed > 0 {
		log.Info().
			Int("batch_size", st.Claimed).
			Int("published_count", st.Published).
			Int("failed_count", st.Failed).
			Int("dead_lettered_count", st.DeadLettered).
			Int("duplicate_count", st.Duplicates).
			Msg("notification batch processed")
	}
	return st, nil
}
