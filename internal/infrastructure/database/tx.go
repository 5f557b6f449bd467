package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"leadmarket-backend/internal/domain"
	"leadmarket-backend/internal/metrics"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TxPolicy bounds a transactional operation.
type TxPolicy struct {
	MaxAttempts    int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultTxPolicy() TxPolicy {
	return TxPolicy{
		MaxAttempts:    5,
		Timeout:        5 * time.Second,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// TxRunner runs a unit of work in a transaction and retries it when the store reports
// a transient conflict. Precondition failures are returned as-is on the first attempt.
type TxRunner struct {
	DB     *gorm.DB
	Policy TxPolicy
}

func NewTxRunner(db *gorm.DB, policy TxPolicy) *TxRunner {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTxPolicy().Timeout
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultTxPolicy().InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	return &TxRunner{DB: db, Policy: policy}
}

// Run executes fn inside a transaction. fn must only use the tx it is given.
// The returned error is nil or a *domain.Error.
func (r *TxRunner) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.Policy.Timeout)
	defer cancel()

	var lastErr error
	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		err := r.DB.WithContext(ctx).Transaction(fn)
		lastErr = err
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() == nil && IsTransient(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.Policy.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.TxRetries.Inc()
			log.Warn().Err(err).Int("attempt", attempts).Dur("backoff", next).Msg("transient store error, retrying transaction")
		}),
	)
	if err == nil {
		metrics.TxOutcomes.WithLabelValues(metrics.Outcome("")).Inc()
		return nil
	}

	out := r.classify(ctx, lastErr, attempts)
	metrics.TxOutcomes.WithLabelValues(metrics.Outcome(string(domain.KindOf(out)))).Inc()
	return out
}

func (r *TxRunner) classify(ctx context.Context, err error, attempts int) error {
	if err == nil {
		// Retry gave up while waiting on the context.
		return domain.WrapError(domain.KindTimeout, domain.ErrTimeout.Message, ctx.Err())
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.KindTimeout, domain.ErrTimeout.Message, err)
	}
	if IsTransient(err) {
		log.Error().Err(err).Int("attempts", attempts).Msg("transaction retries exhausted")
		return domain.WrapError(domain.KindUnavailable, domain.ErrUnavailable.Message, err)
	}
	log.Error().Err(err).Msg("transaction failed")
	return domain.WrapError(domain.KindInternal, domain.ErrInternal.Message, err)
}

func (r *TxRunner) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.Policy.InitialBackoff
	b.MaxInterval = r.Policy.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	return b
}

// IsTransient reports whether err is a store conflict or connectivity failure that a
// fresh attempt may not hit: serialization failure, deadlock, lock timeout, dropped
// connection, too many connections, or a busy SQLite database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57P01", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key")
}

// ForUpdate adds a row lock to the next query. Stores without row locks (SQLite) drop
// the clause; writes must still carry their own compare-and-swap guard.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
