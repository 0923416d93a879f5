package db

import (
	"context"
	"math"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/domain/work"
)

// TxRunner provides a shared transaction boundary primitive for workflow writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	InRetryableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RetryPolicy controls how often a retryable transaction is re-run.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	JitterFrac  float64
}

type gormTxRunner struct {
	db     *gorm.DB
	policy RetryPolicy
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB, policy RetryPolicy) TxRunner {
	return &gormTxRunner{db: db, policy: policy}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return work.NewError(work.CodeInternal, "db.tx", "transaction runner has nil db", nil)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
	return MapError("db.tx", err)
}

// InRetryableTx re-runs the transaction when it fails with a retryable code
// (serialization failure, deadlock, lock contention). The callback must be
// safe to execute more than once.
func (r *gormTxRunner) InRetryableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	attempts := r.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err = r.InTx(ctx, fn)
		if err == nil || !work.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return work.Wrap(work.CodeRetryable, "db.tx", ctx.Err())
		case <-time.After(computeBackoff(r.policy, attempt)):
		}
	}
	return err
}

func computeBackoff(r RetryPolicy, attempts int) time.Duration {
	minB := r.MinBackoff
	maxB := r.MaxBackoff
	j := r.JitterFrac
	if minB <= 0 {
		minB = 100 * time.Millisecond
	}
	if maxB <= 0 {
		maxB = 5 * time.Second
	}
	if j <= 0 {
		j = 0.20
	}
	if attempts < 1 {
		attempts = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempts-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}
