package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/harmony-sds/workflow-core/internal/domain/work"
)

func TestMapErrorNil(t *testing.T) {
	if err := MapError("db.test", nil); err != nil {
		t.Fatalf("MapError(nil) = %v, want nil", err)
	}
}

func TestMapErrorPassesThroughWorkErrors(t *testing.T) {
	orig := work.NewError(work.CodeConflict, "db.test", "taken", nil)
	got := MapError("db.other", orig)
	if got != orig {
		t.Fatalf("MapError rewrapped a work error: %v", got)
	}
}

func TestMapErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want work.ErrorCode
	}{
		{"record not found", gorm.ErrRecordNotFound, work.CodeNotFound},
		{"context canceled", context.Canceled, work.CodeRetryable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, work.CodeConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, work.CodePreconditionFailed},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, work.CodeRetryable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, work.CodeRetryable},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, work.CodeRetryable},
		{"duplicate key text", errors.New("ERROR: duplicate key value violates unique constraint"), work.CodeConflict},
		{"timeout text", errors.New("dial tcp: i/o timeout"), work.CodeRetryable},
		{"unknown", errors.New("boom"), work.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError("db.test", tc.err)
			if work.CodeOf(got) != tc.want {
				t.Fatalf("MapError(%v) code = %s, want %s", tc.err, work.CodeOf(got), tc.want)
			}
		})
	}
}

func TestComputeBackoffBounds(t *testing.T) {
	policy := RetryPolicy{
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: 1 * time.Second,
		JitterFrac: 0.2,
	}
	for attempt := 1; attempt <= 6; attempt++ {
		d := computeBackoff(policy, attempt)
		if d < 0 {
			t.Fatalf("attempt %d: negative backoff %v", attempt, d)
		}
		upper := time.Duration(float64(policy.MaxBackoff) * 1.2)
		if d > upper {
			t.Fatalf("attempt %d: backoff %v exceeds jittered cap %v", attempt, d, upper)
		}
	}
}

func TestComputeBackoffGrows(t *testing.T) {
	policy := RetryPolicy{
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: time.Hour,
		JitterFrac: 0.0001,
	}
	first := computeBackoff(policy, 1)
	fourth := computeBackoff(policy, 4)
	if fourth <= first {
		t.Fatalf("backoff did not grow: attempt 1 = %v, attempt 4 = %v", first, fourth)
	}
}
