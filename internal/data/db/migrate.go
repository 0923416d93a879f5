package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/harmony-sds/workflow-core/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Jobs + workflow plan
		// =========================
		&types.Job{},
		&types.WorkflowStep{},
		&types.JobLink{},
		&types.JobError{},

		// =========================
		// Work items + batching
		// =========================
		&types.WorkItem{},
		&types.Batch{},
		&types.BatchItem{},

		// =========================
		// Scheduler accounting
		// =========================
		&types.UserWork{},
	)
}

func EnsureWorkIndexes(db *gorm.DB) error {
	// uuid-ossp is already enabled in NewPostgresService, but safe to re-run
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	// Keeps the SKIP LOCKED claim scan on ready items narrow.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_work_items_ready_claim
		ON work_items (service_id, created_at)
		WHERE status = 'ready';
	`).Error; err != nil {
		return fmt.Errorf("create idx_work_items_ready_claim: %w", err)
	}

	// Step roll-up queries: counts by status within a (job, step).
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_work_items_job_step_status
		ON work_items (job_id, workflow_step_index, status);
	`).Error; err != nil {
		return fmt.Errorf("create idx_work_items_job_step_status: %w", err)
	}

	// Stalled-item sweep: running items ordered by start time.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_work_items_running_started
		ON work_items (started_at)
		WHERE status = 'running';
	`).Error; err != nil {
		return fmt.Errorf("create idx_work_items_running_started: %w", err)
	}

	// Sorted pull of items not yet assigned to a batch.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_batch_items_pending_sort
		ON batch_items (job_id, service_id, sort_index)
		WHERE batch_id IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_batch_items_pending_sort: %w", err)
	}

	// Ordered link pagination per job.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_links_job_created
		ON job_links (job_id, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_links_job_created: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureWorkIndexes(s.db); err != nil {
		s.log.Error("Work index migration failed", "error", err)
		return err
	}
	return nil
}
