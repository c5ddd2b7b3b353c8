package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/scheduler"
)

// JobStore adapts the database to the scheduler's persistence interface.
type JobStore struct {
	store *Store
}

func NewJobStore(store *Store) *JobStore {
	return &JobStore{store: store}
}

func (j *JobStore) Job(ctx context.Context, id uuid.UUID) (*scheduler.Job, error) {
	var job scheduler.Job
	query := `SELECT * FROM scheduled_jobs WHERE id = $1`
	err := j.store.db.GetContext(ctx, &job, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "scheduled job", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *JobStore) ListJobs(ctx context.Context) ([]scheduler.Job, error) {
	var jobs []scheduler.Job
	query := `SELECT * FROM scheduled_jobs ORDER BY created_at`
	err := j.store.db.SelectContext(ctx, &jobs, query)
	return jobs, err
}

func (j *JobStore) CreateJob(ctx context.Context, job *scheduler.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	query := `
		INSERT INTO scheduled_jobs (id, company_id, name, schedule, job_type, config, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := j.store.db.ExecContext(ctx, query,
		job.ID,
		job.CompanyID,
		job.Name,
		job.Schedule,
		job.JobType,
		job.Config,
		job.Enabled,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (j *JobStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	res, err := j.store.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "scheduled job", ID: id.String()}
	}
	return nil
}

func (j *JobStore) SetJobEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	query := `UPDATE scheduled_jobs SET enabled = $1, updated_at = $2 WHERE id = $3`
	res, err := j.store.db.ExecContext(ctx, query, enabled, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "scheduled job", ID: id.String()}
	}
	return nil
}

func (j *JobStore) UpdateLastRun(ctx context.Context, id uuid.UUID, lastRun time.Time) error {
	query := `UPDATE scheduled_jobs SET last_run = $1, updated_at = $2 WHERE id = $3`
	_, err := j.store.db.ExecContext(ctx, query, lastRun, time.Now(), id)
	return err
}

func (j *JobStore) CreateExecution(ctx context.Context, exec *scheduler.JobExecution) error {
	query := `
		INSERT INTO job_executions (id, job_id, status, started_at, ended_at, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := j.store.db.ExecContext(ctx, query,
		exec.ID,
		exec.JobID,
		exec.Status,
		exec.StartedAt,
		exec.EndedAt,
		exec.Error,
	)
	return err
}

func (j *JobStore) UpdateExecution(ctx context.Context, exec *scheduler.JobExecution) error {
	query := `UPDATE job_executions SET status = $1, ended_at = $2, error = $3 WHERE id = $4`
	_, err := j.store.db.ExecContext(ctx, query, exec.Status, exec.EndedAt, exec.Error, exec.ID)
	return err
}

func (j *JobStore) JobExecutions(ctx context.Context, jobID uuid.UUID, limit int) ([]scheduler.JobExecution, error) {
	var executions []scheduler.JobExecution
	query := `SELECT * FROM job_executions WHERE job_id = $1 ORDER BY started_at DESC LIMIT $2`
	err := j.store.db.SelectContext(ctx, &executions, query, jobID, limit)
	return executions, err
}
