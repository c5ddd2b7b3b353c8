// Package scheduler runs recurring compliance and risk recalculations on
// cron schedules. Job definitions and execution history are persisted so
// schedules survive restarts.
package scheduler

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// JobType defines what a scheduled job recalculates.
type JobType string

const (
	JobTypeRecalculateFramework JobType = "recalculate_framework"
	JobTypeRecalculateAll       JobType = "recalculate_all"
)

// JobConfig carries job parameters as a JSON object column.
type JobConfig map[string]string

func (c JobConfig) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(JobConfig{})
	}
	return json.Marshal(c)
}

func (c *JobConfig) Scan(value interface{}) error {
	if value == nil {
		*c = JobConfig{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, c)
}

// Job is a persisted schedule entry.
type Job struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CompanyID uuid.UUID  `json:"company_id" db:"company_id"`
	Name      string     `json:"name" db:"name"`
	Schedule  string     `json:"schedule" db:"schedule"` // cron expression
	JobType   JobType    `json:"job_type" db:"job_type"`
	Config    JobConfig  `json:"config" db:"config"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	LastRun   *time.Time `json:"last_run,omitempty" db:"last_run"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// JobExecution is one run of a job.
type JobExecution struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	JobID     uuid.UUID       `json:"job_id" db:"job_id"`
	Status    ExecutionStatus `json:"status" db:"status"`
	StartedAt time.Time       `json:"started_at" db:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	Error     string          `json:"error,omitempty" db:"error"`
}

// JobHandler executes one job.
type JobHandler func(ctx context.Context, job *Job) error

// Store persists jobs and their execution history.
type Store interface {
	Job(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	CreateJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	SetJobEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	UpdateLastRun(ctx context.Context, id uuid.UUID, lastRun time.Time) error
	CreateExecution(ctx context.Context, exec *JobExecution) error
	UpdateExecution(ctx context.Context, exec *JobExecution) error
	JobExecutions(ctx context.Context, jobID uuid.UUID, limit int) ([]JobExecution, error)
}

type Scheduler struct {
	cron     *cron.Cron
	store    Store
	handlers map[JobType]JobHandler
	entries  map[uuid.UUID]cron.EntryID
	mu       sync.RWMutex
	logger   *slog.Logger
}

func New(store Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		store:    store,
		handlers: make(map[JobType]JobHandler),
		entries:  make(map[uuid.UUID]cron.EntryID),
		logger:   logger,
	}
}

// RegisterHandler registers the handler for a job type.
func (s *Scheduler) RegisterHandler(jobType JobType, handler JobHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

// Start loads persisted jobs and begins running the enabled ones.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("loading jobs: %w", err)
	}

	for i := range jobs {
		job := jobs[i]
		if !job.Enabled {
			continue
		}
		if err := s.scheduleJob(&job); err != nil {
			s.logger.Error("failed to schedule job",
				"job_id", job.ID,
				"job_name", job.Name,
				"error", err)
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs_count", len(jobs))
	return nil
}

// Stop stops the cron loop; the returned context is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// AddJob persists a job and schedules it if enabled.
func (s *Scheduler) AddJob(ctx context.Context, job *Job) error {
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return err
	}
	if job.Enabled {
		return s.scheduleJob(job)
	}
	return nil
}

func (s *Scheduler) DeleteJob(ctx context.Context, id uuid.UUID) error {
	s.unscheduleJob(id)
	return s.store.DeleteJob(ctx, id)
}

// SetJobEnabled flips a job on or off and updates its schedule entry.
func (s *Scheduler) SetJobEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	if err := s.store.SetJobEnabled(ctx, id, enabled); err != nil {
		return err
	}
	if !enabled {
		s.unscheduleJob(id)
		return nil
	}
	job, err := s.store.Job(ctx, id)
	if err != nil {
		return err
	}
	return s.scheduleJob(job)
}

// RunJobNow triggers a job outside its schedule.
func (s *Scheduler) RunJobNow(ctx context.Context, id uuid.UUID) error {
	job, err := s.store.Job(ctx, id)
	if err != nil {
		return err
	}
	go s.executeJob(job)
	return nil
}

func (s *Scheduler) ListJobs(ctx context.Context) ([]Job, error) {
	return s.store.ListJobs(ctx)
}

func (s *Scheduler) JobExecutions(ctx context.Context, jobID uuid.UUID, limit int) ([]JobExecution, error) {
	return s.store.JobExecutions(ctx, jobID, limit)
}

func (s *Scheduler) scheduleJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[job.ID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, job.ID)
	}

	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.executeJob(job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.entries[job.ID] = entryID

	s.logger.Info("scheduled job",
		"job_id", job.ID,
		"job_name", job.Name,
		"schedule", job.Schedule)
	return nil
}

func (s *Scheduler) unscheduleJob(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *Scheduler) executeJob(job *Job) {
	ctx := context.Background()
	start := time.Now()

	exec := &JobExecution{
		ID:        uuid.New(),
		JobID:     job.ID,
		Status:    StatusRunning,
		StartedAt: start,
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		s.logger.Error("failed to create execution record", "error", err)
	}

	s.logger.Info("executing job",
		"job_id", job.ID,
		"job_name", job.Name,
		"execution_id", exec.ID)

	s.mu.RLock()
	handler, ok := s.handlers[job.JobType]
	s.mu.RUnlock()

	if !ok {
		exec.Status = StatusFailed
		exec.Error = fmt.Sprintf("no handler registered for job type: %s", job.JobType)
		end := time.Now()
		exec.EndedAt = &end
		_ = s.store.UpdateExecution(ctx, exec)
		return
	}

	err := handler(ctx, job)
	end := time.Now()
	exec.EndedAt = &end

	if err != nil {
		exec.Status = StatusFailed
		exec.Error = err.Error()
		s.logger.Error("job execution failed",
			"job_id", job.ID,
			"job_name", job.Name,
			"error", err,
			"duration", end.Sub(start))
	} else {
		exec.Status = StatusCompleted
		s.logger.Info("job execution completed",
			"job_id", job.ID,
			"job_name", job.Name,
			"duration", end.Sub(start))
	}

	_ = s.store.UpdateExecution(ctx, exec)
	_ = s.store.UpdateLastRun(ctx, job.ID, start)
}

// RecalculationHandlers wires the calculation engines into the scheduler.
type RecalculationHandlers struct {
	RecalculateFramework func(ctx context.Context, companyID, frameworkID uuid.UUID) error
	RecalculateAll       func(ctx context.Context, companyID uuid.UUID) error
}

// Register binds the handlers to their job types. Framework jobs read
// the target framework from the job's config.
func (h *RecalculationHandlers) Register(s *Scheduler) {
	if h.RecalculateFramework != nil {
		s.RegisterHandler(JobTypeRecalculateFramework, func(ctx context.Context, job *Job) error {
			raw, ok := job.Config["framework_id"]
			if !ok {
				return fmt.Errorf("framework_id not specified in job config")
			}
			frameworkID, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("parsing framework_id: %w", err)
			}
			return h.RecalculateFramework(ctx, job.CompanyID, frameworkID)
		})
	}

	if h.RecalculateAll != nil {
		s.RegisterHandler(JobTypeRecalculateAll, func(ctx context.Context, job *Job) error {
			return h.RecalculateAll(ctx, job.CompanyID)
		})
	}
}
