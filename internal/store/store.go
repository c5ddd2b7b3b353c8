package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/complyhub/comply/internal/models"
)

type Store struct {
	db *sqlx.DB
}

type Config struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

func New(cfg Config) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Framework(ctx context.Context, id uuid.UUID) (*models.Framework, error) {
	var fw models.Framework
	query := `SELECT * FROM frameworks WHERE id = $1 AND is_deleted = false`
	err := s.db.GetContext(ctx, &fw, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "framework", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &fw, nil
}

func (s *Store) ListFrameworks(ctx context.Context, publishedOnly bool) ([]models.Framework, error) {
	query := `SELECT * FROM frameworks WHERE is_deleted = false`
	if publishedOnly {
		query += ` AND is_published = true`
	}
	query += ` ORDER BY code`

	var frameworks []models.Framework
	err := s.db.SelectContext(ctx, &frameworks, query)
	return frameworks, err
}

func (s *Store) Department(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var dept models.Department
	query := `SELECT * FROM departments WHERE id = $1 AND is_deleted = false`
	err := s.db.GetContext(ctx, &dept, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "department", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (s *Store) Departments(ctx context.Context, companyID uuid.UUID) ([]models.Department, error) {
	var depts []models.Department
	query := `SELECT * FROM departments WHERE company_id = $1 AND is_deleted = false ORDER BY name`
	err := s.db.SelectContext(ctx, &depts, query, companyID)
	return depts, err
}

// MandatoryRequirements returns the scored requirement set of a framework.
func (s *Store) MandatoryRequirements(ctx context.Context, frameworkID uuid.UUID) ([]models.Requirement, error) {
	var requirements []models.Requirement
	query := `
		SELECT * FROM requirements
		WHERE framework_id = $1 AND is_deleted = false AND is_mandatory = true
		ORDER BY sort_order, code
	`
	err := s.db.SelectContext(ctx, &requirements, query, frameworkID)
	return requirements, err
}

// FrameworkRequirements returns every non-deleted requirement of a
// framework, sections included, for tree validation and display.
func (s *Store) FrameworkRequirements(ctx context.Context, frameworkID uuid.UUID) ([]models.Requirement, error) {
	var requirements []models.Requirement
	query := `
		SELECT * FROM requirements
		WHERE framework_id = $1 AND is_deleted = false
		ORDER BY sort_order, code
	`
	err := s.db.SelectContext(ctx, &requirements, query, frameworkID)
	return requirements, err
}

// ValidatedMappings returns the requirement's control mappings that count
// toward scoring.
func (s *Store) ValidatedMappings(ctx context.Context, requirementID uuid.UUID) ([]models.RequirementControlMapping, error) {
	var mappings []models.RequirementControlMapping
	query := `
		SELECT * FROM requirement_control_mappings
		WHERE requirement_id = $1 AND validation_status = $2 AND is_deleted = false
		ORDER BY is_primary DESC, created_at
	`
	err := s.db.SelectContext(ctx, &mappings, query, requirementID, models.MappingValidated)
	return mappings, err
}

// AppliedControlsForReferences returns the company's applied instances of
// the given reference controls. With a department, controls scoped to that
// department or company-wide (department IS NULL) are included.
func (s *Store) AppliedControlsForReferences(ctx context.Context, companyID uuid.UUID, referenceControlIDs []uuid.UUID, departmentID *uuid.UUID) ([]models.AppliedControl, error) {
	if len(referenceControlIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(referenceControlIDs))
	for i, id := range referenceControlIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT ac.*, rc.code AS control_code, rc.name AS control_name
		FROM applied_controls ac
		JOIN reference_controls rc ON rc.id = ac.reference_control_id
		WHERE ac.company_id = $1 AND ac.is_deleted = false
		  AND ac.reference_control_id = ANY($2::uuid[])
	`
	args := []interface{}{companyID, pq.Array(ids)}

	if departmentID != nil {
		query += ` AND (ac.department_id = $3 OR ac.department_id IS NULL)`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY rc.code`

	var controls []models.AppliedControl
	err := s.db.SelectContext(ctx, &controls, query, args...)
	return controls, err
}

func (s *Store) AppliedControl(ctx context.Context, id uuid.UUID) (*models.AppliedControl, error) {
	var control models.AppliedControl
	query := `
		SELECT ac.*, rc.code AS control_code, rc.name AS control_name
		FROM applied_controls ac
		JOIN reference_controls rc ON rc.id = ac.reference_control_id
		WHERE ac.id = $1 AND ac.is_deleted = false
	`
	err := s.db.GetContext(ctx, &control, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "applied control", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &control, nil
}

// EvidenceCount counts the control's non-deleted evidence links.
func (s *Store) EvidenceCount(ctx context.Context, appliedControlID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM evidence_links WHERE applied_control_id = $1 AND is_deleted = false`
	err := s.db.GetContext(ctx, &count, query, appliedControlID)
	return count, err
}

// ControlsWithoutEvidence lists the company's controls with zero evidence
// links, for remediation prioritization.
func (s *Store) ControlsWithoutEvidence(ctx context.Context, companyID uuid.UUID, limit int) ([]models.AppliedControl, error) {
	var controls []models.AppliedControl
	query := `
		SELECT ac.*, rc.code AS control_code, rc.name AS control_name
		FROM applied_controls ac
		JOIN reference_controls rc ON rc.id = ac.reference_control_id
		WHERE ac.company_id = $1 AND ac.is_deleted = false
		  AND NOT EXISTS (
			SELECT 1 FROM evidence_links el
			WHERE el.applied_control_id = ac.id AND el.is_deleted = false
		  )
		ORDER BY rc.code
		LIMIT $2
	`
	err := s.db.SelectContext(ctx, &controls, query, companyID, limit)
	return controls, err
}

// OverdueReviewControls lists controls whose next review date has passed.
func (s *Store) OverdueReviewControls(ctx context.Context, companyID uuid.UUID, today time.Time, limit int) ([]models.AppliedControl, error) {
	var controls []models.AppliedControl
	query := `
		SELECT ac.*, rc.code AS control_code, rc.name AS control_name
		FROM applied_controls ac
		JOIN reference_controls rc ON rc.id = ac.reference_control_id
		WHERE ac.company_id = $1 AND ac.is_deleted = false
		  AND ac.next_review_date IS NOT NULL AND ac.next_review_date < $2
		ORDER BY ac.next_review_date
		LIMIT $3
	`
	err := s.db.SelectContext(ctx, &controls, query, companyID, today, limit)
	return controls, err
}

func (s *Store) FrameworkAdoptions(ctx context.Context, companyID uuid.UUID) ([]models.FrameworkAdoption, error) {
	var adoptions []models.FrameworkAdoption
	query := `
		SELECT * FROM framework_adoptions
		WHERE company_id = $1 AND is_deleted = false
		ORDER BY created_at
	`
	err := s.db.SelectContext(ctx, &adoptions, query, companyID)
	return adoptions, err
}
