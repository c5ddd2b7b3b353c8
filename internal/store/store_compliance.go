package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

// SaveComplianceResult persists a calculation run and its gaps in one
// transaction. The previous current result for the same scope is demoted
// before the new row is inserted, so exactly one current result exists
// per (company, framework, department) at any point.
func (s *Store) SaveComplianceResult(ctx context.Context, result *models.ComplianceResult, gaps []models.ComplianceGap) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	demote := `
		UPDATE compliance_results SET is_current = false
		WHERE company_id = $1 AND framework_id = $2 AND is_current = true
		  AND department_id IS NOT DISTINCT FROM $3
	`
	if _, err := tx.ExecContext(ctx, demote, result.CompanyID, result.FrameworkID, result.DepartmentID); err != nil {
		return fmt.Errorf("demoting previous result: %w", err)
	}

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	result.IsCurrent = true
	if result.CalculationDate.IsZero() {
		result.CalculationDate = time.Now()
	}
	result.CreatedAt = time.Now()

	insert := `
		INSERT INTO compliance_results (
			id, company_id, framework_id, department_id,
			coverage_percentage, compliance_score,
			total_requirements, requirements_addressed, requirements_compliant,
			requirements_partial, requirements_non_compliant,
			total_controls, controls_operational, controls_implemented,
			controls_in_progress, controls_not_started, controls_with_evidence,
			total_evidence_count,
			high_risk_gaps, medium_risk_gaps, low_risk_gaps,
			requirement_details, control_details,
			status, is_current, calculated_by, calculation_date, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
		)
	`
	_, err = tx.ExecContext(ctx, insert,
		result.ID,
		result.CompanyID,
		result.FrameworkID,
		result.DepartmentID,
		result.CoveragePercentage,
		result.ComplianceScore,
		result.TotalRequirements,
		result.RequirementsAddressed,
		result.RequirementsCompliant,
		result.RequirementsPartial,
		result.RequirementsNonCompliant,
		result.TotalControls,
		result.ControlsOperational,
		result.ControlsImplemented,
		result.ControlsInProgress,
		result.ControlsNotStarted,
		result.ControlsWithEvidence,
		result.TotalEvidenceCount,
		result.HighRiskGaps,
		result.MediumRiskGaps,
		result.LowRiskGaps,
		result.RequirementDetails,
		result.ControlDetails,
		result.Status,
		result.IsCurrent,
		result.CalculatedBy,
		result.CalculationDate,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}

	gapInsert := `
		INSERT INTO compliance_gaps (
			id, company_id, result_id, requirement_code, requirement_title,
			gap_type, severity, status, remediation_notes, target_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	now := time.Now()
	for i := range gaps {
		gap := &gaps[i]
		if gap.ID == uuid.Nil {
			gap.ID = uuid.New()
		}
		gap.CompanyID = result.CompanyID
		gap.ResultID = result.ID
		if gap.Status == "" {
			gap.Status = models.GapOpen
		}
		gap.CreatedAt = now
		gap.UpdatedAt = now

		_, err := tx.ExecContext(ctx, gapInsert,
			gap.ID,
			gap.CompanyID,
			gap.ResultID,
			gap.RequirementCode,
			gap.RequirementTitle,
			gap.GapType,
			gap.Severity,
			gap.Status,
			gap.RemediationNotes,
			gap.TargetDate,
			gap.CreatedAt,
			gap.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting gap %s: %w", gap.RequirementCode, err)
		}
	}

	return tx.Commit()
}

// CurrentComplianceResult returns the current result for a scope, or a
// NotFoundError when no calculation has run yet.
func (s *Store) CurrentComplianceResult(ctx context.Context, companyID, frameworkID uuid.UUID, departmentID *uuid.UUID) (*models.ComplianceResult, error) {
	var result models.ComplianceResult
	query := `
		SELECT * FROM compliance_results
		WHERE company_id = $1 AND framework_id = $2 AND is_current = true
		  AND is_deleted = false
		  AND department_id IS NOT DISTINCT FROM $3
	`
	err := s.db.GetContext(ctx, &result, query, companyID, frameworkID, departmentID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "compliance result", ID: frameworkID.String()}
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CurrentComplianceResults returns the company's current company-wide
// results across all frameworks.
func (s *Store) CurrentComplianceResults(ctx context.Context, companyID uuid.UUID) ([]models.ComplianceResult, error) {
	var results []models.ComplianceResult
	query := `
		SELECT * FROM compliance_results
		WHERE company_id = $1 AND is_current = true AND is_deleted = false
		  AND department_id IS NULL
		ORDER BY calculation_date DESC
	`
	err := s.db.SelectContext(ctx, &results, query, companyID)
	return results, err
}

// ComplianceResultsSince returns a framework's company-wide result history
// for trend reporting, oldest first.
func (s *Store) ComplianceResultsSince(ctx context.Context, companyID, frameworkID uuid.UUID, since time.Time) ([]models.ComplianceResult, error) {
	var results []models.ComplianceResult
	query := `
		SELECT * FROM compliance_results
		WHERE company_id = $1 AND framework_id = $2 AND is_deleted = false
		  AND department_id IS NULL AND calculation_date >= $3
		ORDER BY calculation_date
	`
	err := s.db.SelectContext(ctx, &results, query, companyID, frameworkID, since)
	return results, err
}

type GapFilter struct {
	ResultID *uuid.UUID
	Severity models.GapSeverity
	Status   models.GapStatus
	Limit    int
}

func (s *Store) Gaps(ctx context.Context, companyID uuid.UUID, filter GapFilter) ([]models.ComplianceGap, error) {
	query := `SELECT * FROM compliance_gaps WHERE company_id = $1 AND is_deleted = false`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.ResultID != nil {
		query += fmt.Sprintf(" AND result_id = $%d", argIdx)
		args = append(args, *filter.ResultID)
		argIdx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, filter.Severity)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	query += ` ORDER BY CASE severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, requirement_code`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	var gaps []models.ComplianceGap
	err := s.db.SelectContext(ctx, &gaps, query, args...)
	return gaps, err
}

// UpdateGapStatus moves a gap through its remediation lifecycle.
func (s *Store) UpdateGapStatus(ctx context.Context, id uuid.UUID, status models.GapStatus, notes string, targetDate *time.Time) error {
	query := `
		UPDATE compliance_gaps
		SET status = $1, remediation_notes = $2, target_date = $3, updated_at = $4
		WHERE id = $5 AND is_deleted = false
	`
	res, err := s.db.ExecContext(ctx, query, status, notes, targetDate, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "compliance gap", ID: id.String()}
	}
	return nil
}
