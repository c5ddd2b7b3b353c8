package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/complyhub/comply/internal/models"
)

func (s *Store) RiskMatrix(ctx context.Context, id uuid.UUID) (*models.RiskMatrix, error) {
	var matrix models.RiskMatrix
	query := `SELECT * FROM risk_matrices WHERE id = $1 AND is_deleted = false`
	err := s.db.GetContext(ctx, &matrix, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "risk matrix", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &matrix, nil
}

// ActiveRiskMatrix returns the company's single active matrix.
func (s *Store) ActiveRiskMatrix(ctx context.Context, companyID uuid.UUID) (*models.RiskMatrix, error) {
	var matrix models.RiskMatrix
	query := `
		SELECT * FROM risk_matrices
		WHERE company_id = $1 AND is_active = true AND is_deleted = false
	`
	err := s.db.GetContext(ctx, &matrix, query, companyID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "active risk matrix", ID: companyID.String()}
	}
	if err != nil {
		return nil, err
	}
	return &matrix, nil
}

func (s *Store) CreateRiskMatrix(ctx context.Context, matrix *models.RiskMatrix) error {
	if err := matrix.Validate(); err != nil {
		return err
	}

	if matrix.ID == uuid.Nil {
		matrix.ID = uuid.New()
	}
	matrix.CreatedAt = time.Now()
	matrix.UpdatedAt = matrix.CreatedAt

	query := `
		INSERT INTO risk_matrices (
			id, company_id, name, description,
			likelihood_levels, impact_levels,
			likelihood_definitions, impact_definitions, risk_score_matrix,
			low_risk_threshold, medium_risk_threshold, high_risk_threshold,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		matrix.ID,
		matrix.CompanyID,
		matrix.Name,
		matrix.Description,
		matrix.LikelihoodLevels,
		matrix.ImpactLevels,
		matrix.LikelihoodDefinitions,
		matrix.ImpactDefinitions,
		matrix.ScoreMatrix,
		matrix.LowRiskThreshold,
		matrix.MediumRiskThreshold,
		matrix.HighRiskThreshold,
		matrix.IsActive,
		matrix.CreatedAt,
		matrix.UpdatedAt,
	)
	return err
}

// ActivateRiskMatrix makes one matrix active and deactivates the rest of
// the company's matrices in the same transaction.
func (s *Store) ActivateRiskMatrix(ctx context.Context, companyID, matrixID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	deactivate := `
		UPDATE risk_matrices SET is_active = false, updated_at = $1
		WHERE company_id = $2 AND is_active = true AND id <> $3
	`
	if _, err := tx.ExecContext(ctx, deactivate, time.Now(), companyID, matrixID); err != nil {
		return fmt.Errorf("deactivating matrices: %w", err)
	}

	activate := `
		UPDATE risk_matrices SET is_active = true, updated_at = $1
		WHERE id = $2 AND company_id = $3 AND is_deleted = false
	`
	res, err := tx.ExecContext(ctx, activate, time.Now(), matrixID, companyID)
	if err != nil {
		return fmt.Errorf("activating matrix: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "risk matrix", ID: matrixID.String()}
	}

	return tx.Commit()
}

func (s *Store) Risk(ctx context.Context, id uuid.UUID) (*models.Risk, error) {
	var risk models.Risk
	query := `SELECT * FROM risks WHERE id = $1 AND is_deleted = false`
	err := s.db.GetContext(ctx, &risk, query, id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "risk", ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &risk, nil
}

type RiskFilter struct {
	Statuses     []models.RiskStatus
	Category     string
	DepartmentID *uuid.UUID
	Limit        int
}

func (s *Store) Risks(ctx context.Context, companyID uuid.UUID, filter RiskFilter) ([]models.Risk, error) {
	query := `SELECT * FROM risks WHERE company_id = $1 AND is_deleted = false`
	args := []interface{}{companyID}
	argIdx := 2

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIdx)
		args = append(args, pq.Array(statuses))
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.DepartmentID != nil {
		query += fmt.Sprintf(" AND department_id = $%d", argIdx)
		args = append(args, *filter.DepartmentID)
		argIdx++
	}

	query += ` ORDER BY inherent_risk_score DESC, created_at`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	var risks []models.Risk
	err := s.db.SelectContext(ctx, &risks, query, args...)
	return risks, err
}

// CreateRisk validates the risk against its matrix, derives the inherent
// score and level, and inserts it.
func (s *Store) CreateRisk(ctx context.Context, risk *models.Risk) error {
	matrix, err := s.RiskMatrix(ctx, risk.RiskMatrixID)
	if err != nil {
		return err
	}
	if err := risk.Validate(matrix); err != nil {
		return err
	}
	if err := risk.Recalculate(matrix); err != nil {
		return err
	}

	if risk.ID == uuid.Nil {
		risk.ID = uuid.New()
	}
	if risk.Status == "" {
		risk.Status = models.RiskIdentified
	}
	risk.CreatedAt = time.Now()
	risk.UpdatedAt = risk.CreatedAt

	query := `
		INSERT INTO risks (
			id, company_id, risk_matrix_id, risk_ref, title, description,
			category, source, owner_id, department_id,
			inherent_likelihood, inherent_impact, inherent_risk_score, inherent_risk_level,
			treatment_strategy, treatment_plan, status,
			last_review_date, next_review_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	_, err = s.db.ExecContext(ctx, query,
		risk.ID,
		risk.CompanyID,
		risk.RiskMatrixID,
		risk.RiskRef,
		risk.Title,
		risk.Description,
		risk.Category,
		risk.Source,
		risk.OwnerID,
		risk.DepartmentID,
		risk.InherentLikelihood,
		risk.InherentImpact,
		risk.InherentRiskScore,
		risk.InherentRiskLevel,
		risk.TreatmentStrategy,
		risk.TreatmentPlan,
		risk.Status,
		risk.LastReviewDate,
		risk.NextReviewDate,
		risk.CreatedAt,
		risk.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateRiskStatus(ctx context.Context, id uuid.UUID, status models.RiskStatus) error {
	query := `UPDATE risks SET status = $1, updated_at = $2 WHERE id = $3 AND is_deleted = false`
	res, err := s.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "risk", ID: id.String()}
	}
	return nil
}

// SaveRiskAssessment persists an assessment in one transaction. Every
// prior current assessment for the risk is demoted, regardless of which
// control it was made against, so a fresh assessment retires the risk's
// whole current set.
func (s *Store) SaveRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	demote := `
		UPDATE risk_assessments SET is_current = false
		WHERE risk_id = $1 AND is_current = true
	`
	if _, err := tx.ExecContext(ctx, demote, assessment.RiskID); err != nil {
		return fmt.Errorf("demoting previous assessments: %w", err)
	}

	if assessment.ID == uuid.Nil {
		assessment.ID = uuid.New()
	}
	assessment.IsCurrent = true
	if assessment.AssessmentDate.IsZero() {
		assessment.AssessmentDate = time.Now()
	}
	assessment.CreatedAt = time.Now()

	insert := `
		INSERT INTO risk_assessments (
			id, company_id, risk_id, applied_control_id,
			control_effectiveness, effectiveness_rating,
			residual_likelihood, residual_impact, residual_score, residual_risk_level,
			assessment_date, assessed_by, assessment_notes, is_current, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, insert,
		assessment.ID,
		assessment.CompanyID,
		assessment.RiskID,
		assessment.AppliedControlID,
		assessment.ControlEffectiveness,
		assessment.EffectivenessRating,
		assessment.ResidualLikelihood,
		assessment.ResidualImpact,
		assessment.ResidualScore,
		assessment.ResidualRiskLevel,
		assessment.AssessmentDate,
		assessment.AssessedBy,
		assessment.AssessmentNotes,
		assessment.IsCurrent,
		assessment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment: %w", err)
	}

	return tx.Commit()
}

// CurrentAssessments returns the risk's current assessments.
func (s *Store) CurrentAssessments(ctx context.Context, riskID uuid.UUID) ([]models.RiskAssessment, error) {
	var assessments []models.RiskAssessment
	query := `
		SELECT * FROM risk_assessments
		WHERE risk_id = $1 AND is_current = true AND is_deleted = false
		ORDER BY assessment_date
	`
	err := s.db.SelectContext(ctx, &assessments, query, riskID)
	return assessments, err
}

// AssessmentsBetween returns the company's assessments inside a date
// window for trend reporting, oldest first.
func (s *Store) AssessmentsBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]models.RiskAssessment, error) {
	var assessments []models.RiskAssessment
	query := `
		SELECT * FROM risk_assessments
		WHERE company_id = $1 AND is_deleted = false
		  AND assessment_date >= $2 AND assessment_date < $3
		ORDER BY assessment_date
	`
	err := s.db.SelectContext(ctx, &assessments, query, companyID, from, to)
	return assessments, err
}

func (s *Store) CreateRiskEvent(ctx context.Context, event *models.RiskEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt

	query := `
		INSERT INTO risk_events (
			id, company_id, risk_id, event_date, title, description,
			actual_likelihood, actual_impact, financial_impact,
			response_actions, is_resolved, resolution_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.CompanyID,
		event.RiskID,
		event.EventDate,
		event.Title,
		event.Description,
		event.ActualLikelihood,
		event.ActualImpact,
		event.FinancialImpact,
		event.ResponseActions,
		event.IsResolved,
		event.ResolutionDate,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return err
}

func (s *Store) RiskEvents(ctx context.Context, riskID uuid.UUID) ([]models.RiskEvent, error) {
	var events []models.RiskEvent
	query := `
		SELECT * FROM risk_events
		WHERE risk_id = $1 AND is_deleted = false
		ORDER BY event_date DESC
	`
	err := s.db.SelectContext(ctx, &events, query, riskID)
	return events, err
}

func (s *Store) CreateTreatmentAction(ctx context.Context, action *models.RiskTreatmentAction) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.Status == "" {
		action.Status = models.ActionPlanned
	}
	action.CreatedAt = time.Now()
	action.UpdatedAt = action.CreatedAt

	query := `
		INSERT INTO risk_treatment_actions (
			id, company_id, risk_id, title, description, action_type,
			owner_id, due_date, completion_date, status, progress_percentage,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		action.ID,
		action.CompanyID,
		action.RiskID,
		action.Title,
		action.Description,
		action.ActionType,
		action.OwnerID,
		action.DueDate,
		action.CompletionDate,
		action.Status,
		action.ProgressPercentage,
		action.CreatedAt,
		action.UpdatedAt,
	)
	return err
}

// TreatmentActions returns a risk's open and completed actions.
func (s *Store) TreatmentActions(ctx context.Context, riskID uuid.UUID) ([]models.RiskTreatmentAction, error) {
	var actions []models.RiskTreatmentAction
	query := `
		SELECT * FROM risk_treatment_actions
		WHERE risk_id = $1 AND is_deleted = false
		ORDER BY due_date NULLS LAST, created_at
	`
	err := s.db.SelectContext(ctx, &actions, query, riskID)
	return actions, err
}

// OpenTreatmentActionCounts returns the number of not-completed actions
// per risk for a company, keyed by risk ID.
func (s *Store) OpenTreatmentActionCounts(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]int, error) {
	rows := []struct {
		RiskID uuid.UUID `db:"risk_id"`
		Count  int       `db:"count"`
	}{}
	query := `
		SELECT risk_id, COUNT(*) AS count
		FROM risk_treatment_actions
		WHERE company_id = $1 AND is_deleted = false
		  AND status NOT IN ('completed', 'cancelled')
		GROUP BY risk_id
	`
	if err := s.db.SelectContext(ctx, &rows, query, companyID); err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.RiskID] = row.Count
	}
	return counts, nil
}
