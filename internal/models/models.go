package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ControlStatus string

const (
	ControlNotStarted       ControlStatus = "not_started"
	ControlInProgress       ControlStatus = "in_progress"
	ControlImplemented      ControlStatus = "implemented"
	ControlTesting          ControlStatus = "testing"
	ControlOperational      ControlStatus = "operational"
	ControlNeedsImprovement ControlStatus = "needs_improvement"
	ControlNonCompliant     ControlStatus = "non_compliant"
)

type CoverageLevel string

const (
	CoverageFull       CoverageLevel = "full"
	CoveragePartial    CoverageLevel = "partial"
	CoverageSupporting CoverageLevel = "supporting"
)

type ValidationStatus string

const (
	MappingPending   ValidationStatus = "pending"
	MappingValidated ValidationStatus = "validated"
	MappingRejected  ValidationStatus = "rejected"
)

// RequirementStatus is the per-requirement classification produced by a
// calculation run and stored in the requirement_details breakdown.
type RequirementStatus string

const (
	RequirementNoControls     RequirementStatus = "no_controls"
	RequirementNotImplemented RequirementStatus = "not_implemented"
	RequirementCompliant      RequirementStatus = "compliant"
	RequirementPartial        RequirementStatus = "partial"
	RequirementNonCompliant   RequirementStatus = "non_compliant"
)

type GapSeverity string

const (
	GapHigh   GapSeverity = "high"
	GapMedium GapSeverity = "medium"
	GapLow    GapSeverity = "low"
)

type GapStatus string

const (
	GapOpen       GapStatus = "open"
	GapInProgress GapStatus = "in_progress"
	GapResolved   GapStatus = "resolved"
	GapAccepted   GapStatus = "accepted"
)

type ComplianceStatus string

const (
	StatusCompliant          ComplianceStatus = "compliant"
	StatusMostlyCompliant    ComplianceStatus = "mostly_compliant"
	StatusPartiallyCompliant ComplianceStatus = "partially_compliant"
	StatusNonCompliant       ComplianceStatus = "non_compliant"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type RiskStatus string

const (
	RiskIdentified RiskStatus = "identified"
	RiskAssessing  RiskStatus = "assessing"
	RiskTreating   RiskStatus = "treating"
	RiskMonitoring RiskStatus = "monitoring"
	RiskClosed     RiskStatus = "closed"
)

type ControlEffectiveness string

const (
	NotEffective       ControlEffectiveness = "not_effective"
	PartiallyEffective ControlEffectiveness = "partially_effective"
	Effective          ControlEffectiveness = "effective"
	HighlyEffective    ControlEffectiveness = "highly_effective"
)

type TreatmentStrategy string

const (
	TreatmentMitigate TreatmentStrategy = "mitigate"
	TreatmentTransfer TreatmentStrategy = "transfer"
	TreatmentAccept   TreatmentStrategy = "accept"
	TreatmentAvoid    TreatmentStrategy = "avoid"
)

type ActionStatus string

const (
	ActionPlanned    ActionStatus = "planned"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionCancelled  ActionStatus = "cancelled"
)

type AdoptionStatus string

const (
	AdoptionPlanned      AdoptionStatus = "planned"
	AdoptionImplementing AdoptionStatus = "implementing"
	AdoptionActive       AdoptionStatus = "active"
	AdoptionRetired      AdoptionStatus = "retired"
)

type ActionPriority string

const (
	PriorityCritical ActionPriority = "critical"
	PriorityHigh     ActionPriority = "high"
	PriorityMedium   ActionPriority = "medium"
	PriorityLow      ActionPriority = "low"
)

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

type Framework struct {
	ID                  uuid.UUID `json:"id" db:"id"`
	Code                string    `json:"code" db:"code"`
	Name                string    `json:"name" db:"name"`
	Description         string    `json:"description,omitempty" db:"description"`
	Version             string    `json:"version,omitempty" db:"version"`
	IssuingOrganization string    `json:"issuing_organization,omitempty" db:"issuing_organization"`
	IsPublished         bool      `json:"is_published" db:"is_published"`
	IsDeleted           bool      `json:"-" db:"is_deleted"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

type Requirement struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	FrameworkID uuid.UUID  `json:"framework_id" db:"framework_id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Code        string     `json:"code" db:"code"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	// "section" rows group child requirements; "requirement" rows are scored.
	RequirementType string    `json:"requirement_type" db:"requirement_type"`
	Priority        string    `json:"priority,omitempty" db:"priority"`
	SortOrder       int       `json:"sort_order" db:"sort_order"`
	IsMandatory     bool      `json:"is_mandatory" db:"is_mandatory"`
	IsDeleted       bool      `json:"-" db:"is_deleted"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type ReferenceControl struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	ControlType string    `json:"control_type,omitempty" db:"control_type"`
	Category    string    `json:"category,omitempty" db:"category"`
	IsDeleted   bool      `json:"-" db:"is_deleted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RequirementControlMapping links a requirement to a reference control.
// Only mappings with validation_status = validated count toward scoring.
type RequirementControlMapping struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	RequirementID      uuid.UUID        `json:"requirement_id" db:"requirement_id"`
	ReferenceControlID uuid.UUID        `json:"reference_control_id" db:"reference_control_id"`
	CoverageLevel      CoverageLevel    `json:"coverage_level" db:"coverage_level"`
	IsPrimary          bool             `json:"is_primary" db:"is_primary"`
	ValidationStatus   ValidationStatus `json:"validation_status" db:"validation_status"`
	MappingRationale   string           `json:"mapping_rationale,omitempty" db:"mapping_rationale"`
	IsDeleted          bool             `json:"-" db:"is_deleted"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" db:"updated_at"`
}

type AppliedControl struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	CompanyID           uuid.UUID     `json:"company_id" db:"company_id"`
	ReferenceControlID  uuid.UUID     `json:"reference_control_id" db:"reference_control_id"`
	DepartmentID        *uuid.UUID    `json:"department_id,omitempty" db:"department_id"`
	Status              ControlStatus `json:"status" db:"status"`
	OwnerID             *uuid.UUID    `json:"owner_id,omitempty" db:"owner_id"`
	ImplementationNotes string        `json:"implementation_notes,omitempty" db:"implementation_notes"`
	EffectivenessRating *int          `json:"effectiveness_rating,omitempty" db:"effectiveness_rating"`
	HasDeficiencies     bool          `json:"has_deficiencies" db:"has_deficiencies"`
	DeficiencyNotes     string        `json:"deficiency_notes,omitempty" db:"deficiency_notes"`
	LastReviewDate      *time.Time    `json:"last_review_date,omitempty" db:"last_review_date"`
	NextReviewDate      *time.Time    `json:"next_review_date,omitempty" db:"next_review_date"`
	IsDeleted           bool          `json:"-" db:"is_deleted"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`

	// Joined from reference_controls for display paths.
	ControlCode string `json:"control_code,omitempty" db:"control_code"`
	ControlName string `json:"control_name,omitempty" db:"control_name"`
}

var controlStatusScores = map[ControlStatus]int{
	ControlNotStarted:       0,
	ControlInProgress:       25,
	ControlImplemented:      50,
	ControlTesting:          60,
	ControlOperational:      85,
	ControlNeedsImprovement: 40,
	ControlNonCompliant:     0,
}

// IsOverdueForReview reports whether the next review date has passed.
func (c *AppliedControl) IsOverdueForReview(today time.Time) bool {
	if c.NextReviewDate == nil {
		return false
	}
	return today.After(*c.NextReviewDate)
}

// ComplianceScore computes the control's 0-100 compliance score from its
// status, linked evidence count, deficiency flag and review state. The
// adjustments apply in a fixed order: status base, evidence bonus capped at
// 100, deficiency penalty floored at 0, overdue-review penalty floored at 0.
func (c *AppliedControl) ComplianceScore(evidenceCount int, today time.Time) int {
	score := controlStatusScores[c.Status]

	if evidenceCount > 0 {
		score = min(score+evidenceCount*5, 100)
	}
	if c.HasDeficiencies {
		score = max(score-20, 0)
	}
	if c.IsOverdueForReview(today) {
		score = max(score-10, 0)
	}

	return score
}

type Department struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CompanyID uuid.UUID  `json:"company_id" db:"company_id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Name      string     `json:"name" db:"name"`
	IsDeleted bool       `json:"-" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type FrameworkAdoption struct {
	ID                   uuid.UUID      `json:"id" db:"id"`
	CompanyID            uuid.UUID      `json:"company_id" db:"company_id"`
	FrameworkID          uuid.UUID      `json:"framework_id" db:"framework_id"`
	AdoptionStatus       AdoptionStatus `json:"adoption_status" db:"adoption_status"`
	TargetCompletionDate *time.Time     `json:"target_completion_date,omitempty" db:"target_completion_date"`
	IsDeleted            bool           `json:"-" db:"is_deleted"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

// ControlDetail is the per-control entry inside a requirement breakdown.
type ControlDetail struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Status        ControlStatus `json:"status"`
	Score         int           `json:"score"`
	EvidenceCount int           `json:"evidence_count"`
}

// RequirementDetail is the stored per-requirement breakdown of a run.
type RequirementDetail struct {
	Code     string            `json:"code"`
	Title    string            `json:"title"`
	Status   RequirementStatus `json:"status"`
	Score    float64           `json:"score"`
	Controls []ControlDetail   `json:"controls"`
}

// RequirementDetailMap serializes as a string-keyed JSON object so persisted
// history keeps the original breakdown shape.
type RequirementDetailMap map[string]RequirementDetail

func (m RequirementDetailMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *RequirementDetailMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// ControlSummary tallies applied controls encountered during a run. A control
// supporting several requirements is counted once per requirement.
type ControlSummary struct {
	Total       int `json:"total"`
	Operational int `json:"operational"`
	Implemented int `json:"implemented"`
	InProgress  int `json:"in_progress"`
	NotStarted  int `json:"not_started"`
}

func (s ControlSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *ControlSummary) Scan(value interface{}) error {
	if value == nil {
		*s = ControlSummary{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

// ComplianceResult is an immutable snapshot of one calculation run. Exactly
// one row per (company, framework, department) carries is_current = true;
// older rows are demoted in the same transaction that inserts a new one.
type ComplianceResult struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	CompanyID    uuid.UUID  `json:"company_id" db:"company_id"`
	FrameworkID  uuid.UUID  `json:"framework_id" db:"framework_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`

	CoveragePercentage float64 `json:"coverage_percentage" db:"coverage_percentage"`
	ComplianceScore    float64 `json:"compliance_score" db:"compliance_score"`

	TotalRequirements        int `json:"total_requirements" db:"total_requirements"`
	RequirementsAddressed    int `json:"requirements_addressed" db:"requirements_addressed"`
	RequirementsCompliant    int `json:"requirements_compliant" db:"requirements_compliant"`
	RequirementsPartial      int `json:"requirements_partial" db:"requirements_partial"`
	RequirementsNonCompliant int `json:"requirements_non_compliant" db:"requirements_non_compliant"`

	TotalControls        int `json:"total_controls" db:"total_controls"`
	ControlsOperational  int `json:"controls_operational" db:"controls_operational"`
	ControlsImplemented  int `json:"controls_implemented" db:"controls_implemented"`
	ControlsInProgress   int `json:"controls_in_progress" db:"controls_in_progress"`
	ControlsNotStarted   int `json:"controls_not_started" db:"controls_not_started"`
	ControlsWithEvidence int `json:"controls_with_evidence" db:"controls_with_evidence"`
	TotalEvidenceCount   int `json:"total_evidence_count" db:"total_evidence_count"`

	HighRiskGaps   int `json:"high_risk_gaps" db:"high_risk_gaps"`
	MediumRiskGaps int `json:"medium_risk_gaps" db:"medium_risk_gaps"`
	LowRiskGaps    int `json:"low_risk_gaps" db:"low_risk_gaps"`

	RequirementDetails RequirementDetailMap `json:"requirement_details" db:"requirement_details"`
	ControlDetails     ControlSummary       `json:"control_details" db:"control_details"`

	Status          string     `json:"status" db:"status"`
	IsCurrent       bool       `json:"is_current" db:"is_current"`
	CalculatedBy    *uuid.UUID `json:"calculated_by,omitempty" db:"calculated_by"`
	CalculationDate time.Time  `json:"calculation_date" db:"calculation_date"`
	IsDeleted       bool       `json:"-" db:"is_deleted"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Grade maps the compliance score to a letter grade.
func (r *ComplianceResult) Grade() string {
	return GradeForScore(r.ComplianceScore)
}

func GradeForScore(score float64) string {
	switch {
	case score >= 95:
		return "A+"
	case score >= 90:
		return "A"
	case score >= 85:
		return "A-"
	case score >= 80:
		return "B+"
	case score >= 75:
		return "B"
	case score >= 70:
		return "B-"
	case score >= 65:
		return "C+"
	case score >= 60:
		return "C"
	case score >= 55:
		return "C-"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// ComplianceStatusBand maps the compliance score to a status band.
func (r *ComplianceResult) ComplianceStatusBand() ComplianceStatus {
	return StatusForScore(r.ComplianceScore)
}

func StatusForScore(score float64) ComplianceStatus {
	switch {
	case score >= 90:
		return StatusCompliant
	case score >= 75:
		return StatusMostlyCompliant
	case score >= 50:
		return StatusPartiallyCompliant
	default:
		return StatusNonCompliant
	}
}

func (r *ComplianceResult) GapCount() int {
	return r.HighRiskGaps + r.MediumRiskGaps + r.LowRiskGaps
}

// ComplianceGap is one persisted shortfall tied to a requirement's state at
// calculation time.
type ComplianceGap struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	CompanyID        uuid.UUID   `json:"company_id" db:"company_id"`
	ResultID         uuid.UUID   `json:"result_id" db:"result_id"`
	RequirementCode  string      `json:"requirement_code" db:"requirement_code"`
	RequirementTitle string      `json:"requirement_title" db:"requirement_title"`
	GapType          string      `json:"gap_type" db:"gap_type"`
	Severity         GapSeverity `json:"severity" db:"severity"`
	Status           GapStatus   `json:"status" db:"status"`
	RemediationNotes string      `json:"remediation_notes,omitempty" db:"remediation_notes"`
	TargetDate       *time.Time  `json:"target_date,omitempty" db:"target_date"`
	IsDeleted        bool        `json:"-" db:"is_deleted"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

type Risk struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	CompanyID    uuid.UUID  `json:"company_id" db:"company_id"`
	RiskMatrixID uuid.UUID  `json:"risk_matrix_id" db:"risk_matrix_id"`
	RiskRef      string     `json:"risk_ref,omitempty" db:"risk_ref"`
	Title        string     `json:"title" db:"title"`
	Description  string     `json:"description,omitempty" db:"description"`
	Category     string     `json:"category" db:"category"`
	Source       string     `json:"source" db:"source"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty" db:"owner_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`

	InherentLikelihood int       `json:"inherent_likelihood" db:"inherent_likelihood"`
	InherentImpact     int       `json:"inherent_impact" db:"inherent_impact"`
	InherentRiskScore  int       `json:"inherent_risk_score" db:"inherent_risk_score"`
	InherentRiskLevel  RiskLevel `json:"inherent_risk_level" db:"inherent_risk_level"`

	TreatmentStrategy TreatmentStrategy `json:"treatment_strategy" db:"treatment_strategy"`
	TreatmentPlan     string            `json:"treatment_plan,omitempty" db:"treatment_plan"`
	Status            RiskStatus        `json:"status" db:"status"`

	LastReviewDate *time.Time `json:"last_review_date,omitempty" db:"last_review_date"`
	NextReviewDate *time.Time `json:"next_review_date,omitempty" db:"next_review_date"`
	IsDeleted      bool       `json:"-" db:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks the risk against its bound matrix.
func (r *Risk) Validate(matrix *RiskMatrix) error {
	if matrix.CompanyID != r.CompanyID {
		return &ValidationError{Field: "risk_matrix_id", Message: "risk matrix must belong to the same company"}
	}
	if r.InherentLikelihood < 1 || r.InherentLikelihood > matrix.LikelihoodLevels {
		return &ValidationError{
			Field:   "inherent_likelihood",
			Message: fmt.Sprintf("must be between 1 and %d", matrix.LikelihoodLevels),
		}
	}
	if r.InherentImpact < 1 || r.InherentImpact > matrix.ImpactLevels {
		return &ValidationError{
			Field:   "inherent_impact",
			Message: fmt.Sprintf("must be between 1 and %d", matrix.ImpactLevels),
		}
	}
	return nil
}

// Recalculate refreshes the derived inherent score and level. Runs on every
// save path.
func (r *Risk) Recalculate(matrix *RiskMatrix) error {
	score, err := matrix.Score(r.InherentLikelihood, r.InherentImpact)
	if err != nil {
		return err
	}
	r.InherentRiskScore = score
	r.InherentRiskLevel = matrix.Level(score)
	return nil
}

func (r *Risk) IsOverdueForReview(today time.Time) bool {
	if r.NextReviewDate == nil {
		return false
	}
	return today.After(*r.NextReviewDate)
}

type RiskAssessment struct {
	ID               uuid.UUID `json:"id" db:"id"`
	CompanyID        uuid.UUID `json:"company_id" db:"company_id"`
	RiskID           uuid.UUID `json:"risk_id" db:"risk_id"`
	AppliedControlID uuid.UUID `json:"applied_control_id" db:"applied_control_id"`

	ControlEffectiveness ControlEffectiveness `json:"control_effectiveness" db:"control_effectiveness"`
	EffectivenessRating  int                  `json:"effectiveness_rating" db:"effectiveness_rating"`

	ResidualLikelihood int       `json:"residual_likelihood" db:"residual_likelihood"`
	ResidualImpact     int       `json:"residual_impact" db:"residual_impact"`
	ResidualScore      int       `json:"residual_score" db:"residual_score"`
	ResidualRiskLevel  RiskLevel `json:"residual_risk_level" db:"residual_risk_level"`

	AssessmentDate  time.Time  `json:"assessment_date" db:"assessment_date"`
	AssessedBy      *uuid.UUID `json:"assessed_by,omitempty" db:"assessed_by"`
	AssessmentNotes string     `json:"assessment_notes,omitempty" db:"assessment_notes"`
	IsCurrent       bool       `json:"is_current" db:"is_current"`
	IsDeleted       bool       `json:"-" db:"is_deleted"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// RiskReduction is the percentage reduction from the risk's inherent score
// to this assessment's residual score, clamped to [0, 100].
func (a *RiskAssessment) RiskReduction(inherentScore int) float64 {
	if inherentScore == 0 {
		return 0
	}
	reduction := float64(inherentScore-a.ResidualScore) / float64(inherentScore) * 100
	return max(0, min(100, reduction))
}

// EffectivenessBand maps a 0-100 effectiveness rating to its category.
func EffectivenessBand(rating int) ControlEffectiveness {
	switch {
	case rating >= 90:
		return HighlyEffective
	case rating >= 70:
		return Effective
	case rating >= 40:
		return PartiallyEffective
	default:
		return NotEffective
	}
}

// RiskEvent records a risk that actually materialized.
type RiskEvent struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	CompanyID        uuid.UUID  `json:"company_id" db:"company_id"`
	RiskID           uuid.UUID  `json:"risk_id" db:"risk_id"`
	EventDate        time.Time  `json:"event_date" db:"event_date"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description,omitempty" db:"description"`
	ActualLikelihood int        `json:"actual_likelihood" db:"actual_likelihood"`
	ActualImpact     int        `json:"actual_impact" db:"actual_impact"`
	FinancialImpact  *float64   `json:"financial_impact,omitempty" db:"financial_impact"`
	ResponseActions  string     `json:"response_actions,omitempty" db:"response_actions"`
	IsResolved       bool       `json:"is_resolved" db:"is_resolved"`
	ResolutionDate   *time.Time `json:"resolution_date,omitempty" db:"resolution_date"`
	IsDeleted        bool       `json:"-" db:"is_deleted"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

type RiskTreatmentAction struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	CompanyID          uuid.UUID    `json:"company_id" db:"company_id"`
	RiskID             uuid.UUID    `json:"risk_id" db:"risk_id"`
	Title              string       `json:"title" db:"title"`
	Description        string       `json:"description,omitempty" db:"description"`
	ActionType         string       `json:"action_type" db:"action_type"`
	OwnerID            *uuid.UUID   `json:"owner_id,omitempty" db:"owner_id"`
	DueDate            *time.Time   `json:"due_date,omitempty" db:"due_date"`
	CompletionDate     *time.Time   `json:"completion_date,omitempty" db:"completion_date"`
	Status             ActionStatus `json:"status" db:"status"`
	ProgressPercentage int          `json:"progress_percentage" db:"progress_percentage"`
	IsDeleted          bool         `json:"-" db:"is_deleted"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

func (a *RiskTreatmentAction) IsOverdue(today time.Time) bool {
	if a.Status == ActionCompleted || a.Status == ActionCancelled {
		return false
	}
	if a.DueDate == nil {
		return false
	}
	return today.After(*a.DueDate)
}
