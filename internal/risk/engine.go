// Package risk implements the residual risk scoring engine: per-control
// risk assessments, aggregate residual calculation, register analytics,
// and treatment recommendations.
package risk

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/store"
)

// Store is the persistence surface the engine needs. *store.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	Risk(ctx context.Context, id uuid.UUID) (*models.Risk, error)
	Risks(ctx context.Context, companyID uuid.UUID, filter store.RiskFilter) ([]models.Risk, error)
	RiskMatrix(ctx context.Context, id uuid.UUID) (*models.RiskMatrix, error)
	ActiveRiskMatrix(ctx context.Context, companyID uuid.UUID) (*models.RiskMatrix, error)
	AppliedControl(ctx context.Context, id uuid.UUID) (*models.AppliedControl, error)
	SaveRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error
	CurrentAssessments(ctx context.Context, riskID uuid.UUID) ([]models.RiskAssessment, error)
	AssessmentsBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]models.RiskAssessment, error)
	OpenTreatmentActionCounts(ctx context.Context, companyID uuid.UUID) (map[uuid.UUID]int, error)
}

type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// openStatuses are the lifecycle states that keep a risk on the register.
var openStatuses = []models.RiskStatus{
	models.RiskIdentified,
	models.RiskAssessing,
	models.RiskTreating,
	models.RiskMonitoring,
}

// AssessRisk records how effectively one applied control mitigates a risk
// and derives the residual position. Effectiveness shaves up to two points
// off both likelihood and impact, floored at 1, then the residual score
// and level come from the risk's matrix. The new assessment becomes the
// risk's current one; all prior current assessments are retired.
func (e *Engine) AssessRisk(ctx context.Context, riskID, appliedControlID uuid.UUID, effectivenessRating int, assessedBy *uuid.UUID) (*models.RiskAssessment, error) {
	if effectivenessRating < 0 || effectivenessRating > 100 {
		return nil, &models.ValidationError{
			Field:   "effectiveness_rating",
			Message: "must be between 0 and 100",
		}
	}

	risk, err := e.store.Risk(ctx, riskID)
	if err != nil {
		return nil, err
	}

	control, err := e.store.AppliedControl(ctx, appliedControlID)
	if err != nil {
		return nil, err
	}
	if control.CompanyID != risk.CompanyID {
		return nil, &models.ValidationError{
			Field:   "applied_control_id",
			Message: "control does not belong to the risk's company",
		}
	}

	matrix, err := e.store.RiskMatrix(ctx, risk.RiskMatrixID)
	if err != nil {
		return nil, err
	}

	// 0-49 -> 0, 50-99 -> 1, 100 -> 2.
	reduction := effectivenessRating * 2 / 100

	residualLikelihood := max(1, risk.InherentLikelihood-reduction)
	residualImpact := max(1, risk.InherentImpact-reduction)

	residualScore, err := matrix.Score(residualLikelihood, residualImpact)
	if err != nil {
		return nil, err
	}

	assessment := &models.RiskAssessment{
		CompanyID:            risk.CompanyID,
		RiskID:               risk.ID,
		AppliedControlID:     control.ID,
		ControlEffectiveness: models.EffectivenessBand(effectivenessRating),
		EffectivenessRating:  effectivenessRating,
		ResidualLikelihood:   residualLikelihood,
		ResidualImpact:       residualImpact,
		ResidualScore:        residualScore,
		ResidualRiskLevel:    matrix.Level(residualScore),
		AssessmentDate:       e.now(),
		AssessedBy:           assessedBy,
	}

	if err := e.store.SaveRiskAssessment(ctx, assessment); err != nil {
		return nil, err
	}

	e.logger.Info("risk assessed",
		"risk_id", risk.ID,
		"control", control.ControlCode,
		"effectiveness", effectivenessRating,
		"residual_score", residualScore,
		"residual_level", assessment.ResidualRiskLevel)

	return assessment, nil
}

// ResidualSummary is a risk's aggregate residual position across its
// current assessments.
type ResidualSummary struct {
	ResidualScore      int              `json:"residual_score"`
	ResidualLevel      models.RiskLevel `json:"residual_level"`
	ResidualLikelihood int              `json:"residual_likelihood"`
	ResidualImpact     int              `json:"residual_impact"`
	ControlCount       int              `json:"control_count"`
	AvgEffectiveness   float64          `json:"avg_effectiveness"`
	RiskReduction      float64          `json:"risk_reduction"`
}

// AggregateResidual summarizes a risk's residual position. The current
// assessment with the lowest residual score represents the risk; with no
// current assessments the inherent position passes through unchanged.
func (e *Engine) AggregateResidual(ctx context.Context, riskID uuid.UUID) (*ResidualSummary, error) {
	risk, err := e.store.Risk(ctx, riskID)
	if err != nil {
		return nil, err
	}
	return e.aggregateResidual(ctx, risk)
}

func (e *Engine) aggregateResidual(ctx context.Context, risk *models.Risk) (*ResidualSummary, error) {
	assessments, err := e.store.CurrentAssessments(ctx, risk.ID)
	if err != nil {
		return nil, err
	}

	if len(assessments) == 0 {
		return &ResidualSummary{
			ResidualScore:      risk.InherentRiskScore,
			ResidualLevel:      risk.InherentRiskLevel,
			ResidualLikelihood: risk.InherentLikelihood,
			ResidualImpact:     risk.InherentImpact,
		}, nil
	}

	best := &assessments[0]
	var effectivenessSum int
	for i := range assessments {
		a := &assessments[i]
		effectivenessSum += a.EffectivenessRating
		if a.ResidualScore < best.ResidualScore {
			best = a
		}
	}

	return &ResidualSummary{
		ResidualScore:      best.ResidualScore,
		ResidualLevel:      best.ResidualRiskLevel,
		ResidualLikelihood: best.ResidualLikelihood,
		ResidualImpact:     best.ResidualImpact,
		ControlCount:       len(assessments),
		AvgEffectiveness:   round2(float64(effectivenessSum) / float64(len(assessments))),
		RiskReduction:      round2(best.RiskReduction(risk.InherentRiskScore)),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
