package risk

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/store"
)

type RegisterSummary struct {
	TotalRisks       int                       `json:"total_risks"`
	ByLevel          map[models.RiskLevel]int  `json:"by_level"`
	ByCategory       map[string]int            `json:"by_category"`
	ByStatus         map[models.RiskStatus]int `json:"by_status"`
	AvgInherentScore float64                   `json:"avg_inherent_score"`
	AvgResidualScore float64                   `json:"avg_residual_score"`
}

// RegisterSummary aggregates the company's whole risk register, closed
// risks included.
func (e *Engine) RegisterSummary(ctx context.Context, companyID uuid.UUID) (*RegisterSummary, error) {
	risks, err := e.store.Risks(ctx, companyID, store.RiskFilter{})
	if err != nil {
		return nil, err
	}

	summary := &RegisterSummary{
		ByLevel:    map[models.RiskLevel]int{},
		ByCategory: map[string]int{},
		ByStatus:   map[models.RiskStatus]int{},
	}
	if len(risks) == 0 {
		return summary, nil
	}

	var inherentSum, residualSum int
	for i := range risks {
		risk := &risks[i]
		summary.ByLevel[risk.InherentRiskLevel]++
		summary.ByCategory[risk.Category]++
		summary.ByStatus[risk.Status]++
		inherentSum += risk.InherentRiskScore

		residual, err := e.aggregateResidual(ctx, risk)
		if err != nil {
			return nil, err
		}
		residualSum += residual.ResidualScore
	}

	summary.TotalRisks = len(risks)
	summary.AvgInherentScore = round2(float64(inherentSum) / float64(len(risks)))
	summary.AvgResidualScore = round2(float64(residualSum) / float64(len(risks)))

	return summary, nil
}

// HeatMapPoint places one risk on the likelihood-impact grid.
type HeatMapPoint struct {
	RiskID     uuid.UUID        `json:"risk_id"`
	Title      string           `json:"title"`
	Likelihood int              `json:"likelihood"`
	Impact     int              `json:"impact"`
	Score      int              `json:"score"`
	Level      models.RiskLevel `json:"level"`
}

type HeatMapMatrix struct {
	LikelihoodLevels    int `json:"likelihood_levels"`
	ImpactLevels        int `json:"impact_levels"`
	LowRiskThreshold    int `json:"low_threshold"`
	MediumRiskThreshold int `json:"medium_threshold"`
	HighRiskThreshold   int `json:"high_threshold"`
}

type HeatMap struct {
	Inherent []HeatMapPoint `json:"inherent"`
	Residual []HeatMapPoint `json:"residual"`
	Matrix   *HeatMapMatrix `json:"matrix,omitempty"`
}

// HeatMap plots the company's open risks on both inherent and residual
// grids against the active matrix. Without an active matrix the plot is
// empty.
func (e *Engine) HeatMap(ctx context.Context, companyID uuid.UUID) (*HeatMap, error) {
	heatMap := &HeatMap{Inherent: []HeatMapPoint{}, Residual: []HeatMapPoint{}}

	matrix, err := e.store.ActiveRiskMatrix(ctx, companyID)
	if err != nil {
		if _, ok := err.(*models.NotFoundError); ok {
			return heatMap, nil
		}
		return nil, err
	}

	risks, err := e.store.Risks(ctx, companyID, store.RiskFilter{Statuses: openStatuses})
	if err != nil {
		return nil, err
	}

	for i := range risks {
		risk := &risks[i]
		heatMap.Inherent = append(heatMap.Inherent, HeatMapPoint{
			RiskID:     risk.ID,
			Title:      risk.Title,
			Likelihood: risk.InherentLikelihood,
			Impact:     risk.InherentImpact,
			Score:      risk.InherentRiskScore,
			Level:      risk.InherentRiskLevel,
		})

		residual, err := e.aggregateResidual(ctx, risk)
		if err != nil {
			return nil, err
		}
		heatMap.Residual = append(heatMap.Residual, HeatMapPoint{
			RiskID:     risk.ID,
			Title:      risk.Title,
			Likelihood: residual.ResidualLikelihood,
			Impact:     residual.ResidualImpact,
			Score:      residual.ResidualScore,
			Level:      residual.ResidualLevel,
		})
	}

	heatMap.Matrix = &HeatMapMatrix{
		LikelihoodLevels:    matrix.LikelihoodLevels,
		ImpactLevels:        matrix.ImpactLevels,
		LowRiskThreshold:    matrix.LowRiskThreshold,
		MediumRiskThreshold: matrix.MediumRiskThreshold,
		HighRiskThreshold:   matrix.HighRiskThreshold,
	}

	return heatMap, nil
}

// TopRisk is one entry of the ranked register view.
type TopRisk struct {
	RiskID        uuid.UUID        `json:"risk_id"`
	Title         string           `json:"title"`
	Category      string           `json:"category"`
	InherentScore int              `json:"inherent_score"`
	InherentLevel models.RiskLevel `json:"inherent_level"`
	ResidualScore int              `json:"residual_score"`
	ResidualLevel models.RiskLevel `json:"residual_level"`
	RiskReduction float64          `json:"risk_reduction"`
	ControlCount  int              `json:"control_count"`
	OwnerID       *uuid.UUID       `json:"owner_id,omitempty"`
}

// TopRisks returns the company's open risks ranked by inherent score.
func (e *Engine) TopRisks(ctx context.Context, companyID uuid.UUID, limit int) ([]TopRisk, error) {
	if limit <= 0 {
		limit = 10
	}

	risks, err := e.store.Risks(ctx, companyID, store.RiskFilter{Statuses: openStatuses, Limit: limit})
	if err != nil {
		return nil, err
	}

	top := make([]TopRisk, 0, len(risks))
	for i := range risks {
		risk := &risks[i]
		residual, err := e.aggregateResidual(ctx, risk)
		if err != nil {
			return nil, err
		}
		top = append(top, TopRisk{
			RiskID:        risk.ID,
			Title:         risk.Title,
			Category:      risk.Category,
			InherentScore: risk.InherentRiskScore,
			InherentLevel: risk.InherentRiskLevel,
			ResidualScore: residual.ResidualScore,
			ResidualLevel: residual.ResidualLevel,
			RiskReduction: residual.RiskReduction,
			ControlCount:  residual.ControlCount,
			OwnerID:       risk.OwnerID,
		})
	}

	return top, nil
}

// TrendPoint is one month of assessment activity.
type TrendPoint struct {
	Month            string  `json:"month"`
	AvgResidualScore float64 `json:"avg_residual_score"`
	AssessmentCount  int     `json:"assessment_count"`
}

// Trends buckets the company's risk assessments by calendar month over
// the last N months, oldest first.
func (e *Engine) Trends(ctx context.Context, companyID uuid.UUID, months int) ([]TrendPoint, error) {
	if months <= 0 {
		months = 12
	}

	end := e.now()
	start := end.AddDate(0, -months, 0)

	assessments, err := e.store.AssessmentsBetween(ctx, companyID, start, end)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		scoreSum int
		count    int
	}
	buckets := map[string]*bucket{}
	for i := range assessments {
		a := &assessments[i]
		key := a.AssessmentDate.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.scoreSum += a.ResidualScore
		b.count++
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	trends := make([]TrendPoint, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		trends = append(trends, TrendPoint{
			Month:            key,
			AvgResidualScore: round2(float64(b.scoreSum) / float64(b.count)),
			AssessmentCount:  b.count,
		})
	}

	return trends, nil
}
