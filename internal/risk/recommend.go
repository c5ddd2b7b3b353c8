package risk

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/store"
)

const maxTreatmentPriorities = 20

// TreatmentPriority is one risk on the treatment worklist.
type TreatmentPriority struct {
	RiskID           uuid.UUID             `json:"risk_id"`
	Title            string                `json:"title"`
	Priority         models.ActionPriority `json:"priority"`
	InherentLevel    models.RiskLevel      `json:"inherent_level"`
	ResidualLevel    models.RiskLevel      `json:"residual_level"`
	ControlCount     int                   `json:"control_count"`
	AvgEffectiveness float64               `json:"avg_effectiveness"`
	OpenActions      int                   `json:"open_actions"`
	Recommendation   string                `json:"recommendation"`
}

// treatmentStatuses are the states where a risk still needs treatment
// attention; monitored and closed risks are excluded.
var treatmentStatuses = []models.RiskStatus{
	models.RiskIdentified,
	models.RiskAssessing,
	models.RiskTreating,
}

// TreatmentPriorities ranks the company's untreated risks by urgency.
// High or critical residual positions are always critical; medium
// residual with thin control coverage, or no controls at all, is high;
// the rest is medium. Returns at most the top twenty.
func (e *Engine) TreatmentPriorities(ctx context.Context, companyID uuid.UUID) ([]TreatmentPriority, error) {
	risks, err := e.store.Risks(ctx, companyID, store.RiskFilter{Statuses: treatmentStatuses})
	if err != nil {
		return nil, err
	}

	openActions, err := e.store.OpenTreatmentActionCounts(ctx, companyID)
	if err != nil {
		return nil, err
	}

	priorities := make([]TreatmentPriority, 0, len(risks))
	for i := range risks {
		risk := &risks[i]
		residual, err := e.aggregateResidual(ctx, risk)
		if err != nil {
			return nil, err
		}

		priorities = append(priorities, TreatmentPriority{
			RiskID:           risk.ID,
			Title:            risk.Title,
			Priority:         treatmentPriority(residual),
			InherentLevel:    risk.InherentRiskLevel,
			ResidualLevel:    residual.ResidualLevel,
			ControlCount:     residual.ControlCount,
			AvgEffectiveness: residual.AvgEffectiveness,
			OpenActions:      openActions[risk.ID],
			Recommendation:   treatmentRecommendation(residual),
		})
	}

	sort.SliceStable(priorities, func(i, j int) bool {
		return priorityRank(priorities[i].Priority) < priorityRank(priorities[j].Priority)
	})

	if len(priorities) > maxTreatmentPriorities {
		priorities = priorities[:maxTreatmentPriorities]
	}
	return priorities, nil
}

func treatmentPriority(residual *ResidualSummary) models.ActionPriority {
	switch {
	case residual.ResidualLevel == models.RiskCritical || residual.ResidualLevel == models.RiskHigh:
		return models.PriorityCritical
	case residual.ResidualLevel == models.RiskMedium && residual.ControlCount < 2:
		return models.PriorityHigh
	case residual.ControlCount == 0:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

func treatmentRecommendation(residual *ResidualSummary) string {
	switch {
	case residual.ControlCount == 0:
		return "Implement controls to mitigate this risk"
	case residual.ResidualLevel == models.RiskCritical || residual.ResidualLevel == models.RiskHigh:
		return "Additional controls needed to reduce residual risk"
	case residual.AvgEffectiveness < 70:
		return "Improve effectiveness of existing controls"
	default:
		return "Monitor and maintain current controls"
	}
}

func priorityRank(p models.ActionPriority) int {
	switch p {
	case models.PriorityCritical:
		return 0
	case models.PriorityHigh:
		return 1
	case models.PriorityMedium:
		return 2
	case models.PriorityLow:
		return 3
	default:
		return 99
	}
}
