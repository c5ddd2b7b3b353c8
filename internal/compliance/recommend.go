package compliance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

const (
	maxRecommendedActions = 20
	perSourceActionLimit  = 10
)

// Action is one recommended remediation step.
type Action struct {
	Priority        models.ActionPriority `json:"priority"`
	Type            string                `json:"type"`
	Requirement     string                `json:"requirement,omitempty"`
	Control         string                `json:"control,omitempty"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	EstimatedImpact string                `json:"estimated_impact"`
}

// PrioritizedActions recommends the top remediation steps for a framework:
// missing controls first, then controls lacking evidence, then overdue
// reviews. Returns an empty list when no calculation has run yet.
func (e *Engine) PrioritizedActions(ctx context.Context, companyID, frameworkID uuid.UUID) ([]Action, error) {
	result, err := e.store.CurrentComplianceResult(ctx, companyID, frameworkID, nil)
	if err != nil {
		if _, ok := err.(*models.NotFoundError); ok {
			return []Action{}, nil
		}
		return nil, err
	}

	actions := make([]Action, 0)

	codes := make([]string, 0, len(result.RequirementDetails))
	byCode := make(map[string]models.RequirementDetail, len(result.RequirementDetails))
	for _, detail := range result.RequirementDetails {
		codes = append(codes, detail.Code)
		byCode[detail.Code] = detail
	}
	sort.Strings(codes)

	for _, code := range codes {
		detail := byCode[code]
		if detail.Status != models.RequirementNoControls && detail.Status != models.RequirementNotImplemented {
			continue
		}
		actions = append(actions, Action{
			Priority:        models.PriorityCritical,
			Type:            "implement_controls",
			Requirement:     detail.Code,
			Title:           fmt.Sprintf("Implement controls for %s", detail.Code),
			Description:     fmt.Sprintf("Requirement %q has no controls implemented", detail.Title),
			EstimatedImpact: "high",
		})
	}

	noEvidence, err := e.store.ControlsWithoutEvidence(ctx, companyID, perSourceActionLimit)
	if err != nil {
		return nil, err
	}
	for i := range noEvidence {
		control := &noEvidence[i]
		actions = append(actions, Action{
			Priority:        models.PriorityHigh,
			Type:            "add_evidence",
			Control:         control.ControlCode,
			Title:           fmt.Sprintf("Add evidence for %s", control.ControlCode),
			Description:     fmt.Sprintf("Control %q has no evidence", control.ControlName),
			EstimatedImpact: "medium",
		})
	}

	overdue, err := e.store.OverdueReviewControls(ctx, companyID, e.now(), perSourceActionLimit)
	if err != nil {
		return nil, err
	}
	for i := range overdue {
		control := &overdue[i]
		description := "Control review is overdue"
		if control.NextReviewDate != nil {
			description = fmt.Sprintf("Control review is overdue since %s", control.NextReviewDate.Format("2006-01-02"))
		}
		actions = append(actions, Action{
			Priority:        models.PriorityMedium,
			Type:            "review_control",
			Control:         control.ControlCode,
			Title:           fmt.Sprintf("Review %s", control.ControlCode),
			Description:     description,
			EstimatedImpact: "low",
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return priorityRank(actions[i].Priority) < priorityRank(actions[j].Priority)
	})

	if len(actions) > maxRecommendedActions {
		actions = actions[:maxRecommendedActions]
	}
	return actions, nil
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
