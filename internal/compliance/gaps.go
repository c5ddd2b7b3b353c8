package compliance

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

// identifyGaps builds gap rows from a run's requirement breakdown.
// Missing, unimplemented, and failing requirements are high severity;
// partial requirements are medium. Compliant requirements produce no gap,
// so low severity is reserved for manually opened gaps.
func identifyGaps(requirements []models.Requirement, details models.RequirementDetailMap) []models.ComplianceGap {
	gaps := make([]models.ComplianceGap, 0)

	for i := range requirements {
		requirement := &requirements[i]
		detail, ok := details[requirement.ID.String()]
		if !ok {
			continue
		}

		severity, gapped := gapSeverity(detail.Status)
		if !gapped {
			continue
		}

		gaps = append(gaps, models.ComplianceGap{
			RequirementCode:  detail.Code,
			RequirementTitle: detail.Title,
			GapType:          string(detail.Status),
			Severity:         severity,
			Status:           models.GapOpen,
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Severity != gaps[j].Severity {
			return gaps[i].Severity == models.GapHigh
		}
		return gaps[i].RequirementCode < gaps[j].RequirementCode
	})

	return gaps
}

func gapSeverity(status models.RequirementStatus) (models.GapSeverity, bool) {
	switch status {
	case models.RequirementNoControls, models.RequirementNotImplemented, models.RequirementNonCompliant:
		return models.GapHigh, true
	case models.RequirementPartial:
		return models.GapMedium, true
	default:
		return "", false
	}
}

// GapDetail is one entry of a gap analysis report.
type GapDetail struct {
	RequirementCode  string                 `json:"requirement_code"`
	RequirementTitle string                 `json:"requirement_title"`
	Status           models.RequirementStatus `json:"status"`
	Score            float64                `json:"score"`
	Severity         models.GapSeverity     `json:"severity"`
	Controls         []models.ControlDetail `json:"controls"`
}

type GapAnalysis struct {
	Gaps       []GapDetail                `json:"gaps"`
	Total      int                        `json:"total"`
	BySeverity map[models.GapSeverity]int `json:"by_severity"`
}

// AnalyzeGaps reports the gaps of the current run for a framework,
// derived from the stored requirement breakdown. An empty report is
// returned when no calculation has run yet.
func (e *Engine) AnalyzeGaps(ctx context.Context, companyID, frameworkID uuid.UUID) (*GapAnalysis, error) {
	analysis := &GapAnalysis{
		Gaps: []GapDetail{},
		BySeverity: map[models.GapSeverity]int{
			models.GapHigh:   0,
			models.GapMedium: 0,
			models.GapLow:    0,
		},
	}

	result, err := e.store.CurrentComplianceResult(ctx, companyID, frameworkID, nil)
	if err != nil {
		if _, ok := err.(*models.NotFoundError); ok {
			return analysis, nil
		}
		return nil, fmt.Errorf("loading current result: %w", err)
	}

	for _, detail := range result.RequirementDetails {
		severity, gapped := gapSeverity(detail.Status)
		if !gapped {
			continue
		}
		analysis.Gaps = append(analysis.Gaps, GapDetail{
			RequirementCode:  detail.Code,
			RequirementTitle: detail.Title,
			Status:           detail.Status,
			Score:            detail.Score,
			Severity:         severity,
			Controls:         detail.Controls,
		})
	}

	sort.SliceStable(analysis.Gaps, func(i, j int) bool {
		if analysis.Gaps[i].Severity != analysis.Gaps[j].Severity {
			return analysis.Gaps[i].Severity == models.GapHigh
		}
		return analysis.Gaps[i].RequirementCode < analysis.Gaps[j].RequirementCode
	})

	analysis.Total = len(analysis.Gaps)
	for _, gap := range analysis.Gaps {
		analysis.BySeverity[gap.Severity]++
	}

	return analysis, nil
}
