package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

// FrameworkScore is one framework's entry in the company overview.
type FrameworkScore struct {
	FrameworkID        uuid.UUID               `json:"framework_id"`
	FrameworkCode      string                  `json:"framework_code"`
	FrameworkName      string                  `json:"framework_name"`
	ComplianceScore    float64                 `json:"compliance_score"`
	CoveragePercentage float64                 `json:"coverage_percentage"`
	Grade              string                  `json:"grade"`
	Status             models.ComplianceStatus `json:"status"`
	GapCount           int                     `json:"gap_count"`
}

type Overview struct {
	TotalFrameworks    int              `json:"total_frameworks"`
	AvgComplianceScore float64          `json:"avg_compliance_score"`
	AvgCoverage        float64          `json:"avg_coverage"`
	Frameworks         []FrameworkScore `json:"frameworks"`
}

// Overview aggregates the company's current company-wide results across
// all frameworks.
func (e *Engine) Overview(ctx context.Context, companyID uuid.UUID) (*Overview, error) {
	results, err := e.store.CurrentComplianceResults(ctx, companyID)
	if err != nil {
		return nil, err
	}

	overview := &Overview{Frameworks: []FrameworkScore{}}
	if len(results) == 0 {
		return overview, nil
	}

	var scoreSum, coverageSum float64
	for i := range results {
		result := &results[i]
		framework, err := e.store.Framework(ctx, result.FrameworkID)
		if err != nil {
			return nil, err
		}

		scoreSum += result.ComplianceScore
		coverageSum += result.CoveragePercentage

		overview.Frameworks = append(overview.Frameworks, FrameworkScore{
			FrameworkID:        framework.ID,
			FrameworkCode:      framework.Code,
			FrameworkName:      framework.Name,
			ComplianceScore:    result.ComplianceScore,
			CoveragePercentage: result.CoveragePercentage,
			Grade:              result.Grade(),
			Status:             result.ComplianceStatusBand(),
			GapCount:           result.GapCount(),
		})
	}

	overview.TotalFrameworks = len(results)
	overview.AvgComplianceScore = round2(scoreSum / float64(len(results)))
	overview.AvgCoverage = round2(coverageSum / float64(len(results)))

	return overview, nil
}

// TrendPoint is one historical calculation in a trend series.
type TrendPoint struct {
	Date               string  `json:"date"`
	ComplianceScore    float64 `json:"compliance_score"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	Grade              string  `json:"grade"`
}

// Trends returns a framework's score history over the last N months,
// oldest first. Months are approximated as 30-day windows.
func (e *Engine) Trends(ctx context.Context, companyID, frameworkID uuid.UUID, months int) ([]TrendPoint, error) {
	if months <= 0 {
		months = 12
	}
	since := e.now().AddDate(0, 0, -months*30)

	results, err := e.store.ComplianceResultsSince(ctx, companyID, frameworkID, since)
	if err != nil {
		return nil, err
	}

	trends := make([]TrendPoint, 0, len(results))
	for i := range results {
		result := &results[i]
		if result.Status != "completed" {
			continue
		}
		trends = append(trends, TrendPoint{
			Date:               result.CalculationDate.Format(time.DateOnly),
			ComplianceScore:    result.ComplianceScore,
			CoveragePercentage: result.CoveragePercentage,
			Grade:              result.Grade(),
		})
	}

	return trends, nil
}
