// Package compliance implements the framework compliance calculation
// engine: per-requirement scoring, gap identification, analytics, and
// remediation recommendations.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

// Store is the persistence surface the engine needs. *store.Store
// satisfies it; tests use an in-memory fake.
type Store interface {
	Framework(ctx context.Context, id uuid.UUID) (*models.Framework, error)
	Department(ctx context.Context, id uuid.UUID) (*models.Department, error)
	FrameworkRequirements(ctx context.Context, frameworkID uuid.UUID) ([]models.Requirement, error)
	MandatoryRequirements(ctx context.Context, frameworkID uuid.UUID) ([]models.Requirement, error)
	ValidatedMappings(ctx context.Context, requirementID uuid.UUID) ([]models.RequirementControlMapping, error)
	AppliedControlsForReferences(ctx context.Context, companyID uuid.UUID, referenceControlIDs []uuid.UUID, departmentID *uuid.UUID) ([]models.AppliedControl, error)
	EvidenceCount(ctx context.Context, appliedControlID uuid.UUID) (int, error)
	SaveComplianceResult(ctx context.Context, result *models.ComplianceResult, gaps []models.ComplianceGap) error
	CurrentComplianceResult(ctx context.Context, companyID, frameworkID uuid.UUID, departmentID *uuid.UUID) (*models.ComplianceResult, error)
	CurrentComplianceResults(ctx context.Context, companyID uuid.UUID) ([]models.ComplianceResult, error)
	ComplianceResultsSince(ctx context.Context, companyID, frameworkID uuid.UUID, since time.Time) ([]models.ComplianceResult, error)
	FrameworkAdoptions(ctx context.Context, companyID uuid.UUID) ([]models.FrameworkAdoption, error)
	ControlsWithoutEvidence(ctx context.Context, companyID uuid.UUID, limit int) ([]models.AppliedControl, error)
	OverdueReviewControls(ctx context.Context, companyID uuid.UUID, today time.Time, limit int) ([]models.AppliedControl, error)
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

// CalculateFramework runs a full compliance calculation for one company
// and framework, optionally scoped to a department. The result and its
// gaps are persisted as the new current run, superseding the previous one.
func (e *Engine) CalculateFramework(ctx context.Context, companyID, frameworkID uuid.UUID, departmentID, calculatedBy *uuid.UUID) (*models.ComplianceResult, error) {
	framework, err := e.store.Framework(ctx, frameworkID)
	if err != nil {
		return nil, err
	}

	if departmentID != nil {
		department, err := e.store.Department(ctx, *departmentID)
		if err != nil {
			return nil, err
		}
		if department.CompanyID != companyID {
			return nil, &models.ValidationError{
				Field:   "department_id",
				Message: "department does not belong to the company",
			}
		}
	}

	// Reject frameworks whose requirement hierarchy is malformed before
	// any scoring happens.
	allRequirements, err := e.store.FrameworkRequirements(ctx, frameworkID)
	if err != nil {
		return nil, err
	}
	if _, err := models.BuildRequirementTree(allRequirements); err != nil {
		return nil, fmt.Errorf("framework %s requirement hierarchy: %w", framework.Code, err)
	}

	requirements, err := e.store.MandatoryRequirements(ctx, frameworkID)
	if err != nil {
		return nil, err
	}

	result := &models.ComplianceResult{
		CompanyID:    companyID,
		FrameworkID:  frameworkID,
		DepartmentID: departmentID,
		CalculatedBy: calculatedBy,
		Status:       "completed",
	}

	if len(requirements) == 0 {
		// Nothing to score. The empty run is still recorded so callers
		// can tell "calculated, nothing there" from "never calculated".
		if err := e.store.SaveComplianceResult(ctx, result, nil); err != nil {
			return nil, err
		}
		e.logger.Info("compliance calculated",
			"framework", framework.Code,
			"company_id", companyID,
			"requirements", 0)
		return result, nil
	}

	details := make(models.RequirementDetailMap, len(requirements))
	summary := models.ControlSummary{}
	today := e.now()

	var totalPoints, maxPoints float64

	for i := range requirements {
		requirement := &requirements[i]
		detail, err := e.evaluateRequirement(ctx, companyID, departmentID, requirement, &summary, result, today)
		if err != nil {
			return nil, fmt.Errorf("evaluating requirement %s: %w", requirement.Code, err)
		}
		details[requirement.ID.String()] = *detail

		switch detail.Status {
		case models.RequirementCompliant:
			result.RequirementsCompliant++
		case models.RequirementPartial:
			result.RequirementsPartial++
		default:
			result.RequirementsNonCompliant++
		}

		// Only requirements with applied controls enter the score
		// denominator. Unaddressed requirements lower coverage instead.
		if len(detail.Controls) > 0 {
			result.RequirementsAddressed++
			totalPoints += detail.Score
			maxPoints += 100
		}
	}

	result.TotalRequirements = len(requirements)
	result.CoveragePercentage = round2(float64(result.RequirementsAddressed) / float64(result.TotalRequirements) * 100)
	if maxPoints > 0 {
		result.ComplianceScore = round2(totalPoints / maxPoints * 100)
	}

	result.TotalControls = summary.Total
	result.ControlsOperational = summary.Operational
	result.ControlsImplemented = summary.Implemented
	result.ControlsInProgress = summary.InProgress
	result.ControlsNotStarted = summary.NotStarted
	result.RequirementDetails = details
	result.ControlDetails = summary

	gaps := identifyGaps(requirements, details)
	for _, gap := range gaps {
		switch gap.Severity {
		case models.GapHigh:
			result.HighRiskGaps++
		case models.GapMedium:
			result.MediumRiskGaps++
		default:
			result.LowRiskGaps++
		}
	}

	if err := e.store.SaveComplianceResult(ctx, result, gaps); err != nil {
		return nil, err
	}

	e.logger.Info("compliance calculated",
		"framework", framework.Code,
		"company_id", companyID,
		"requirements", result.TotalRequirements,
		"score", result.ComplianceScore,
		"coverage", result.CoveragePercentage,
		"gaps", len(gaps))

	return result, nil
}

// evaluateRequirement scores one requirement from its applied controls and
// updates the shared control and evidence tallies. A control mapped to
// several requirements is tallied once per requirement it serves.
func (e *Engine) evaluateRequirement(ctx context.Context, companyID uuid.UUID, departmentID *uuid.UUID, requirement *models.Requirement, summary *models.ControlSummary, result *models.ComplianceResult, today time.Time) (*models.RequirementDetail, error) {
	detail := &models.RequirementDetail{
		Code:     requirement.Code,
		Title:    requirement.Title,
		Controls: []models.ControlDetail{},
	}

	mappings, err := e.store.ValidatedMappings(ctx, requirement.ID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		detail.Status = models.RequirementNoControls
		return detail, nil
	}

	referenceIDs := make([]uuid.UUID, len(mappings))
	for i, m := range mappings {
		referenceIDs[i] = m.ReferenceControlID
	}

	controls, err := e.store.AppliedControlsForReferences(ctx, companyID, referenceIDs, departmentID)
	if err != nil {
		return nil, err
	}
	if len(controls) == 0 {
		detail.Status = models.RequirementNotImplemented
		return detail, nil
	}

	var scoreSum int
	for i := range controls {
		control := &controls[i]

		evidenceCount, err := e.store.EvidenceCount(ctx, control.ID)
		if err != nil {
			return nil, err
		}

		score := control.ComplianceScore(evidenceCount, today)
		scoreSum += score

		summary.Total++
		switch control.Status {
		case models.ControlOperational:
			summary.Operational++
		case models.ControlImplemented, models.ControlTesting:
			summary.Implemented++
		case models.ControlInProgress:
			summary.InProgress++
		default:
			summary.NotStarted++
		}

		if evidenceCount > 0 {
			result.ControlsWithEvidence++
			result.TotalEvidenceCount += evidenceCount
		}

		detail.Controls = append(detail.Controls, models.ControlDetail{
			ID:            control.ID.String(),
			Code:          control.ControlCode,
			Name:          control.ControlName,
			Status:        control.Status,
			Score:         score,
			EvidenceCount: evidenceCount,
		})
	}

	avg := float64(scoreSum) / float64(len(controls))
	detail.Score = round2(avg)

	switch {
	case avg >= 85:
		detail.Status = models.RequirementCompliant
	case avg >= 50:
		detail.Status = models.RequirementPartial
	default:
		detail.Status = models.RequirementNonCompliant
	}

	return detail, nil
}

// CalculateAll recalculates every framework the company has adopted.
// Each framework runs in its own transaction, so one failing framework
// leaves the others' fresh results committed. Failures are collected
// and returned alongside whatever succeeded.
func (e *Engine) CalculateAll(ctx context.Context, companyID uuid.UUID) ([]models.ComplianceResult, error) {
	adoptions, err := e.store.FrameworkAdoptions(ctx, companyID)
	if err != nil {
		return nil, err
	}

	results := make([]models.ComplianceResult, 0, len(adoptions))
	var errs []error
	for _, adoption := range adoptions {
		result, err := e.CalculateFramework(ctx, companyID, adoption.FrameworkID, nil, nil)
		if err != nil {
			e.logger.Error("framework calculation failed",
				"company_id", companyID,
				"framework_id", adoption.FrameworkID,
				"error", err)
			errs = append(errs, fmt.Errorf("framework %s: %w", adoption.FrameworkID, err))
			continue
		}
		results = append(results, *result)
	}
	return results, errors.Join(errs...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
