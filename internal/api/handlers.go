package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/scheduler"
	"github.com/complyhub/comply/internal/store"
)

// respondStoreError maps engine and store errors onto the response
// envelope. Validation failures are the caller's fault, unknown ids are
// 404, anything else is treated as a database problem.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		respondError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
		return
	}
	var notFoundErr *models.NotFoundError
	if errors.As(err, &notFoundErr) {
		respondError(w, http.StatusNotFound, "not_found", notFoundErr.Error())
		return
	}
	s.logger.Error("request failed", "error", err)
	respondError(w, http.StatusInternalServerError, "db_error", "Operation failed")
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// companyIDQuery extracts the tenant from the query string. Every read
// endpoint is company scoped.
func companyIDQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get("company_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_company_id", "Valid company_id query parameter required")
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// --- frameworks ---

func (s *Server) listFrameworks(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published") == "true"
	frameworks, err := s.store.ListFrameworks(r.Context(), publishedOnly)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, frameworks)
}

func (s *Server) getFramework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "frameworkID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid framework ID")
		return
	}
	framework, err := s.store.Framework(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, framework)
}

func (s *Server) getFrameworkRequirements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "frameworkID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid framework ID")
		return
	}
	requirements, err := s.store.FrameworkRequirements(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requirements)
}

// --- compliance calculation ---

type calculateRequest struct {
	CompanyID    uuid.UUID  `json:"company_id"`
	FrameworkID  uuid.UUID  `json:"framework_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	CalculatedBy *uuid.UUID `json:"calculated_by,omitempty"`
}

func (s *Server) calculateFramework(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.CompanyID == uuid.Nil || req.FrameworkID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id and framework_id are required")
		return
	}

	result, err := s.complianceEngine.CalculateFramework(r.Context(), req.CompanyID, req.FrameworkID, req.DepartmentID, req.CalculatedBy)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.invalidateCache(r.Context(), req.CompanyID)
	respondJSON(w, http.StatusCreated, result)
}

type calculateAllRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
}

func (s *Server) calculateAllFrameworks(w http.ResponseWriter, r *http.Request) {
	var req calculateAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.CompanyID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id is required")
		return
	}

	results, err := s.complianceEngine.CalculateAll(r.Context(), req.CompanyID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.invalidateCache(r.Context(), req.CompanyID)
	respondJSON(w, http.StatusCreated, results)
}

func (s *Server) getCurrentResult(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	frameworkID, err := uuid.Parse(r.URL.Query().Get("framework_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Valid framework_id query parameter required")
		return
	}
	departmentID, err := optionalUUIDQuery(r, "department_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid department_id")
		return
	}

	result, err := s.store.CurrentComplianceResult(r.Context(), companyID, frameworkID, departmentID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// --- compliance analytics ---

func (s *Server) getComplianceOverview(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	s.cachedJSON(w, r, s.cacheKey(companyID, "compliance-overview"), func() (interface{}, error) {
		return s.complianceEngine.Overview(r.Context(), companyID)
	})
}

func (s *Server) getComplianceTrends(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	frameworkID, err := uuid.Parse(r.URL.Query().Get("framework_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Valid framework_id query parameter required")
		return
	}
	months := intQuery(r, "months", s.cfg.Engine.TrendMonths)

	s.cachedJSON(w, r, s.cacheKey(companyID, "compliance-trends", frameworkID.String(), strconv.Itoa(months)), func() (interface{}, error) {
		return s.complianceEngine.Trends(r.Context(), companyID, frameworkID, months)
	})
}

func (s *Server) getGapAnalysis(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	frameworkID, err := uuid.Parse(r.URL.Query().Get("framework_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Valid framework_id query parameter required")
		return
	}

	analysis, err := s.complianceEngine.AnalyzeGaps(r.Context(), companyID, frameworkID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) getComplianceRecommendations(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	frameworkID, err := uuid.Parse(r.URL.Query().Get("framework_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Valid framework_id query parameter required")
		return
	}

	actions, err := s.complianceEngine.PrioritizedActions(r.Context(), companyID, frameworkID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}

// --- gap records ---

func (s *Server) listGaps(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	resultID, err := optionalUUIDQuery(r, "result_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid result_id")
		return
	}

	filter := store.GapFilter{
		ResultID: resultID,
		Severity: models.GapSeverity(r.URL.Query().Get("severity")),
		Status:   models.GapStatus(r.URL.Query().Get("status")),
		Limit:    intQuery(r, "limit", 0),
	}

	gaps, err := s.store.Gaps(r.Context(), companyID, filter)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSONWithMeta(w, http.StatusOK, gaps, &apiMeta{Total: len(gaps), Limit: filter.Limit})
}

type updateGapStatusRequest struct {
	Status           models.GapStatus `json:"status"`
	RemediationNotes string           `json:"remediation_notes,omitempty"`
	TargetDate       *time.Time       `json:"target_date,omitempty"`
}

func (s *Server) updateGapStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "gapID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid gap ID")
		return
	}
	var req updateGapStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	switch req.Status {
	case models.GapOpen, models.GapInProgress, models.GapResolved, models.GapAccepted:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "Unknown gap status")
		return
	}

	if err := s.store.UpdateGapStatus(r.Context(), id, req.Status, req.RemediationNotes, req.TargetDate); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// --- risk matrices ---

func (s *Server) createRiskMatrix(w http.ResponseWriter, r *http.Request) {
	var matrix models.RiskMatrix
	if err := json.NewDecoder(r.Body).Decode(&matrix); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if matrix.CompanyID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id is required")
		return
	}

	if err := s.store.CreateRiskMatrix(r.Context(), &matrix); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, matrix)
}

type seedMatrixRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
}

// seedDefaultRiskMatrix provisions the standard 5x5 matrix for a tenant
// and activates it when the tenant has no active matrix yet.
func (s *Server) seedDefaultRiskMatrix(w http.ResponseWriter, r *http.Request) {
	var req seedMatrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.CompanyID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id is required")
		return
	}

	matrix := models.DefaultMatrix5x5(req.CompanyID)
	if err := s.store.CreateRiskMatrix(r.Context(), matrix); err != nil {
		s.respondStoreError(w, err)
		return
	}

	var notFoundErr *models.NotFoundError
	if _, err := s.store.ActiveRiskMatrix(r.Context(), req.CompanyID); errors.As(err, &notFoundErr) {
		if err := s.store.ActivateRiskMatrix(r.Context(), req.CompanyID, matrix.ID); err != nil {
			s.respondStoreError(w, err)
			return
		}
		matrix.IsActive = true
	}

	respondJSON(w, http.StatusCreated, matrix)
}

func (s *Server) getRiskMatrix(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "matrixID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid matrix ID")
		return
	}
	matrix, err := s.store.RiskMatrix(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, matrix)
}

func (s *Server) getActiveRiskMatrix(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	matrix, err := s.store.ActiveRiskMatrix(r.Context(), companyID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, matrix)
}

type activateMatrixRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
}

func (s *Server) activateRiskMatrix(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "matrixID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid matrix ID")
		return
	}
	var req activateMatrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.CompanyID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id is required")
		return
	}

	if err := s.store.ActivateRiskMatrix(r.Context(), req.CompanyID, id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

// --- risks ---

func (s *Server) listRisks(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	departmentID, err := optionalUUIDQuery(r, "department_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid department_id")
		return
	}

	filter := store.RiskFilter{
		Category:     r.URL.Query().Get("category"),
		DepartmentID: departmentID,
		Limit:        intQuery(r, "limit", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []models.RiskStatus{models.RiskStatus(status)}
	}

	risks, err := s.store.Risks(r.Context(), companyID, filter)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSONWithMeta(w, http.StatusOK, risks, &apiMeta{Total: len(risks), Limit: filter.Limit})
}

func (s *Server) createRisk(w http.ResponseWriter, r *http.Request) {
	var risk models.Risk
	if err := json.NewDecoder(r.Body).Decode(&risk); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if risk.CompanyID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id is required")
		return
	}

	// Fall back to the tenant's active matrix when none was named.
	if risk.RiskMatrixID == uuid.Nil {
		matrix, err := s.store.ActiveRiskMatrix(r.Context(), risk.CompanyID)
		if err != nil {
			s.respondStoreError(w, err)
			return
		}
		risk.RiskMatrixID = matrix.ID
	}

	if err := s.store.CreateRisk(r.Context(), &risk); err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.invalidateCache(r.Context(), risk.CompanyID)
	respondJSON(w, http.StatusCreated, risk)
}

func (s *Server) getRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	risk, err := s.store.Risk(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, risk)
}

type updateRiskStatusRequest struct {
	Status models.RiskStatus `json:"status"`
}

func (s *Server) updateRiskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	var req updateRiskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	switch req.Status {
	case models.RiskIdentified, models.RiskAssessing, models.RiskTreating, models.RiskMonitoring, models.RiskClosed:
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "Unknown risk status")
		return
	}

	if err := s.store.UpdateRiskStatus(r.Context(), id, req.Status); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// --- risk assessment ---

type assessRiskRequest struct {
	AppliedControlID    uuid.UUID  `json:"applied_control_id"`
	EffectivenessRating int        `json:"effectiveness_rating"`
	AssessedBy          *uuid.UUID `json:"assessed_by,omitempty"`
}

func (s *Server) assessRisk(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	var req assessRiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.AppliedControlID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "applied_control_id is required")
		return
	}

	assessment, err := s.riskEngine.AssessRisk(r.Context(), riskID, req.AppliedControlID, req.EffectivenessRating, req.AssessedBy)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.invalidateCache(r.Context(), assessment.CompanyID)
	respondJSON(w, http.StatusCreated, assessment)
}

func (s *Server) getResidualRisk(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	summary, err := s.riskEngine.AggregateResidual(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) getRiskAssessments(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	assessments, err := s.store.CurrentAssessments(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assessments)
}

// --- risk events ---

func (s *Server) listRiskEvents(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	events, err := s.store.RiskEvents(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (s *Server) createRiskEvent(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	var event models.RiskEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	risk, err := s.store.Risk(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	event.RiskID = risk.ID
	event.CompanyID = risk.CompanyID

	if err := s.store.CreateRiskEvent(r.Context(), &event); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// --- treatment actions ---

func (s *Server) listTreatmentActions(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	actions, err := s.store.TreatmentActions(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, actions)
}

func (s *Server) createTreatmentAction(w http.ResponseWriter, r *http.Request) {
	riskID, ok := pathID(r, "riskID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid risk ID")
		return
	}
	var action models.RiskTreatmentAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if action.Title == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "title is required")
		return
	}

	risk, err := s.store.Risk(r.Context(), riskID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	action.RiskID = risk.ID
	action.CompanyID = risk.CompanyID

	if err := s.store.CreateTreatmentAction(r.Context(), &action); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, action)
}

// --- risk analytics ---

func (s *Server) getRiskRegisterSummary(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	s.cachedJSON(w, r, s.cacheKey(companyID, "risk-summary"), func() (interface{}, error) {
		return s.riskEngine.RegisterSummary(r.Context(), companyID)
	})
}

func (s *Server) getRiskHeatMap(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	s.cachedJSON(w, r, s.cacheKey(companyID, "risk-heat-map"), func() (interface{}, error) {
		return s.riskEngine.HeatMap(r.Context(), companyID)
	})
}

func (s *Server) getTopRisks(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	limit := intQuery(r, "limit", s.cfg.Engine.TopRiskLimit)

	s.cachedJSON(w, r, s.cacheKey(companyID, "risk-top", strconv.Itoa(limit)), func() (interface{}, error) {
		return s.riskEngine.TopRisks(r.Context(), companyID, limit)
	})
}

func (s *Server) getRiskTrends(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	months := intQuery(r, "months", s.cfg.Engine.TrendMonths)

	s.cachedJSON(w, r, s.cacheKey(companyID, "risk-trends", strconv.Itoa(months)), func() (interface{}, error) {
		return s.riskEngine.Trends(r.Context(), companyID, months)
	})
}

func (s *Server) getTreatmentPriorities(w http.ResponseWriter, r *http.Request) {
	companyID, ok := companyIDQuery(w, r)
	if !ok {
		return
	}
	s.cachedJSON(w, r, s.cacheKey(companyID, "treatment-priorities"), func() (interface{}, error) {
		return s.riskEngine.TreatmentPriorities(r.Context(), companyID)
	})
}

// --- scheduled jobs ---

func (s *Server) listScheduledJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.scheduler.ListJobs(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) createScheduledJob(w http.ResponseWriter, r *http.Request) {
	var job scheduler.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if job.CompanyID == uuid.Nil || job.Schedule == "" || job.JobType == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "company_id, schedule and job_type are required")
		return
	}

	if err := s.scheduler.AddJob(r.Context(), &job); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

func (s *Server) deleteScheduledJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "jobID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid job ID")
		return
	}
	if err := s.scheduler.DeleteJob(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) runScheduledJobNow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "jobID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid job ID")
		return
	}
	if err := s.scheduler.RunJobNow(r.Context(), id); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type setJobEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) setScheduledJobEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "jobID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid job ID")
		return
	}
	var req setJobEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := s.scheduler.SetJobEnabled(r.Context(), id, req.Enabled); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) getJobExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "jobID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_id", "Invalid job ID")
		return
	}
	limit := intQuery(r, "limit", 20)

	executions, err := s.scheduler.JobExecutions(r.Context(), id, limit)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, executions)
}
