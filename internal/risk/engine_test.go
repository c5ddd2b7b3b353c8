package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
	"github.com/complyhub/comply/internal/store"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	risks       map[uuid.UUID]*models.Risk
	matrices    map[uuid.UUID]*models.RiskMatrix
	active      map[uuid.UUID]*models.RiskMatrix // by company
	controls    map[uuid.UUID]*models.AppliedControl
	assessments map[uuid.UUID][]models.RiskAssessment // by risk
	actionCount map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		risks:       map[uuid.UUID]*models.Risk{},
		matrices:    map[uuid.UUID]*models.RiskMatrix{},
		active:      map[uuid.UUID]*models.RiskMatrix{},
		controls:    map[uuid.UUID]*models.AppliedControl{},
		assessments: map[uuid.UUID][]models.RiskAssessment{},
		actionCount: map[uuid.UUID]int{},
	}
}

func (f *fakeStore) Risk(_ context.Context, id uuid.UUID) (*models.Risk, error) {
	r, ok := f.risks[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "risk", ID: id.String()}
	}
	return r, nil
}

func (f *fakeStore) Risks(_ context.Context, companyID uuid.UUID, filter store.RiskFilter) ([]models.Risk, error) {
	var out []models.Risk
	for _, r := range f.risks {
		if r.CompanyID != companyID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				if r.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InherentRiskScore > out[j].InherentRiskScore
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) RiskMatrix(_ context.Context, id uuid.UUID) (*models.RiskMatrix, error) {
	m, ok := f.matrices[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "risk matrix", ID: id.String()}
	}
	return m, nil
}

func (f *fakeStore) ActiveRiskMatrix(_ context.Context, companyID uuid.UUID) (*models.RiskMatrix, error) {
	m, ok := f.active[companyID]
	if !ok {
		return nil, &models.NotFoundError{Kind: "active risk matrix", ID: companyID.String()}
	}
	return m, nil
}

func (f *fakeStore) AppliedControl(_ context.Context, id uuid.UUID) (*models.AppliedControl, error) {
	c, ok := f.controls[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "applied control", ID: id.String()}
	}
	return c, nil
}

func (f *fakeStore) SaveRiskAssessment(_ context.Context, assessment *models.RiskAssessment) error {
	assessment.ID = uuid.New()
	assessment.IsCurrent = true
	current := f.assessments[assessment.RiskID]
	for i := range current {
		current[i].IsCurrent = false
	}
	f.assessments[assessment.RiskID] = append(current, *assessment)
	return nil
}

func (f *fakeStore) CurrentAssessments(_ context.Context, riskID uuid.UUID) ([]models.RiskAssessment, error) {
	var out []models.RiskAssessment
	for _, a := range f.assessments[riskID] {
		if a.IsCurrent {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) AssessmentsBetween(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]models.RiskAssessment, error) {
	var out []models.RiskAssessment
	for _, list := range f.assessments {
		for _, a := range list {
			if a.CompanyID != companyID {
				continue
			}
			if a.AssessmentDate.Before(from) || !a.AssessmentDate.Before(to) {
				continue
			}
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssessmentDate.Before(out[j].AssessmentDate) })
	return out, nil
}

func (f *fakeStore) OpenTreatmentActionCounts(_ context.Context, companyID uuid.UUID) (map[uuid.UUID]int, error) {
	return f.actionCount, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedRisk(f *fakeStore, companyID uuid.UUID, likelihood, impact int, status models.RiskStatus) *models.Risk {
	matrix, ok := f.active[companyID]
	if !ok {
		matrix = models.DefaultMatrix5x5(companyID)
		matrix.ID = uuid.New()
		matrix.IsActive = true
		f.matrices[matrix.ID] = matrix
		f.active[companyID] = matrix
	}

	risk := &models.Risk{
		ID:                 uuid.New(),
		CompanyID:          companyID,
		RiskMatrixID:       matrix.ID,
		Title:              "Risk",
		Category:           "operational",
		Status:             status,
		InherentLikelihood: likelihood,
		InherentImpact:     impact,
	}
	if err := risk.Recalculate(matrix); err != nil {
		panic(err)
	}
	f.risks[risk.ID] = risk
	return risk
}

func seedControl(f *fakeStore, companyID uuid.UUID, code string) *models.AppliedControl {
	control := &models.AppliedControl{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Status:      models.ControlOperational,
		ControlCode: code,
		ControlName: code + " control",
	}
	f.controls[control.ID] = control
	return control
}

func seedAssessment(f *fakeStore, risk *models.Risk, residualScore, rating int) {
	f.assessments[risk.ID] = append(f.assessments[risk.ID], models.RiskAssessment{
		ID:                  uuid.New(),
		CompanyID:           risk.CompanyID,
		RiskID:              risk.ID,
		AppliedControlID:    uuid.New(),
		EffectivenessRating: rating,
		ResidualLikelihood:  1,
		ResidualImpact:      residualScore,
		ResidualScore:       residualScore,
		ResidualRiskLevel:   f.active[risk.CompanyID].Level(residualScore),
		AssessmentDate:      time.Now(),
		IsCurrent:           true,
	})
}

func TestEngine_AssessRisk(t *testing.T) {
	tests := []struct {
		name           string
		rating         int
		wantLikelihood int
		wantImpact     int
		wantScore      int
		wantLevel      models.RiskLevel
		wantBand       models.ControlEffectiveness
	}{
		{"fully effective shaves two points", 100, 2, 2, 4, models.RiskLow, models.HighlyEffective},
		{"effective shaves one point", 75, 3, 3, 9, models.RiskMedium, models.Effective},
		{"partially effective shaves one point", 50, 3, 3, 9, models.RiskMedium, models.PartiallyEffective},
		{"weak control changes nothing", 40, 4, 4, 16, models.RiskHigh, models.PartiallyEffective},
		{"useless control changes nothing", 0, 4, 4, 16, models.RiskHigh, models.NotEffective},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeStore()
			companyID := uuid.New()
			risk := seedRisk(f, companyID, 4, 4, models.RiskAssessing)
			control := seedControl(f, companyID, "AC-1")

			engine := NewEngine(f, testLogger())
			assessment, err := engine.AssessRisk(context.Background(), risk.ID, control.ID, tt.rating, nil)
			if err != nil {
				t.Fatalf("AssessRisk failed: %v", err)
			}

			if assessment.ResidualLikelihood != tt.wantLikelihood || assessment.ResidualImpact != tt.wantImpact {
				t.Errorf("residual l/i = %d/%d, want %d/%d",
					assessment.ResidualLikelihood, assessment.ResidualImpact, tt.wantLikelihood, tt.wantImpact)
			}
			if assessment.ResidualScore != tt.wantScore {
				t.Errorf("residual score = %d, want %d", assessment.ResidualScore, tt.wantScore)
			}
			if assessment.ResidualRiskLevel != tt.wantLevel {
				t.Errorf("residual level = %s, want %s", assessment.ResidualRiskLevel, tt.wantLevel)
			}
			if assessment.ControlEffectiveness != tt.wantBand {
				t.Errorf("effectiveness band = %s, want %s", assessment.ControlEffectiveness, tt.wantBand)
			}
		})
	}
}

func TestEngine_AssessRisk_ResidualFlooredAtOne(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 1, 2, models.RiskAssessing)
	control := seedControl(f, companyID, "AC-1")

	engine := NewEngine(f, testLogger())
	assessment, err := engine.AssessRisk(context.Background(), risk.ID, control.ID, 100, nil)
	if err != nil {
		t.Fatalf("AssessRisk failed: %v", err)
	}
	if assessment.ResidualLikelihood != 1 || assessment.ResidualImpact != 1 {
		t.Errorf("residual l/i = %d/%d, want floor of 1/1",
			assessment.ResidualLikelihood, assessment.ResidualImpact)
	}
}

func TestEngine_AssessRisk_Validation(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 3, 3, models.RiskAssessing)
	control := seedControl(f, companyID, "AC-1")
	foreign := seedControl(f, uuid.New(), "AC-2")

	engine := NewEngine(f, testLogger())
	ctx := context.Background()

	var ve *models.ValidationError
	for _, rating := range []int{-1, 101} {
		_, err := engine.AssessRisk(ctx, risk.ID, control.ID, rating, nil)
		if !errors.As(err, &ve) {
			t.Errorf("rating %d: err = %v, want ValidationError", rating, err)
		}
	}

	_, err := engine.AssessRisk(ctx, risk.ID, foreign.ID, 50, nil)
	if !errors.As(err, &ve) {
		t.Fatalf("foreign control: err = %v, want ValidationError", err)
	}
	if ve.Field != "applied_control_id" {
		t.Errorf("field = %s, want applied_control_id", ve.Field)
	}

	var nf *models.NotFoundError
	_, err = engine.AssessRisk(ctx, uuid.New(), control.ID, 50, nil)
	if !errors.As(err, &nf) {
		t.Errorf("unknown risk: err = %v, want NotFoundError", err)
	}
}

func TestEngine_AssessRisk_RetiresPriorAssessments(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 4, 4, models.RiskAssessing)
	first := seedControl(f, companyID, "AC-1")
	second := seedControl(f, companyID, "AC-2")

	engine := NewEngine(f, testLogger())
	ctx := context.Background()

	if _, err := engine.AssessRisk(ctx, risk.ID, first.ID, 60, nil); err != nil {
		t.Fatalf("first assessment failed: %v", err)
	}
	if _, err := engine.AssessRisk(ctx, risk.ID, second.ID, 90, nil); err != nil {
		t.Fatalf("second assessment failed: %v", err)
	}

	// Assessing against a different control still retires the first one.
	current, err := f.CurrentAssessments(ctx, risk.ID)
	if err != nil {
		t.Fatalf("CurrentAssessments failed: %v", err)
	}
	if len(current) != 1 {
		t.Fatalf("current assessments = %d, want 1", len(current))
	}
	if current[0].AppliedControlID != second.ID {
		t.Error("latest assessment should be the current one")
	}
}

func TestEngine_AggregateResidual(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 5, 5, models.RiskTreating) // inherent 25, critical

	// Three current assessments; the lowest residual score represents
	// the risk.
	seedAssessment(f, risk, 12, 60)
	seedAssessment(f, risk, 6, 90)
	seedAssessment(f, risk, 20, 30)

	engine := NewEngine(f, testLogger())
	residual, err := engine.AggregateResidual(context.Background(), risk.ID)
	if err != nil {
		t.Fatalf("AggregateResidual failed: %v", err)
	}

	if residual.ResidualScore != 6 {
		t.Errorf("residual score = %d, want 6", residual.ResidualScore)
	}
	if residual.ControlCount != 3 {
		t.Errorf("control count = %d, want 3", residual.ControlCount)
	}
	if residual.AvgEffectiveness != 60.0 {
		t.Errorf("avg effectiveness = %v, want 60.0", residual.AvgEffectiveness)
	}
	if residual.RiskReduction != 76.0 {
		t.Errorf("risk reduction = %v, want 76.0", residual.RiskReduction)
	}
	if residual.ResidualLevel != models.RiskMedium {
		t.Errorf("residual level = %s, want medium", residual.ResidualLevel)
	}
}

func TestEngine_AggregateResidual_NoAssessments(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 4, 5, models.RiskIdentified) // inherent 20, critical

	engine := NewEngine(f, testLogger())
	residual, err := engine.AggregateResidual(context.Background(), risk.ID)
	if err != nil {
		t.Fatalf("AggregateResidual failed: %v", err)
	}

	if residual.ResidualScore != risk.InherentRiskScore {
		t.Errorf("residual score = %d, want inherent %d", residual.ResidualScore, risk.InherentRiskScore)
	}
	if residual.ResidualLevel != risk.InherentRiskLevel {
		t.Errorf("residual level = %s, want inherent %s", residual.ResidualLevel, risk.InherentRiskLevel)
	}
	if residual.ControlCount != 0 || residual.AvgEffectiveness != 0 || residual.RiskReduction != 0 {
		t.Errorf("summary = %+v, want zero control metrics", residual)
	}
}
