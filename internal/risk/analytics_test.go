package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/complyhub/comply/internal/models"
)

func TestEngine_RegisterSummary(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()

	high := seedRisk(f, companyID, 4, 4, models.RiskTreating) // 16 high
	seedRisk(f, companyID, 2, 2, models.RiskIdentified)       // 4 low
	seedAssessment(f, high, 8, 80)

	engine := NewEngine(f, testLogger())
	summary, err := engine.RegisterSummary(context.Background(), companyID)
	if err != nil {
		t.Fatalf("RegisterSummary failed: %v", err)
	}

	if summary.TotalRisks != 2 {
		t.Errorf("total risks = %d, want 2", summary.TotalRisks)
	}
	if summary.ByLevel[models.RiskHigh] != 1 || summary.ByLevel[models.RiskLow] != 1 {
		t.Errorf("by level = %v, want 1 high / 1 low", summary.ByLevel)
	}
	if summary.ByStatus[models.RiskTreating] != 1 {
		t.Errorf("by status = %v, want 1 treating", summary.ByStatus)
	}
	if summary.AvgInherentScore != 10.0 {
		t.Errorf("avg inherent = %v, want 10.0", summary.AvgInherentScore)
	}
	// Assessed risk contributes its residual 8; unassessed contributes
	// its inherent 4.
	if summary.AvgResidualScore != 6.0 {
		t.Errorf("avg residual = %v, want 6.0", summary.AvgResidualScore)
	}
}

func TestEngine_RegisterSummary_Empty(t *testing.T) {
	engine := NewEngine(newFakeStore(), testLogger())
	summary, err := engine.RegisterSummary(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("RegisterSummary failed: %v", err)
	}
	if summary.TotalRisks != 0 || summary.AvgInherentScore != 0 {
		t.Errorf("summary = %+v, want zero values", summary)
	}
}

func TestEngine_HeatMap(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()

	risk := seedRisk(f, companyID, 5, 4, models.RiskMonitoring) // 20 critical
	seedRisk(f, companyID, 1, 1, models.RiskClosed)             // closed risks stay off the map
	seedAssessment(f, risk, 12, 70)

	engine := NewEngine(f, testLogger())
	heatMap, err := engine.HeatMap(context.Background(), companyID)
	if err != nil {
		t.Fatalf("HeatMap failed: %v", err)
	}

	if len(heatMap.Inherent) != 1 || len(heatMap.Residual) != 1 {
		t.Fatalf("points = %d inherent / %d residual, want 1/1", len(heatMap.Inherent), len(heatMap.Residual))
	}
	if heatMap.Inherent[0].Score != 20 || heatMap.Inherent[0].Level != models.RiskCritical {
		t.Errorf("inherent point = %+v, want score 20 critical", heatMap.Inherent[0])
	}
	if heatMap.Residual[0].Score != 12 {
		t.Errorf("residual point = %+v, want score 12", heatMap.Residual[0])
	}
	if heatMap.Matrix == nil || heatMap.Matrix.LikelihoodLevels != 5 {
		t.Errorf("matrix metadata = %+v, want 5x5", heatMap.Matrix)
	}
}

func TestEngine_HeatMap_NoActiveMatrix(t *testing.T) {
	engine := NewEngine(newFakeStore(), testLogger())
	heatMap, err := engine.HeatMap(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("HeatMap failed: %v", err)
	}
	if len(heatMap.Inherent) != 0 || len(heatMap.Residual) != 0 || heatMap.Matrix != nil {
		t.Errorf("heat map = %+v, want empty without an active matrix", heatMap)
	}
}

func TestEngine_TopRisks(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()

	seedRisk(f, companyID, 2, 2, models.RiskIdentified)
	worst := seedRisk(f, companyID, 5, 5, models.RiskTreating)
	seedRisk(f, companyID, 3, 3, models.RiskAssessing)
	seedAssessment(f, worst, 9, 85)

	engine := NewEngine(f, testLogger())
	top, err := engine.TopRisks(context.Background(), companyID, 2)
	if err != nil {
		t.Fatalf("TopRisks failed: %v", err)
	}

	if len(top) != 2 {
		t.Fatalf("top risks = %d, want limit of 2", len(top))
	}
	if top[0].RiskID != worst.ID {
		t.Error("highest inherent score should rank first")
	}
	if top[0].ResidualScore != 9 || top[0].ControlCount != 1 {
		t.Errorf("top entry = %+v, want residual 9 with 1 control", top[0])
	}
	if top[0].RiskReduction != 64.0 {
		t.Errorf("risk reduction = %v, want 64.0", top[0].RiskReduction)
	}
}

func TestEngine_Trends(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()
	risk := seedRisk(f, companyID, 4, 4, models.RiskTreating)

	now := time.Now()
	f.assessments[risk.ID] = []models.RiskAssessment{
		{CompanyID: companyID, RiskID: risk.ID, ResidualScore: 12, AssessmentDate: now.AddDate(0, -2, 0)},
		{CompanyID: companyID, RiskID: risk.ID, ResidualScore: 8, AssessmentDate: now.AddDate(0, -2, 0)},
		{CompanyID: companyID, RiskID: risk.ID, ResidualScore: 6, AssessmentDate: now.AddDate(0, 0, -1)},
		{CompanyID: companyID, RiskID: risk.ID, ResidualScore: 4, AssessmentDate: now.AddDate(0, -20, 0)},
	}

	engine := NewEngine(f, testLogger())
	trends, err := engine.Trends(context.Background(), companyID, 12)
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}

	if len(trends) != 2 {
		t.Fatalf("trends = %d buckets, want 2 (out-of-window excluded)", len(trends))
	}
	if trends[0].AvgResidualScore != 10.0 || trends[0].AssessmentCount != 2 {
		t.Errorf("older bucket = %+v, want avg 10.0 over 2 assessments", trends[0])
	}
	if trends[1].AvgResidualScore != 6.0 || trends[1].AssessmentCount != 1 {
		t.Errorf("newer bucket = %+v, want avg 6.0 over 1 assessment", trends[1])
	}
	if trends[0].Month >= trends[1].Month {
		t.Errorf("buckets out of order: %s then %s", trends[0].Month, trends[1].Month)
	}
}

func TestEngine_TreatmentPriorities(t *testing.T) {
	f := newFakeStore()
	companyID := uuid.New()

	// Critical residual, one control.
	critical := seedRisk(f, companyID, 5, 5, models.RiskTreating)
	seedAssessment(f, critical, 20, 40)

	// Medium residual with a single control.
	thin := seedRisk(f, companyID, 4, 4, models.RiskAssessing)
	seedAssessment(f, thin, 9, 75)

	// No controls at all, low inherent.
	naked := seedRisk(f, companyID, 2, 2, models.RiskIdentified)

	// Well covered medium residual.
	covered := seedRisk(f, companyID, 3, 4, models.RiskTreating)
	seedAssessment(f, covered, 9, 80)
	seedAssessment(f, covered, 10, 85)

	// Monitored risks stay off the worklist.
	seedRisk(f, companyID, 5, 4, models.RiskMonitoring)

	f.actionCount[critical.ID] = 2

	engine := NewEngine(f, testLogger())
	priorities, err := engine.TreatmentPriorities(context.Background(), companyID)
	if err != nil {
		t.Fatalf("TreatmentPriorities failed: %v", err)
	}

	if len(priorities) != 4 {
		t.Fatalf("priorities = %d, want 4", len(priorities))
	}

	byRisk := map[uuid.UUID]TreatmentPriority{}
	for _, p := range priorities {
		byRisk[p.RiskID] = p
	}

	if got := byRisk[critical.ID]; got.Priority != models.PriorityCritical || got.OpenActions != 2 {
		t.Errorf("critical risk = %+v, want critical priority with 2 open actions", got)
	}
	if got := byRisk[thin.ID]; got.Priority != models.PriorityHigh {
		t.Errorf("thinly covered risk = %+v, want high priority", got)
	}
	if got := byRisk[naked.ID]; got.Priority != models.PriorityHigh || got.Recommendation != "Implement controls to mitigate this risk" {
		t.Errorf("uncontrolled risk = %+v, want high priority with implement recommendation", got)
	}
	if got := byRisk[covered.ID]; got.Priority != models.PriorityMedium {
		t.Errorf("covered risk = %+v, want medium priority", got)
	}

	if priorities[0].Priority != models.PriorityCritical {
		t.Error("critical priority should sort first")
	}
}
