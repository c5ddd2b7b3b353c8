package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	today     = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	yesterday = time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	nextWeek  = time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)
)

func TestAppliedControl_ComplianceScore(t *testing.T) {
	tests := []struct {
		name          string
		status        ControlStatus
		evidenceCount int
		deficiencies  bool
		nextReview    *time.Time
		expected      int
	}{
		{"not started, no adjustments", ControlNotStarted, 0, false, nil, 0},
		{"in progress base", ControlInProgress, 0, false, nil, 25},
		{"implemented base", ControlImplemented, 0, false, nil, 50},
		{"testing base", ControlTesting, 0, false, nil, 60},
		{"operational base", ControlOperational, 0, false, nil, 85},
		{"needs improvement base", ControlNeedsImprovement, 0, false, nil, 40},
		{"non compliant base", ControlNonCompliant, 0, false, nil, 0},
		{"operational with two evidence items", ControlOperational, 2, false, nil, 95},
		{"evidence bonus caps at 100", ControlOperational, 10, false, nil, 100},
		{"evidence bonus on zero base", ControlNotStarted, 3, false, nil, 15},
		{"deficiency penalty", ControlOperational, 0, true, nil, 65},
		{"deficiency penalty floors at zero", ControlInProgress, 0, true, nil, 5},
		{"deficiency floor from zero base", ControlNotStarted, 0, true, nil, 0},
		{"overdue review penalty", ControlOperational, 0, false, &yesterday, 75},
		{"future review not penalized", ControlOperational, 0, false, &nextWeek, 85},
		{"all adjustments in order", ControlOperational, 2, true, &yesterday, 65},
		{"cap applies before penalties", ControlOperational, 10, true, &yesterday, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppliedControl{
				Status:          tt.status,
				HasDeficiencies: tt.deficiencies,
				NextReviewDate:  tt.nextReview,
			}
			if got := c.ComplianceScore(tt.evidenceCount, today); got != tt.expected {
				t.Errorf("ComplianceScore() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAppliedControl_ScoreMonotoneInEvidence(t *testing.T) {
	c := &AppliedControl{Status: ControlOperational}
	prev := -1
	for evidence := 0; evidence <= 30; evidence++ {
		score := c.ComplianceScore(evidence, today)
		if score < prev {
			t.Fatalf("score decreased from %d to %d at evidence=%d", prev, score, evidence)
		}
		if score > 100 {
			t.Fatalf("score %d exceeds 100 at evidence=%d", score, evidence)
		}
		prev = score
	}
}

func TestGradeForScore_Bands(t *testing.T) {
	tests := []struct {
		score float64
		grade string
	}{
		{100, "A+"}, {95, "A+"}, {94.99, "A"},
		{90, "A"}, {89.99, "A-"},
		{85, "A-"}, {84.99, "B+"},
		{80, "B+"}, {79.99, "B"},
		{75, "B"}, {74.99, "B-"},
		{70, "B-"}, {69.99, "C+"},
		{65, "C+"}, {64.99, "C"},
		{60, "C"}, {59.99, "C-"},
		{55, "C-"}, {54.99, "D"},
		{50, "D"}, {49.99, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		if got := GradeForScore(tt.score); got != tt.grade {
			t.Errorf("GradeForScore(%v) = %s, want %s", tt.score, got, tt.grade)
		}
	}
}

func TestStatusForScore_Bands(t *testing.T) {
	tests := []struct {
		score  float64
		status ComplianceStatus
	}{
		{100, StatusCompliant}, {90, StatusCompliant},
		{89.99, StatusMostlyCompliant}, {75, StatusMostlyCompliant},
		{74.99, StatusPartiallyCompliant}, {50, StatusPartiallyCompliant},
		{49.99, StatusNonCompliant}, {0, StatusNonCompliant},
	}

	for _, tt := range tests {
		if got := StatusForScore(tt.score); got != tt.status {
			t.Errorf("StatusForScore(%v) = %s, want %s", tt.score, got, tt.status)
		}
	}
}

func TestGradeAndStatusBands_TotalOverRange(t *testing.T) {
	// Every score in [0, 100] must map to exactly one grade and one band.
	for s := 0.0; s <= 100.0; s += 0.25 {
		if GradeForScore(s) == "" {
			t.Fatalf("no grade for score %v", s)
		}
		if StatusForScore(s) == "" {
			t.Fatalf("no status for score %v", s)
		}
	}
}

func TestEffectivenessBand(t *testing.T) {
	tests := []struct {
		rating int
		band   ControlEffectiveness
	}{
		{100, HighlyEffective}, {90, HighlyEffective},
		{89, Effective}, {70, Effective},
		{69, PartiallyEffective}, {40, PartiallyEffective},
		{39, NotEffective}, {0, NotEffective},
	}

	for _, tt := range tests {
		if got := EffectivenessBand(tt.rating); got != tt.band {
			t.Errorf("EffectivenessBand(%d) = %s, want %s", tt.rating, got, tt.band)
		}
	}
}

func TestRiskMatrix_Score(t *testing.T) {
	m := DefaultMatrix5x5(uuid.New())

	score, err := m.Score(4, 5)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if score != 20 {
		t.Errorf("Score(4,5) = %d, want 20", score)
	}

	// Configured table wins over the product fallback.
	m.ScoreMatrix["4,5"] = 25
	score, _ = m.Score(4, 5)
	if score != 25 {
		t.Errorf("Score(4,5) with override = %d, want 25", score)
	}
}

func TestRiskMatrix_ScoreFallback(t *testing.T) {
	// A sparse table falls back to likelihood * impact for missing pairs.
	m := &RiskMatrix{
		LikelihoodLevels:    5,
		ImpactLevels:        5,
		ScoreMatrix:         ScoreTable{"1,1": 2},
		LowRiskThreshold:    6,
		MediumRiskThreshold: 12,
		HighRiskThreshold:   20,
	}

	score, err := m.Score(3, 4)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if score != 12 {
		t.Errorf("Score(3,4) fallback = %d, want 12", score)
	}

	score, _ = m.Score(1, 1)
	if score != 2 {
		t.Errorf("Score(1,1) from table = %d, want 2", score)
	}
}

func TestRiskMatrix_ScoreOutOfRange(t *testing.T) {
	m := DefaultMatrix5x5(uuid.New())

	for _, pair := range [][2]int{{0, 3}, {6, 3}, {3, 0}, {3, 6}} {
		if _, err := m.Score(pair[0], pair[1]); err == nil {
			t.Errorf("Score(%d,%d) expected out-of-range error", pair[0], pair[1])
		}
	}

	var verr *ValidationError
	_, err := m.Score(6, 3)
	if !asValidationError(err, &verr) || verr.Field != "likelihood" {
		t.Errorf("expected likelihood validation error, got %v", err)
	}
}

func TestRiskMatrix_Level(t *testing.T) {
	m := DefaultMatrix5x5(uuid.New()) // thresholds 6/12/20

	tests := []struct {
		score int
		level RiskLevel
	}{
		{1, RiskLow}, {5, RiskLow},
		{6, RiskMedium}, {11, RiskMedium},
		{12, RiskHigh}, {19, RiskHigh},
		{20, RiskCritical}, {25, RiskCritical},
	}

	for _, tt := range tests {
		if got := m.Level(tt.score); got != tt.level {
			t.Errorf("Level(%d) = %s, want %s", tt.score, got, tt.level)
		}
	}
}

func TestRiskMatrix_Validate(t *testing.T) {
	m := DefaultMatrix5x5(uuid.New())
	if err := m.Validate(); err != nil {
		t.Fatalf("default matrix should validate: %v", err)
	}

	bad := DefaultMatrix5x5(uuid.New())
	bad.MediumRiskThreshold = bad.LowRiskThreshold
	if err := bad.Validate(); err == nil {
		t.Error("expected threshold ordering error")
	}

	bad = DefaultMatrix5x5(uuid.New())
	bad.LikelihoodLevels = 2
	if err := bad.Validate(); err == nil {
		t.Error("expected dimension error")
	}
}

func TestRisk_RecalculateAndValidate(t *testing.T) {
	company := uuid.New()
	m := DefaultMatrix5x5(company)
	m.ID = uuid.New()

	r := &Risk{
		CompanyID:          company,
		RiskMatrixID:       m.ID,
		InherentLikelihood: 4,
		InherentImpact:     4,
	}

	if err := r.Validate(m); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if err := r.Recalculate(m); err != nil {
		t.Fatalf("Recalculate() error: %v", err)
	}
	if r.InherentRiskScore != 16 {
		t.Errorf("InherentRiskScore = %d, want 16", r.InherentRiskScore)
	}
	if r.InherentRiskLevel != RiskHigh {
		t.Errorf("InherentRiskLevel = %s, want high", r.InherentRiskLevel)
	}

	r.InherentLikelihood = 7
	if err := r.Validate(m); err == nil {
		t.Error("expected likelihood out-of-range error")
	}

	other := DefaultMatrix5x5(uuid.New())
	r.InherentLikelihood = 3
	if err := r.Validate(other); err == nil {
		t.Error("expected company mismatch error")
	}
}

func TestRiskAssessment_RiskReduction(t *testing.T) {
	a := &RiskAssessment{ResidualScore: 6}

	if got := a.RiskReduction(12); got != 50 {
		t.Errorf("RiskReduction(12) = %v, want 50", got)
	}
	if got := a.RiskReduction(0); got != 0 {
		t.Errorf("RiskReduction(0) = %v, want 0 (division guard)", got)
	}

	// Residual above inherent clamps to zero, never negative.
	worse := &RiskAssessment{ResidualScore: 20}
	if got := worse.RiskReduction(10); got != 0 {
		t.Errorf("RiskReduction clamp = %v, want 0", got)
	}
}

func TestTree_InsertAndCycles(t *testing.T) {
	tree := NewTree()
	root := uuid.New()
	child := uuid.New()
	grandchild := uuid.New()

	if err := tree.Insert(root, nil); err != nil {
		t.Fatalf("Insert(root) error: %v", err)
	}
	if err := tree.Insert(child, &root); err != nil {
		t.Fatalf("Insert(child) error: %v", err)
	}
	if err := tree.Insert(grandchild, &child); err != nil {
		t.Fatalf("Insert(grandchild) error: %v", err)
	}

	if err := tree.Insert(uuid.New(), &uuid.UUID{}); err == nil {
		t.Error("expected unknown parent error")
	}

	anc := tree.Ancestors(grandchild)
	if len(anc) != 2 || anc[0] != child || anc[1] != root {
		t.Errorf("Ancestors(grandchild) = %v", anc)
	}

	desc := tree.Descendants(root)
	if len(desc) != 2 {
		t.Errorf("Descendants(root) = %v, want 2 nodes", desc)
	}

	if err := tree.Reparent(root, &grandchild); err == nil {
		t.Error("expected cycle error on reparent")
	}
	if err := tree.Reparent(grandchild, &root); err != nil {
		t.Errorf("valid reparent failed: %v", err)
	}
}

func TestBuildRequirementTree(t *testing.T) {
	framework := uuid.New()
	section := Requirement{ID: uuid.New(), FrameworkID: framework, Code: "A.5"}
	leaf := Requirement{ID: uuid.New(), FrameworkID: framework, ParentID: &section.ID, Code: "A.5.1"}

	// Child listed before parent still builds.
	tree, err := BuildRequirementTree([]Requirement{leaf, section})
	if err != nil {
		t.Fatalf("BuildRequirementTree() error: %v", err)
	}
	if tree.Len() != 2 {
		t.Errorf("tree.Len() = %d, want 2", tree.Len())
	}

	foreign := Requirement{ID: uuid.New(), FrameworkID: uuid.New(), ParentID: &section.ID}
	if _, err := BuildRequirementTree([]Requirement{section, foreign}); err == nil {
		t.Error("expected cross-framework parent error")
	}

	a := Requirement{ID: uuid.New(), FrameworkID: framework}
	b := Requirement{ID: uuid.New(), FrameworkID: framework}
	a.ParentID = &b.ID
	b.ParentID = &a.ID
	if _, err := BuildRequirementTree([]Requirement{a, b}); err == nil {
		t.Error("expected cycle error")
	}
}

func asValidationError(err error, target **ValidationError) bool {
	if err == nil {
		return false
	}
	v, ok := err.(*ValidationError)
	if ok {
		*target = v
	}
	return ok
}
