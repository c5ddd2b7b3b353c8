package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LevelDefinition describes one likelihood or impact level of a matrix.
type LevelDefinition struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Probability string `json:"probability,omitempty"`
	Financial   string `json:"financial,omitempty"`
}

// LevelDefinitionMap is keyed by the level number as a string ("1".."10").
type LevelDefinitionMap map[string]LevelDefinition

func (m LevelDefinitionMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *LevelDefinitionMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// ScoreTable maps "likelihood,impact" keys to scores.
type ScoreTable map[string]int

func (t ScoreTable) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

func (t *ScoreTable) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, t)
}

// RiskMatrix is a company-configured likelihood x impact scoring table with
// level thresholds. At most one matrix is active per company; activation
// demotes the others in the same transaction.
type RiskMatrix struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CompanyID   uuid.UUID `json:"company_id" db:"company_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	LikelihoodLevels int `json:"likelihood_levels" db:"likelihood_levels"`
	ImpactLevels     int `json:"impact_levels" db:"impact_levels"`

	LikelihoodDefinitions LevelDefinitionMap `json:"likelihood_definitions" db:"likelihood_definitions"`
	ImpactDefinitions     LevelDefinitionMap `json:"impact_definitions" db:"impact_definitions"`
	ScoreMatrix           ScoreTable         `json:"risk_score_matrix" db:"risk_score_matrix"`

	LowRiskThreshold    int `json:"low_risk_threshold" db:"low_risk_threshold"`
	MediumRiskThreshold int `json:"medium_risk_threshold" db:"medium_risk_threshold"`
	HighRiskThreshold   int `json:"high_risk_threshold" db:"high_risk_threshold"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	IsDeleted bool      `json:"-" db:"is_deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks dimensions and threshold ordering. Threshold ordering is a
// configuration-time invariant, not a DB constraint.
func (m *RiskMatrix) Validate() error {
	if m.LikelihoodLevels < 3 || m.LikelihoodLevels > 10 {
		return &ValidationError{Field: "likelihood_levels", Message: "must be between 3 and 10"}
	}
	if m.ImpactLevels < 3 || m.ImpactLevels > 10 {
		return &ValidationError{Field: "impact_levels", Message: "must be between 3 and 10"}
	}
	if !(m.LowRiskThreshold < m.MediumRiskThreshold && m.MediumRiskThreshold < m.HighRiskThreshold) {
		return &ValidationError{Field: "thresholds", Message: "thresholds must satisfy low < medium < high"}
	}
	return nil
}

// Score returns the risk score for a likelihood/impact pair. Pairs missing
// from the configured table fall back to likelihood * impact.
func (m *RiskMatrix) Score(likelihood, impact int) (int, error) {
	if likelihood < 1 || likelihood > m.LikelihoodLevels {
		return 0, &ValidationError{
			Field:   "likelihood",
			Message: fmt.Sprintf("must be between 1 and %d", m.LikelihoodLevels),
		}
	}
	if impact < 1 || impact > m.ImpactLevels {
		return 0, &ValidationError{
			Field:   "impact",
			Message: fmt.Sprintf("must be between 1 and %d", m.ImpactLevels),
		}
	}

	key := fmt.Sprintf("%d,%d", likelihood, impact)
	if score, ok := m.ScoreMatrix[key]; ok {
		return score, nil
	}
	return likelihood * impact, nil
}

// Level maps a score to its risk level using the configured thresholds.
func (m *RiskMatrix) Level(score int) RiskLevel {
	switch {
	case score < m.LowRiskThreshold:
		return RiskLow
	case score < m.MediumRiskThreshold:
		return RiskMedium
	case score < m.HighRiskThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// DefaultMatrix5x5 builds the standard 5x5 seed matrix (scores = likelihood
// x impact, thresholds 6/12/20). It is a convenience seed, not otherwise
// special.
func DefaultMatrix5x5(companyID uuid.UUID) *RiskMatrix {
	likelihood := LevelDefinitionMap{
		"1": {Label: "Rare", Description: "May occur only in exceptional circumstances", Probability: "< 10%"},
		"2": {Label: "Unlikely", Description: "Could occur at some time", Probability: "10-30%"},
		"3": {Label: "Possible", Description: "Might occur at some time", Probability: "30-50%"},
		"4": {Label: "Likely", Description: "Will probably occur", Probability: "50-75%"},
		"5": {Label: "Almost Certain", Description: "Expected to occur in most circumstances", Probability: "> 75%"},
	}
	impact := LevelDefinitionMap{
		"1": {Label: "Negligible", Description: "Minimal impact", Financial: "< $10,000"},
		"2": {Label: "Minor", Description: "Small impact", Financial: "$10,000 - $50,000"},
		"3": {Label: "Moderate", Description: "Noticeable impact", Financial: "$50,000 - $250,000"},
		"4": {Label: "Major", Description: "Significant impact", Financial: "$250,000 - $1,000,000"},
		"5": {Label: "Catastrophic", Description: "Severe impact", Financial: "> $1,000,000"},
	}

	scores := make(ScoreTable, 25)
	for l := 1; l <= 5; l++ {
		for i := 1; i <= 5; i++ {
			scores[fmt.Sprintf("%d,%d", l, i)] = l * i
		}
	}

	return &RiskMatrix{
		CompanyID:             companyID,
		Name:                  "5x5 Standard Risk Matrix",
		Description:           "Standard 5x5 likelihood-impact risk matrix",
		LikelihoodLevels:      5,
		ImpactLevels:          5,
		LikelihoodDefinitions: likelihood,
		ImpactDefinitions:     impact,
		ScoreMatrix:           scores,
		LowRiskThreshold:      6,
		MediumRiskThreshold:   12,
		HighRiskThreshold:     20,
		IsActive:              true,
	}
}
