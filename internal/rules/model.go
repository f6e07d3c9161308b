// Package rules holds the static scoring configuration: NAQ sections and their treatment
// hierarchy, the micronutrient question catalog with its label tables, and the 27 nutrient
// definitions. Rule sets are loaded once, validated, indexed and then only read.
package rules

import (
	"github.com/coaching-health-scorer/internal/domain"
)

// SectionConfig is one NAQ body-system section. Cutoffs are raw point thresholds.
type SectionConfig struct {
	Name                 string `yaml:"name" json:"name"`
	Category             string `yaml:"category" json:"category"`
	QuestionCount        int    `yaml:"question_count" json:"question_count"`
	LowPriorityCutoff    int    `yaml:"low_priority_cutoff" json:"low_priority_cutoff"`
	MediumPriorityCutoff int    `yaml:"medium_priority_cutoff" json:"medium_priority_cutoff"`
	HighPriorityCutoff   int    `yaml:"high_priority_cutoff" json:"high_priority_cutoff"`
	// Symptomatic sections count toward overall burden; lifestyle/medication sections do not.
	Symptomatic bool `yaml:"symptomatic" json:"symptomatic"`
}

// MaxPossibleScore is the highest total a section can reach on the 0-3 scale.
func (s SectionConfig) MaxPossibleScore() int {
	return s.QuestionCount * 3
}

// HierarchyEntry is one position in the treatment-priority order.
type HierarchyEntry struct {
	Category  string `yaml:"category" json:"category"`
	Rationale string `yaml:"rationale" json:"rationale"`
}

// HierarchyOverride is the upper-GI short-circuit: when the named section is high, the fixed
// recommendation is appended regardless of sort order.
type HierarchyOverride struct {
	Name           string `yaml:"name" json:"name"`
	Category       string `yaml:"category" json:"category"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

// NAQRules is the full NAQ rule set.
type NAQRules struct {
	Version   string            `yaml:"version" json:"version"`
	Sections  []SectionConfig   `yaml:"sections" json:"sections"`
	Hierarchy []HierarchyEntry  `yaml:"hierarchy" json:"hierarchy"`
	Override  HierarchyOverride `yaml:"override" json:"override"`
	Digest    string            `yaml:"-" json:"digest"`

	sectionIndex map[string]int
	rankIndex    map[string]int
	catalog      map[string]string // question code -> category
}

// LabelPoints is one label of a lookup table with its points.
type LabelPoints struct {
	Label  string  `yaml:"label" json:"label"`
	Points float64 `yaml:"points" json:"points"`
}

// SelectBinding attaches a select_one question to a label table, by exact code or code prefix.
type SelectBinding struct {
	Code   string `yaml:"code,omitempty" json:"code,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Table  string `yaml:"table" json:"table"`
}

// Question is one catalog entry of the micronutrient questionnaire.
type Question struct {
	Code    string              `yaml:"code" json:"code"`
	Type    domain.QuestionType `yaml:"type" json:"type"`
	Text    string              `yaml:"text,omitempty" json:"text,omitempty"`
	Options []string            `yaml:"options,omitempty" json:"options,omitempty"`
	// Table is the resolved label table for frequency, portion and bound select_one questions.
	Table string `yaml:"-" json:"table,omitempty"`
}

// WeightedQuestion is an intake question with its weighting factor.
type WeightedQuestion struct {
	Code   string  `yaml:"code" json:"code"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// SymptomQuestion is a symptom question with the points it is worth when absent.
type SymptomQuestion struct {
	Code   string  `yaml:"code" json:"code"`
	Points float64 `yaml:"points" json:"points"`
}

// ClusterAction is how a matched cluster rule changes the symptom score.
type ClusterAction string

const (
	CLUSTER_OVERRIDE ClusterAction = "override"
	CLUSTER_SUBTRACT ClusterAction = "subtract"
)

// ClusterRule lowers the symptom score when every condition question is answered yes.
type ClusterRule struct {
	Name       string        `yaml:"name" json:"name"`
	Conditions []string      `yaml:"conditions" json:"conditions"`
	Action     ClusterAction `yaml:"action" json:"action"`
	Magnitude  float64       `yaml:"magnitude" json:"magnitude"`
}

// RiskModifier multiplies the risk-adjusted score when its risk factor is present.
// Yes/no questions are present on "Da". select_one questions are present on any PresentWhen
// label. multi_select questions are present when Option is selected.
type RiskModifier struct {
	Code        string   `yaml:"code" json:"code"`
	Name        string   `yaml:"name" json:"name"`
	Multiplier  float64  `yaml:"multiplier" json:"multiplier"`
	PresentWhen []string `yaml:"present_when,omitempty" json:"present_when,omitempty"`
	Option      string   `yaml:"option,omitempty" json:"option,omitempty"`
}

// NutrientConfig is the scoring definition of one tracked nutrient.
type NutrientConfig struct {
	Name             string             `yaml:"name" json:"name"`
	Code             string             `yaml:"code" json:"code"`
	Intake           []WeightedQuestion `yaml:"intake" json:"intake"`
	Symptoms         []SymptomQuestion  `yaml:"symptoms" json:"symptoms"`
	ClusterRules     []ClusterRule      `yaml:"cluster_rules" json:"cluster_rules"`
	RiskModifiers    []RiskModifier     `yaml:"risk_modifiers" json:"risk_modifiers"`
	PrevalenceFactor float64            `yaml:"prevalence_factor" json:"prevalence_factor"`
}

// MicronutrientRules is the full micronutrient rule set.
type MicronutrientRules struct {
	Version        string                   `yaml:"version" json:"version"`
	LabelTables    map[string][]LabelPoints `yaml:"label_tables" json:"label_tables"`
	SelectBindings []SelectBinding          `yaml:"select_bindings" json:"select_bindings"`
	Questions      []Question               `yaml:"questions" json:"questions"`
	Nutrients      []NutrientConfig         `yaml:"nutrients" json:"nutrients"`
	Digest         string                   `yaml:"-" json:"digest"`

	catalog     map[string]*Question
	tables      map[string]map[string]float64
	nutrientIdx map[string]int
}

// RuleSet bundles both engines' rules.
type RuleSet struct {
	NAQ           *NAQRules
	Micronutrient *MicronutrientRules
}

// Label table names bound by question type rather than by binding entry.
const (
	TableFrequency = "frequency"
	TablePortion   = "portion"
)
