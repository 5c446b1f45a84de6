package analytics

import "eeg-monitor/internal/models"

// Priority / risk levels
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

// Thresholds fixed cut-offs and reference constants of the rule tables.
// The defaults are placeholder values with no clinical basis.
type Thresholds struct {
	StressRecommendation     float64 `json:"stress_recommendation" yaml:"stress_recommendation"`
	PositivityRecommendation float64 `json:"positivity_recommendation" yaml:"positivity_recommendation"`
	AlphaRecommendation      float64 `json:"alpha_recommendation" yaml:"alpha_recommendation"`
	BetaRecommendation       float64 `json:"beta_recommendation" yaml:"beta_recommendation"`
	StressRisk               float64 `json:"stress_risk" yaml:"stress_risk"`
	BetaRisk                 float64 `json:"beta_risk" yaml:"beta_risk"`
	MinWeeklySessions        int     `json:"min_weekly_sessions" yaml:"min_weekly_sessions"`
	StressInterpretation     float64 `json:"stress_interpretation" yaml:"stress_interpretation"`
	PositiveInterpretation   float64 `json:"positive_interpretation" yaml:"positive_interpretation"`

	// Per-band reference amplitudes mapping an average to a 0-100 level
	SleepReference      float64 `json:"sleep_reference" yaml:"sleep_reference"`           // delta
	CognitiveReference  float64 `json:"cognitive_reference" yaml:"cognitive_reference"`   // beta
	RelaxationReference float64 `json:"relaxation_reference" yaml:"relaxation_reference"` // alpha
	CreativityReference float64 `json:"creativity_reference" yaml:"creativity_reference"` // theta
}

// DefaultThresholds returns the stock rule table values
func DefaultThresholds() Thresholds {
	return Thresholds{
		StressRecommendation:     40,
		PositivityRecommendation: 20,
		AlphaRecommendation:      25,
		BetaRecommendation:       20,
		StressRisk:               60,
		BetaRisk:                 25,
		MinWeeklySessions:        5,
		StressInterpretation:     30,
		PositiveInterpretation:   30,
		SleepReference:           30,
		CognitiveReference:       25,
		RelaxationReference:      40,
		CreativityReference:      40,
	}
}

// Recommendation one entry of the recommendation list
type Recommendation struct {
	Priority string `json:"priority"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Action   string `json:"action"`
}

// RiskFactor one entry of the risk list
type RiskFactor struct {
	Level       string `json:"level"`
	Factor      string `json:"factor"`
	Description string `json:"description"`
}

// ruleInput figures the rules are evaluated against. Unavailable averages count as 0.
type ruleInput struct {
	Stress    float64
	Positive  float64
	AvgAlpha  float64
	AvgBeta   float64
	Sessions  int
	TimeRange models.TimeRange
}

type recommendationRule struct {
	fires  func(in ruleInput, t Thresholds) bool
	result Recommendation
}

type riskRule struct {
	fires  func(in ruleInput, t Thresholds) bool
	result RiskFactor
}

var recommendationRules = []recommendationRule{
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.Stress > t.StressRecommendation },
		result: Recommendation{
			Priority: LevelHigh,
			Category: "stress management",
			Text:     "Stress level is high. Meditation, yoga and deep breathing exercises are recommended.",
			Action:   "Start a daily 15-minute meditation program",
		},
	},
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.Positive < t.PositivityRecommendation },
		result: Recommendation{
			Priority: LevelMedium,
			Category: "mood improvement",
			Text:     "Positive emotions are scarce. More social and leisure activities are recommended.",
			Action:   "Take part in social activities at least three times a week",
		},
	},
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.AvgAlpha < t.AlphaRecommendation },
		result: Recommendation{
			Priority: LevelMedium,
			Category: "relaxation training",
			Text:     "Relaxation is insufficient. Consider biofeedback training.",
			Action:   "Neurofeedback sessions targeting alpha activity",
		},
	},
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.AvgBeta > t.BetaRecommendation },
		result: Recommendation{
			Priority: LevelLow,
			Category: "cognitive load",
			Text:     "Cognitive overload detected. Enough rest and sleep are needed.",
			Action:   "Reduce workload and increase break time",
		},
	},
}

var defaultRecommendation = Recommendation{
	Priority: LevelLow,
	Category: "maintenance",
	Text:     "Current state is good. Maintain the current pattern.",
	Action:   "Continue regular monitoring",
}

var riskRules = []riskRule{
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.Stress > t.StressRisk },
		result: RiskFactor{
			Level:       LevelHigh,
			Factor:      "chronic stress",
			Description: "Sustained high stress increases the risk of cardiovascular disease and depression.",
		},
	},
	{
		fires: func(in ruleInput, t Thresholds) bool { return in.AvgBeta > t.BetaRisk },
		result: RiskFactor{
			Level:       LevelMedium,
			Factor:      "cognitive hyperactivation",
			Description: "Sustained high cognitive load can lead to burnout and attention problems.",
		},
	},
	{
		fires: func(in ruleInput, t Thresholds) bool {
			return in.Sessions < t.MinWeeklySessions && in.TimeRange == models.Range7d
		},
		result: RiskFactor{
			Level:       LevelLow,
			Factor:      "insufficient measurements",
			Description: "More frequent measurements are needed for an accurate analysis.",
		},
	},
}

// recommend evaluates the recommendation rules top to bottom
func recommend(in ruleInput, t Thresholds) []Recommendation {
	var out []Recommendation
	for _, rule := range recommendationRules {
		if rule.fires(in, t) {
			out = append(out, rule.result)
		}
	}
	if len(out) == 0 {
		out = append(out, defaultRecommendation)
	}
	return out
}

// assessRisks evaluates the risk rules top to bottom; the result may be empty
func assessRisks(in ruleInput, t Thresholds) []RiskFactor {
	out := make([]RiskFactor, 0, len(riskRules))
	for _, rule := range riskRules {
		if rule.fires(in, t) {
			out = append(out, rule.result)
		}
	}
	return out
}

// interpret summarises the emotion distribution in one sentence
func interpret(stress, positive float64, t Thresholds) string {
	switch {
	case stress > t.StressInterpretation:
		return "Stress-related emotions (anger, fear, disgust) dominate. Stress management is needed."
	case positive > t.PositiveInterpretation:
		return "Positive emotions dominate; emotional stability looks good."
	default:
		return "Neutral emotions dominate with little emotional variation."
	}
}
