// Package analytics derives report figures from the rolling windows and the session log.
// Every function here is pure over its inputs.
package analytics

import (
	"fmt"
	"math"
	"time"

	"eeg-monitor/internal/models"
)

// NotAvailable text rendering of a missing figure
const NotAvailable = "N/A"

// DefaultDisplayName used when no display name was set
const DefaultDisplayName = "Patient"

// BandAverage mean amplitude of one band over the filtered sessions
type BandAverage struct {
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
}

// Available reports whether at least one sample contributed
func (b BandAverage) Available() bool {
	return b.Samples > 0
}

// Levels band averages mapped onto 0-100
type Levels struct {
	SleepQuality    float64 `json:"sleep_quality"`
	CognitiveLoad   float64 `json:"cognitive_load"`
	RelaxationLevel float64 `json:"relaxation_level"`
	Creativity      float64 `json:"creativity"`
}

// Report clinical report for one time range
type Report struct {
	Patient            string                      `json:"patient"`
	ReportDate         string                      `json:"report_date"`
	GeneratedAt        time.Time                   `json:"generated_at"`
	TimeRange          models.TimeRange            `json:"time_range"`
	TotalSessions      int                         `json:"total_sessions"`
	EmotionStats       map[models.Emotion]int      `json:"emotion_stats"`
	EmotionPercentages map[models.Emotion]float64  `json:"emotion_percentages"`
	StressLevel        float64                     `json:"stress_level"`
	PositiveLevel      float64                     `json:"positive_level"`
	BandAverages       map[models.Band]BandAverage `json:"band_averages"`
	Levels             Levels                      `json:"levels"`
	AlphaBetaRatio     *float64                    `json:"alpha_beta_ratio"`
	ThetaBetaRatio     *float64                    `json:"theta_beta_ratio"`
	Interpretation     string                      `json:"interpretation"`
	Recommendations    []Recommendation            `json:"recommendations"`
	RiskFactors        []RiskFactor                `json:"risk_factors"`
}

// Engine computes reports with a fixed threshold table
type Engine struct {
	thresholds Thresholds
}

// NewEngine creates an engine
func NewEngine(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Thresholds returns the table in use
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Report builds the clinical report for the records inside timeRange
func (e *Engine) Report(records []models.SessionRecord, timeRange models.TimeRange, displayName string, now time.Time) *Report {
	timeRange = models.ParseTimeRange(string(timeRange))
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	filtered := FilterSessions(records, timeRange, now)
	total := len(filtered)
	counts := CountEmotions(filtered)
	averages := BandAverages(filtered)

	stress := StressPercentage(counts, total)
	positive := PositivityPercentage(counts, total)

	report := &Report{
		Patient:            displayName,
		ReportDate:         now.Format("2006-01-02"),
		GeneratedAt:        now,
		TimeRange:          timeRange,
		TotalSessions:      total,
		EmotionStats:       counts,
		EmotionPercentages: EmotionPercentages(counts, total),
		StressLevel:        stress,
		PositiveLevel:      positive,
		BandAverages:       averages,
		Levels: Levels{
			SleepQuality:    Level(averages[models.BandDelta].Average, e.thresholds.SleepReference),
			CognitiveLoad:   Level(averages[models.BandBeta].Average, e.thresholds.CognitiveReference),
			RelaxationLevel: Level(averages[models.BandAlpha].Average, e.thresholds.RelaxationReference),
			Creativity:      Level(averages[models.BandTheta].Average, e.thresholds.CreativityReference),
		},
		AlphaBetaRatio: BandRatio(averages[models.BandAlpha], averages[models.BandBeta]),
		ThetaBetaRatio: BandRatio(averages[models.BandTheta], averages[models.BandBeta]),
		Interpretation: interpret(stress, positive, e.thresholds),
	}

	in := ruleInput{
		Stress:    stress,
		Positive:  positive,
		AvgAlpha:  averages[models.BandAlpha].Average,
		AvgBeta:   averages[models.BandBeta].Average,
		Sessions:  total,
		TimeRange: timeRange,
	}
	report.Recommendations = recommend(in, e.thresholds)
	report.RiskFactors = assessRisks(in, e.thresholds)

	return report
}

// FilterSessions keeps the records created within the time range ending at now
func FilterSessions(records []models.SessionRecord, timeRange models.TimeRange, now time.Time) []models.SessionRecord {
	cutoff := timeRange.Cutoff(now)

	filtered := make([]models.SessionRecord, 0, len(records))
	for _, record := range records {
		if !record.CreatedAt.Before(cutoff) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// CountEmotions counts every label; labels with no records map to 0
func CountEmotions(records []models.SessionRecord) map[models.Emotion]int {
	counts := make(map[models.Emotion]int, len(models.Emotions))
	for _, e := range models.Emotions {
		counts[e] = 0
	}
	for _, record := range records {
		counts[record.Emotion]++
	}
	return counts
}

// EmotionPercentages share of each label; all 0 when total is 0
func EmotionPercentages(counts map[models.Emotion]int, total int) map[models.Emotion]float64 {
	percentages := make(map[models.Emotion]float64, len(counts))
	for emotion, count := range counts {
		percentages[emotion] = percentage(count, total)
	}
	return percentages
}

// StressPercentage share of anger, fear and disgust
func StressPercentage(counts map[models.Emotion]int, total int) float64 {
	stress := 0
	for _, e := range models.StressEmotions {
		stress += counts[e]
	}
	return percentage(stress, total)
}

// PositivityPercentage share of happy
func PositivityPercentage(counts map[models.Emotion]int, total int) float64 {
	return percentage(counts[models.EmotionHappy], total)
}

// BandAverages mean amplitude per band over the records
func BandAverages(records []models.SessionRecord) map[models.Band]BandAverage {
	averages := make(map[models.Band]BandAverage, len(models.Bands))
	for _, band := range models.Bands {
		sum := 0.0
		for _, record := range records {
			sum += record.EEGData.Value(band)
		}

		avg := BandAverage{Samples: len(records)}
		if len(records) > 0 {
			avg.Average = sum / float64(len(records))
		}
		averages[band] = avg
	}
	return averages
}

// Level maps an average onto [0,100] against a reference amplitude
func Level(average, reference float64) float64 {
	if reference <= 0 || average <= 0 {
		return 0
	}
	return math.Min(100, average/reference*100)
}

// BandRatio dividend/divisor, nil when either band has no samples or the divisor is 0
func BandRatio(dividend, divisor BandAverage) *float64 {
	if !dividend.Available() || !divisor.Available() || divisor.Average == 0 {
		return nil
	}
	ratio := dividend.Average / divisor.Average
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil
	}
	return &ratio
}

// FormatRatio renders a ratio with two decimals, or N/A
func FormatRatio(ratio *float64) string {
	if ratio == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", *ratio)
}

func percentage(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
