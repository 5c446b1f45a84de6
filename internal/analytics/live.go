package analytics

import (
	"sort"

	"eeg-monitor/internal/models"
)

// BandStats min/max/avg of one band over the sample window
type BandStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// LiveStats statistics of the rolling windows
type LiveStats struct {
	Points            int                       `json:"points"`
	LatestTime        string                    `json:"latest_time,omitempty"`
	Bands             map[models.Band]BandStats `json:"bands"`
	EmotionCounts     map[models.Emotion]int    `json:"emotion_counts"`
	DominantEmotion   models.Emotion            `json:"dominant_emotion,omitempty"`
	AverageConfidence float64                   `json:"average_confidence"`
}

// Live computes band statistics over the sample window and a label summary
// over the emotion history
func Live(samples []models.SignalSample, events []models.EmotionEvent) LiveStats {
	stats := LiveStats{
		Points:        len(samples),
		Bands:         make(map[models.Band]BandStats, len(models.Bands)),
		EmotionCounts: make(map[models.Emotion]int),
	}

	if len(samples) > 0 {
		stats.LatestTime = samples[len(samples)-1].Timestamp

		for _, band := range models.Bands {
			values := make([]float64, len(samples))
			for i, sample := range samples {
				values[i] = sample.Value(band)
			}

			sort.Float64s(values)
			sum := 0.0
			for _, v := range values {
				sum += v
			}

			stats.Bands[band] = BandStats{
				Min: values[0],
				Max: values[len(values)-1],
				Avg: sum / float64(len(values)),
			}
		}
	}

	if len(events) > 0 {
		confidence := 0.0
		for _, event := range events {
			stats.EmotionCounts[event.Emotion]++
			confidence += event.Confidence
		}
		stats.AverageConfidence = confidence / float64(len(events))

		// Ties resolve to the label listed first in models.Emotions
		best := 0
		for _, e := range models.Emotions {
			if stats.EmotionCounts[e] > best {
				best = stats.EmotionCounts[e]
				stats.DominantEmotion = e
			}
		}
	}

	return stats
}

// SpectrumAnalysis interpreted spectral snapshot
type SpectrumAnalysis struct {
	Spectrum       *models.Spectrum  `json:"spectrum"`
	TotalPower     float64           `json:"total_power"`
	AlphaBetaRatio *float64          `json:"alpha_beta_ratio"`
	ThetaBetaRatio *float64          `json:"theta_beta_ratio"`
	Asymmetry      string            `json:"asymmetry"`
	Markers        map[string]string `json:"markers"`
}

const asymmetryThreshold = 0.3

// AnalyzeSpectrum interprets a snapshot; a nil snapshot yields N/A markers
func AnalyzeSpectrum(spectrum *models.Spectrum) SpectrumAnalysis {
	analysis := SpectrumAnalysis{
		Spectrum:  spectrum,
		Asymmetry: NotAvailable,
		Markers: map[string]string{
			"cognitive_load": NotAvailable,
			"relaxation":     NotAvailable,
			"creativity":     NotAvailable,
			"sleep_recovery": NotAvailable,
		},
	}
	if spectrum == nil {
		return analysis
	}

	for _, band := range spectrum.Bands {
		analysis.TotalPower += band.Power
	}

	alpha, hasAlpha := spectrum.Bands["alpha"]
	beta, hasBeta := spectrum.Bands["beta"]
	theta, hasTheta := spectrum.Bands["theta"]
	delta, hasDelta := spectrum.Bands["delta"]

	if hasBeta && beta.Power != 0 {
		if hasAlpha {
			r := alpha.Power / beta.Power
			analysis.AlphaBetaRatio = &r
		}
		if hasTheta {
			r := theta.Power / beta.Power
			analysis.ThetaBetaRatio = &r
		}
	}

	switch {
	case spectrum.AsymmetryIndex > asymmetryThreshold:
		analysis.Asymmetry = "right dominant: creative thinking active"
	case spectrum.AsymmetryIndex < -asymmetryThreshold:
		analysis.Asymmetry = "left dominant: logical thinking active"
	default:
		analysis.Asymmetry = "balanced"
	}

	if hasBeta {
		analysis.Markers["cognitive_load"] = grade(beta.Relative, 0.25, 0.15, "high", "medium", "low")
	}
	if hasAlpha {
		analysis.Markers["relaxation"] = grade(alpha.Relative, 0.3, 0.2, "deep relaxation", "relaxed", "tense")
	}
	if hasTheta {
		analysis.Markers["creativity"] = grade(theta.Relative, 0.2, 0.15, "active", "moderate", "low")
	}
	if hasDelta {
		analysis.Markers["sleep_recovery"] = grade(delta.Relative, 0.25, 0.15, "high", "moderate", "low")
	}

	return analysis
}

func grade(v, high, mid float64, highLabel, midLabel, lowLabel string) string {
	switch {
	case v > high:
		return highLabel
	case v > mid:
		return midLabel
	default:
		return lowLabel
	}
}
