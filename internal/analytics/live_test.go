package analytics

import (
	"testing"

	"eeg-monitor/internal/models"
)

func TestLive(t *testing.T) {
	samples := []models.SignalSample{
		{Timestamp: "10:00:00", Alpha: 30, Beta: 20, Theta: 25, Delta: 10},
		{Timestamp: "10:00:01", Alpha: 50, Beta: 40, Theta: 35, Delta: 30},
	}
	events := []models.EmotionEvent{
		{Emotion: models.EmotionSad, Confidence: 20},
		{Emotion: models.EmotionHappy, Confidence: 40},
		{Emotion: models.EmotionSad, Confidence: 60},
	}

	stats := Live(samples, events)

	if stats.Points != 2 || stats.LatestTime != "10:00:01" {
		t.Errorf("points/latest = %d/%q", stats.Points, stats.LatestTime)
	}
	if alpha := stats.Bands[models.BandAlpha]; alpha != (BandStats{Min: 30, Max: 50, Avg: 40}) {
		t.Errorf("alpha = %+v", alpha)
	}
	if stats.DominantEmotion != models.EmotionSad {
		t.Errorf("dominant = %q, want sad", stats.DominantEmotion)
	}
	if stats.AverageConfidence != 40 {
		t.Errorf("average confidence = %v, want 40", stats.AverageConfidence)
	}
}

func TestLive_Empty(t *testing.T) {
	stats := Live(nil, nil)
	if stats.Points != 0 || len(stats.Bands) != 0 || stats.DominantEmotion != "" {
		t.Errorf("stats = %+v, want empty", stats)
	}
}

func TestAnalyzeSpectrum(t *testing.T) {
	if a := AnalyzeSpectrum(nil); a.Asymmetry != NotAvailable || a.Markers["relaxation"] != NotAvailable {
		t.Errorf("nil spectrum analysis = %+v", a)
	}

	spectrum := &models.Spectrum{
		Bands: map[string]models.SpectralBand{
			"alpha": {Power: 40, Relative: 0.35},
			"beta":  {Power: 20, Relative: 0.2},
			"theta": {Power: 30, Relative: 0.1},
			"delta": {Power: 10, Relative: 0.3},
		},
		AsymmetryIndex: -0.5,
	}

	a := AnalyzeSpectrum(spectrum)
	if a.TotalPower != 100 {
		t.Errorf("total power = %v, want 100", a.TotalPower)
	}
	if a.AlphaBetaRatio == nil || *a.AlphaBetaRatio != 2 {
		t.Errorf("alpha/beta = %v, want 2", a.AlphaBetaRatio)
	}
	if a.ThetaBetaRatio == nil || *a.ThetaBetaRatio != 1.5 {
		t.Errorf("theta/beta = %v, want 1.5", a.ThetaBetaRatio)
	}
	if a.Asymmetry != "left dominant: logical thinking active" {
		t.Errorf("asymmetry = %q", a.Asymmetry)
	}

	want := map[string]string{
		"cognitive_load": "medium",
		"relaxation":     "deep relaxation",
		"creativity":     "low",
		"sleep_recovery": "high",
	}
	for k, v := range want {
		if a.Markers[k] != v {
			t.Errorf("marker %s = %q, want %q", k, a.Markers[k], v)
		}
	}
}

func TestAnalyzeSpectrum_ZeroBeta(t *testing.T) {
	a := AnalyzeSpectrum(&models.Spectrum{
		Bands: map[string]models.SpectralBand{
			"alpha": {Power: 40},
			"beta":  {Power: 0},
		},
	})
	if a.AlphaBetaRatio != nil {
		t.Error("ratio with zero beta power should be unavailable")
	}
	if a.Asymmetry != "balanced" {
		t.Errorf("asymmetry = %q, want balanced", a.Asymmetry)
	}
}
