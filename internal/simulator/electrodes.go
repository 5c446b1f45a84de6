package simulator

import (
	"math/rand"
	"sync"
	"time"

	"eeg-monitor/internal/data"
	"eeg-monitor/internal/models"
)

const (
	MinQuality       = 70.0
	MaxQuality       = 100.0
	QualityStep      = 10.0 // total width of the per-step random walk
	ArtifactChance   = 0.15
	MaxArtifacts     = 5
	GoodQualityLevel = 90.0
	FairQualityLevel = 80.0
)

// Electrodes channels monitored for signal quality, with their start values
var Electrodes = []struct {
	Channel string
	Initial float64
}{
	{"fp1", 85}, {"fp2", 92}, {"f3", 88}, {"f4", 90},
	{"c3", 87}, {"c4", 89}, {"p3", 91}, {"p4", 86},
}

var (
	artifactTypes      = []string{"eye_blink", "muscle_movement", "line_noise_60hz", "electrode_pop"}
	artifactChannels   = []string{"Fp1", "Fp2", "F3", "F4"}
	artifactSeverities = []string{"low", "medium", "high"}
)

// QualityGrade classifies a channel quality value
func QualityGrade(quality float64) string {
	switch {
	case quality >= GoodQualityLevel:
		return "good"
	case quality >= FairQualityLevel:
		return "fair"
	default:
		return "poor"
	}
}

// ElectrodeMonitor simulates per-channel signal quality and artifact detection
type ElectrodeMonitor struct {
	quality   models.ElectrodeQuality
	artifacts *data.Window[models.Artifact]
	rng       *rand.Rand
	mutex     sync.Mutex
}

// NewElectrodeMonitor creates a monitor at the initial quality values
func NewElectrodeMonitor(rng *rand.Rand) *ElectrodeMonitor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	em := &ElectrodeMonitor{
		artifacts: data.NewWindow[models.Artifact](MaxArtifacts),
		rng:       rng,
	}
	em.resetLocked()
	return em
}

// Step advances every channel by one random-walk step and may detect an artifact
func (em *ElectrodeMonitor) Step(now time.Time) (models.ElectrodeQuality, *models.Artifact) {
	em.mutex.Lock()
	defer em.mutex.Unlock()

	for _, e := range Electrodes {
		q := em.quality[e.Channel] + (em.rng.Float64()-0.5)*QualityStep
		em.quality[e.Channel] = clamp(q, MinQuality, MaxQuality)
	}

	var artifact *models.Artifact
	if em.rng.Float64() < ArtifactChance {
		artifact = &models.Artifact{
			ID:        now.UnixMilli(),
			Type:      artifactTypes[em.rng.Intn(len(artifactTypes))],
			Channel:   artifactChannels[em.rng.Intn(len(artifactChannels))],
			Timestamp: now.Format(models.DisplayTimeFormat),
			Severity:  artifactSeverities[em.rng.Intn(len(artifactSeverities))],
		}
		em.artifacts.Push(*artifact)
	}

	return em.qualityLocked(), artifact
}

// Quality returns a copy of the current channel qualities
func (em *ElectrodeMonitor) Quality() models.ElectrodeQuality {
	em.mutex.Lock()
	defer em.mutex.Unlock()
	return em.qualityLocked()
}

// Artifacts returns the recent artifacts, oldest first
func (em *ElectrodeMonitor) Artifacts() []models.Artifact {
	return em.artifacts.Items()
}

// Reset restores the initial qualities and forgets artifacts
func (em *ElectrodeMonitor) Reset() {
	em.mutex.Lock()
	defer em.mutex.Unlock()
	em.resetLocked()
	em.artifacts.Clear()
}

func (em *ElectrodeMonitor) resetLocked() {
	em.quality = make(models.ElectrodeQuality, len(Electrodes))
	for _, e := range Electrodes {
		em.quality[e.Channel] = e.Initial
	}
}

func (em *ElectrodeMonitor) qualityLocked() models.ElectrodeQuality {
	out := make(models.ElectrodeQuality, len(em.quality))
	for k, v := range em.quality {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
