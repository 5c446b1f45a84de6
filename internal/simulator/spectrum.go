package simulator

import (
	"math/rand"
	"sync"
	"time"

	"eeg-monitor/internal/models"
)

// spectralProfile ranges used for one band of the spectral snapshot
type spectralProfile struct {
	Band     string
	Power    Range
	Relative Range
}

var spectralProfiles = []spectralProfile{
	{"delta", Range{10, 40}, Range{0.10, 0.40}},
	{"theta", Range{15, 40}, Range{0.15, 0.40}},
	{"alpha", Range{20, 55}, Range{0.25, 0.60}},
	{"beta", Range{10, 30}, Range{0.15, 0.35}},
	{"gamma", Range{5, 20}, Range{0.05, 0.20}},
}

var coherencePairs = []models.Coherence{
	{Pair: "F3-F4", Frequency: "8-12Hz"},
	{Pair: "C3-C4", Frequency: "12-30Hz"},
	{Pair: "P3-P4", Frequency: "8-12Hz"},
	{Pair: "Fp1-Fp2", Frequency: "4-8Hz"},
}

// SpectrumSampler produces simulated spectral analysis snapshots
type SpectrumSampler struct {
	rng   *rand.Rand
	mutex sync.Mutex
}

// NewSpectrumSampler creates a sampler. A nil rng is seeded from the clock.
func NewSpectrumSampler(rng *rand.Rand) *SpectrumSampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SpectrumSampler{rng: rng}
}

// Next draws a new snapshot
func (ss *SpectrumSampler) Next() models.Spectrum {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	bands := make(map[string]models.SpectralBand, len(spectralProfiles))
	for _, p := range spectralProfiles {
		bands[p.Band] = models.SpectralBand{
			Power:    p.Power.sample(ss.rng),
			Relative: p.Relative.sample(ss.rng),
		}
	}

	coherence := make([]models.Coherence, len(coherencePairs))
	for i, pair := range coherencePairs {
		pair.Coherence = 0.2 + ss.rng.Float64()*0.8
		coherence[i] = pair
	}

	return models.Spectrum{
		Bands:          bands,
		AsymmetryIndex: (ss.rng.Float64() - 0.5) * 2,
		Coherence:      coherence,
	}
}
