package simulator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"eeg-monitor/internal/models"
)

// Range uniform sampling interval [Min, Max)
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Contains reports whether v lies inside the closed interval
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Config amplitude ranges of the generator
type Config struct {
	Alpha Range `json:"alpha" yaml:"alpha"`
	Beta  Range `json:"beta" yaml:"beta"`
	Theta Range `json:"theta" yaml:"theta"`
	Delta Range `json:"delta" yaml:"delta"`
}

// DefaultConfig returns the default amplitude ranges
func DefaultConfig() Config {
	return Config{
		Alpha: Range{Min: 25, Max: 75},
		Beta:  Range{Min: 15, Max: 45},
		Theta: Range{Min: 20, Max: 60},
		Delta: Range{Min: 10, Max: 45},
	}
}

// Validate checks that every band range is non-negative and ordered
func (c Config) Validate() error {
	bands := map[string]Range{
		"alpha": c.Alpha,
		"beta":  c.Beta,
		"theta": c.Theta,
		"delta": c.Delta,
	}
	for name, r := range bands {
		if r.Min < 0 {
			return fmt.Errorf("%s range: min %.2f is negative", name, r.Min)
		}
		if r.Max < r.Min {
			return fmt.Errorf("%s range: max %.2f below min %.2f", name, r.Max, r.Min)
		}
	}
	return nil
}

// Source produces one sample/event pair per call. A real acquisition
// device can replace the random implementation behind this interface.
type Source interface {
	Next() (models.SignalSample, models.EmotionEvent)
}

// RandomSource draws every value independently and uniformly
type RandomSource struct {
	config Config
	rng    *rand.Rand
	now    func() time.Time
	mutex  sync.Mutex
}

// NewRandomSource creates a generator. A nil rng is seeded from the clock.
func NewRandomSource(config Config, rng *rand.Rand) *RandomSource {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomSource{
		config: config,
		rng:    rng,
		now:    time.Now,
	}
}

// Next generates one sample and its emotion event
func (rs *RandomSource) Next() (models.SignalSample, models.EmotionEvent) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	now := rs.now()
	stamp := now.Format(models.DisplayTimeFormat)

	sample := models.SignalSample{
		Timestamp:  stamp,
		CapturedAt: now,
		Alpha:      rs.config.Alpha.sample(rs.rng),
		Beta:       rs.config.Beta.sample(rs.rng),
		Theta:      rs.config.Theta.sample(rs.rng),
		Delta:      rs.config.Delta.sample(rs.rng),
	}

	event := models.EmotionEvent{
		Emotion:    models.Emotions[rs.rng.Intn(len(models.Emotions))],
		Confidence: rs.rng.Float64() * 100,
		Time:       stamp,
	}

	return sample, event
}
