// Package stream fans generator ticks out to message brokers.
package stream

import (
	"encoding/json"

	"eeg-monitor/internal/models"

	"github.com/rs/zerolog"
)

// Publisher sends one encoded tick to a broker
type Publisher interface {
	Name() string
	Publish(payload []byte) error
	Close() error
}

// Forwarder publishes every tick to all publishers. A failing publisher is
// logged and never blocks the others.
type Forwarder struct {
	publishers []Publisher
	logger     zerolog.Logger
}

// NewForwarder creates a forwarder over the given publishers
func NewForwarder(logger zerolog.Logger, publishers ...Publisher) *Forwarder {
	return &Forwarder{
		publishers: publishers,
		logger:     logger.With().Str("component", "stream").Logger(),
	}
}

// Len returns the number of publishers
func (f *Forwarder) Len() int {
	return len(f.publishers)
}

// OnTick encodes the tick once and publishes it everywhere
func (f *Forwarder) OnTick(tick models.Tick) {
	if len(f.publishers) == 0 {
		return
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		f.logger.Error().Err(err).Msg("marshal tick")
		return
	}

	for _, p := range f.publishers {
		if err := p.Publish(payload); err != nil {
			f.logger.Warn().Err(err).Str("publisher", p.Name()).Msg("publish tick failed")
		}
	}
}

func (f *Forwarder) OnState(models.ConnectionState) {}

func (f *Forwarder) OnSessionsCleared() {}

// Close closes every publisher and returns the first error
func (f *Forwarder) Close() error {
	var first error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			f.logger.Warn().Err(err).Str("publisher", p.Name()).Msg("close publisher")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
