package data

import (
	"time"

	"eeg-monitor/internal/models"

	"github.com/google/uuid"
)

const (
	MaxSamples  = 20
	MaxEmotions = 10
)

// Store rolling windows of samples and emotion events plus the session log
type Store struct {
	samples  *Window[models.SignalSample]
	emotions *Window[models.EmotionEvent]
	sessions SessionLog
	now      func() time.Time
	newID    func() string
}

// NewStore creates a store over the given session log (memory log when nil)
func NewStore(sessions SessionLog) *Store {
	if sessions == nil {
		sessions = NewMemoryLog()
	}
	return &Store{
		samples:  NewWindow[models.SignalSample](MaxSamples),
		emotions: NewWindow[models.EmotionEvent](MaxEmotions),
		sessions: sessions,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Append records one generator output. When recording is set a SessionRecord
// is also added to the session log and returned.
func (s *Store) Append(sample models.SignalSample, event models.EmotionEvent, recording bool) (*models.SessionRecord, error) {
	s.samples.Push(sample)
	s.emotions.Push(event)

	if !recording {
		return nil, nil
	}

	record := models.SessionRecord{
		ID:         s.newID(),
		CreatedAt:  s.now(),
		Emotion:    event.Emotion,
		Confidence: event.Confidence,
		Time:       event.Time,
		EEGData:    sample,
	}
	if err := s.sessions.Append(record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ClearSessions empties the session log; the sample and emotion windows are untouched
func (s *Store) ClearSessions() error {
	return s.sessions.Clear()
}

// Samples returns the sample window, oldest first
func (s *Store) Samples() []models.SignalSample {
	return s.samples.Items()
}

// Emotions returns the emotion history, oldest first
func (s *Store) Emotions() []models.EmotionEvent {
	return s.emotions.Items()
}

// RecentEmotions returns the emotion history, newest first
func (s *Store) RecentEmotions() []models.EmotionEvent {
	return s.emotions.Reversed()
}

// LatestEvent returns the most recent emotion event
func (s *Store) LatestEvent() (models.EmotionEvent, bool) {
	return s.emotions.Latest()
}

// LatestSample returns the most recent sample
func (s *Store) LatestSample() (models.SignalSample, bool) {
	return s.samples.Latest()
}

// Sessions returns every session record, oldest first
func (s *Store) Sessions() ([]models.SessionRecord, error) {
	return s.sessions.All()
}

// SessionsSince returns the session records created at or after cutoff
func (s *Store) SessionsSince(cutoff time.Time) ([]models.SessionRecord, error) {
	return s.sessions.Since(cutoff)
}

// SessionCount returns the size of the session log
func (s *Store) SessionCount() int {
	return s.sessions.Len()
}

// Close releases the session log
func (s *Store) Close() error {
	return s.sessions.Close()
}
