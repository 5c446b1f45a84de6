package models

import (
	"strings"
	"time"
)

// DisplayTimeFormat is the wall-clock format used for sample and event timestamps
const DisplayTimeFormat = "15:04:05"

// Emotion is one of the seven classification labels
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionAnger    Emotion = "anger"
	EmotionFear     Emotion = "fear"
	EmotionSurprise Emotion = "surprise"
	EmotionDisgust  Emotion = "disgust"
	EmotionNeutral  Emotion = "neutral"
)

// Emotions lists every label in display order
var Emotions = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionAnger,
	EmotionFear,
	EmotionSurprise,
	EmotionDisgust,
	EmotionNeutral,
}

// StressEmotions are the labels counted towards the stress percentage
var StressEmotions = []Emotion{EmotionAnger, EmotionFear, EmotionDisgust}

// IsValid reports whether e belongs to the fixed label set
func (e Emotion) IsValid() bool {
	for _, known := range Emotions {
		if e == known {
			return true
		}
	}
	return false
}

// IsStress reports whether e is part of the stress subset
func (e Emotion) IsStress() bool {
	for _, s := range StressEmotions {
		if e == s {
			return true
		}
	}
	return false
}

// Color returns the dashboard color for the label
func (e Emotion) Color() string {
	switch e {
	case EmotionHappy:
		return "#22c55e"
	case EmotionSad:
		return "#3b82f6"
	case EmotionAnger:
		return "#ef4444"
	case EmotionFear:
		return "#8b5cf6"
	case EmotionSurprise:
		return "#f59e0b"
	case EmotionDisgust:
		return "#6b7280"
	default:
		return "#64748b"
	}
}

// Band identifies one of the four amplitude bands of a SignalSample
type Band string

const (
	BandAlpha Band = "alpha" // 8-12Hz
	BandBeta  Band = "beta"  // 12-30Hz
	BandTheta Band = "theta" // 4-8Hz
	BandDelta Band = "delta" // 0.5-4Hz
)

// Bands lists the sample bands in storage order
var Bands = []Band{BandAlpha, BandBeta, BandTheta, BandDelta}

// SignalSample one synthetic multi-band reading
type SignalSample struct {
	Timestamp  string    `json:"timestamp"`
	CapturedAt time.Time `json:"captured_at"`
	Alpha      float64   `json:"alpha"`
	Beta       float64   `json:"beta"`
	Theta      float64   `json:"theta"`
	Delta      float64   `json:"delta"`
}

// Value returns the amplitude of the given band
func (s SignalSample) Value(band Band) float64 {
	switch band {
	case BandAlpha:
		return s.Alpha
	case BandBeta:
		return s.Beta
	case BandTheta:
		return s.Theta
	case BandDelta:
		return s.Delta
	}
	return 0
}

// EmotionEvent one classification outcome
type EmotionEvent struct {
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"` // 0-100
	Time       string  `json:"time"`
}

// SessionRecord an event recorded while recording was active
type SessionRecord struct {
	ID         string       `json:"id"`
	CreatedAt  time.Time    `json:"timestamp"`
	Emotion    Emotion      `json:"emotion"`
	Confidence float64      `json:"confidence"`
	Time       string       `json:"time"`
	EEGData    SignalSample `json:"eeg_data"`
}

// Event returns the emotion event carried by the record
func (r SessionRecord) Event() EmotionEvent {
	return EmotionEvent{Emotion: r.Emotion, Confidence: r.Confidence, Time: r.Time}
}

// ConnectionStatus state of the simulated headset
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusIdle         ConnectionStatus = "idle"
	StatusRecording    ConnectionStatus = "recording"
)

// ConnectionState connected/recording flags exposed to clients
type ConnectionState struct {
	Status    ConnectionStatus `json:"status"`
	Connected bool             `json:"connected"`
	Recording bool             `json:"recording"`
}

// StateFor builds a ConnectionState from the two flags
func StateFor(connected, recording bool) ConnectionState {
	status := StatusDisconnected
	switch {
	case connected && recording:
		status = StatusRecording
	case connected:
		status = StatusIdle
	}
	return ConnectionState{Status: status, Connected: connected, Recording: recording && connected}
}

// TimeRange report window selector
type TimeRange string

const (
	Range24h TimeRange = "24h"
	Range7d  TimeRange = "7d"
	Range30d TimeRange = "30d"
	Range90d TimeRange = "90d"

	DefaultTimeRange = Range7d
)

var rangeDays = map[TimeRange]int{
	Range24h: 1,
	Range7d:  7,
	Range30d: 30,
	Range90d: 90,
}

// ParseTimeRange returns the matching range, or DefaultTimeRange when the
// value is not one of the four recognized windows
func ParseTimeRange(value string) TimeRange {
	tr := TimeRange(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := rangeDays[tr]; ok {
		return tr
	}
	return DefaultTimeRange
}

// Days returns the window length in days
func (tr TimeRange) Days() int {
	if days, ok := rangeDays[tr]; ok {
		return days
	}
	return rangeDays[DefaultTimeRange]
}

// Cutoff returns the oldest creation time included in the window
func (tr TimeRange) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(tr.Days()) * 24 * time.Hour)
}

// Tick everything produced by one generator step
type Tick struct {
	Sample   SignalSample     `json:"sample"`
	Event    EmotionEvent     `json:"event"`
	Session  *SessionRecord   `json:"session,omitempty"`
	Spectrum *Spectrum        `json:"spectrum,omitempty"`
	Quality  ElectrodeQuality `json:"quality,omitempty"`
	Artifact *Artifact        `json:"artifact,omitempty"`
}

// ElectrodeQuality signal quality per electrode channel, 0-100
type ElectrodeQuality map[string]float64

// Artifact a simulated recording artifact
type Artifact struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`
}

// SpectralBand absolute and relative power of one band
type SpectralBand struct {
	Power    float64 `json:"power"`    // µV²
	Relative float64 `json:"relative"` // 0-1
}

// Coherence inter-hemispheric coherence of one electrode pair
type Coherence struct {
	Pair      string  `json:"pair"`
	Coherence float64 `json:"coherence"`
	Frequency string  `json:"frequency"`
}

// Spectrum simulated spectral analysis snapshot
type Spectrum struct {
	Bands          map[string]SpectralBand `json:"bands"`
	AsymmetryIndex float64                 `json:"asymmetry_index"`
	Coherence      []Coherence             `json:"coherence"`
}

// WebSocketMessage envelope for every push message
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ErrorResponse standard error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
