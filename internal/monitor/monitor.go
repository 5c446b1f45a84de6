// Package monitor owns the connection state machine and the periodic
// generator tick. States: disconnected -> idle -> recording.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eeg-monitor/internal/analytics"
	"eeg-monitor/internal/data"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/simulator"

	"github.com/rs/zerolog"
)

const DefaultTickInterval = time.Second

var (
	// ErrNotConnected start-recording was requested while disconnected
	ErrNotConnected = errors.New("monitor: headset not connected")
	// ErrNotRecording a manual step was requested while not recording
	ErrNotRecording = errors.New("monitor: not recording")
)

// Observer receives monitor events. Callbacks run outside the monitor lock
// and must not block for long.
type Observer interface {
	OnTick(tick models.Tick)
	OnState(state models.ConnectionState)
	OnSessionsCleared()
}

// Options dependencies and settings; zero values are replaced by defaults
type Options struct {
	Source       simulator.Source
	Electrodes   *simulator.ElectrodeMonitor
	Spectrum     *simulator.SpectrumSampler
	Store        *data.Store
	Engine       *analytics.Engine
	TickInterval time.Duration
	NewTicker    TickerFunc
	TimeRange    models.TimeRange
	DisplayName  string
	Logger       zerolog.Logger
	Now          func() time.Time
}

// Monitor connection state machine over the store and the generator
type Monitor struct {
	mutex sync.Mutex

	connected bool
	recording bool

	source     simulator.Source
	electrodes *simulator.ElectrodeMonitor
	spectrum   *simulator.SpectrumSampler
	store      *data.Store
	engine     *analytics.Engine

	interval  time.Duration
	newTicker TickerFunc
	ticker    Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}

	timeRange    models.TimeRange
	displayName  string
	lastSpectrum *models.Spectrum
	ticks        uint64

	observers []Observer
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates a disconnected monitor
func New(opts Options) *Monitor {
	if opts.Source == nil {
		opts.Source = simulator.NewRandomSource(simulator.DefaultConfig(), nil)
	}
	if opts.Electrodes == nil {
		opts.Electrodes = simulator.NewElectrodeMonitor(nil)
	}
	if opts.Spectrum == nil {
		opts.Spectrum = simulator.NewSpectrumSampler(nil)
	}
	if opts.Store == nil {
		opts.Store = data.NewStore(nil)
	}
	if opts.Engine == nil {
		opts.Engine = analytics.NewEngine(analytics.DefaultThresholds())
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Monitor{
		source:     opts.Source,
		electrodes: opts.Electrodes,
		spectrum:   opts.Spectrum,
		store:      opts.Store,
		engine:     opts.Engine,
		interval:   opts.TickInterval,
		newTicker:  opts.NewTicker,
		timeRange:  models.ParseTimeRange(string(opts.TimeRange)),
		logger:     opts.Logger.With().Str("component", "monitor").Logger(),
		now:        opts.Now,
	}
	m.displayName = normalizeName(opts.DisplayName)
	return m
}

// Subscribe registers an observer
func (m *Monitor) Subscribe(o Observer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.observers = append(m.observers, o)
}

// State returns the current connection state
func (m *Monitor) State() models.ConnectionState {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return models.StateFor(m.connected, m.recording)
}

// Connect Disconnected -> Idle; no-op when already connected
func (m *Monitor) Connect() models.ConnectionState {
	m.mutex.Lock()
	changed := !m.connected
	m.connected = true
	state := models.StateFor(m.connected, m.recording)
	m.mutex.Unlock()

	if changed {
		m.logger.Info().Msg("headset connected")
		m.notifyState(state)
	}
	return state
}

// Disconnect Idle|Recording -> Disconnected; stops the tick
func (m *Monitor) Disconnect() models.ConnectionState {
	m.mutex.Lock()
	changed := m.connected
	done := m.stopTickLocked()
	m.connected = false
	m.recording = false
	state := models.StateFor(m.connected, m.recording)
	m.mutex.Unlock()

	waitDone(done)

	if changed {
		m.logger.Info().Msg("headset disconnected")
		m.notifyState(state)
	}
	return state
}

// StartRecording Idle -> Recording and starts the periodic tick.
// Returns ErrNotConnected while disconnected; no-op while recording.
func (m *Monitor) StartRecording() (models.ConnectionState, error) {
	m.mutex.Lock()
	if !m.connected {
		state := models.StateFor(m.connected, m.recording)
		m.mutex.Unlock()
		return state, ErrNotConnected
	}
	if m.recording {
		state := models.StateFor(m.connected, m.recording)
		m.mutex.Unlock()
		return state, nil
	}

	m.recording = true
	m.ticker = m.newTicker(m.interval)
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(m.ticker, m.stopCh, m.doneCh)

	state := models.StateFor(m.connected, m.recording)
	m.mutex.Unlock()

	m.logger.Info().Dur("interval", m.interval).Msg("recording started")
	m.notifyState(state)
	return state, nil
}

// StopRecording Recording -> Idle; no tick runs after it returns
func (m *Monitor) StopRecording() models.ConnectionState {
	m.mutex.Lock()
	changed := m.recording
	done := m.stopTickLocked()
	m.recording = false
	state := models.StateFor(m.connected, m.recording)
	m.mutex.Unlock()

	waitDone(done)

	if changed {
		m.logger.Info().Msg("recording stopped")
		m.notifyState(state)
	}
	return state
}

// Close releases the tick and the session log
func (m *Monitor) Close() error {
	m.Disconnect()
	return m.store.Close()
}

// Step runs one tick immediately, independent of the timer
func (m *Monitor) Step() (models.Tick, error) {
	m.mutex.Lock()
	if !m.recording {
		m.mutex.Unlock()
		return models.Tick{}, ErrNotRecording
	}
	tick, err := m.stepLocked()
	m.mutex.Unlock()

	if err != nil {
		return tick, err
	}
	m.notifyTick(tick)
	return tick, nil
}

// ClearSessions empties the session list
func (m *Monitor) ClearSessions() error {
	m.mutex.Lock()
	err := m.store.ClearSessions()
	m.mutex.Unlock()

	if err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}

	m.logger.Info().Msg("session history cleared")
	for _, o := range m.snapshotObservers() {
		o.OnSessionsCleared()
	}
	return nil
}

// SetTimeRange selects the report window; unknown values fall back to the default
func (m *Monitor) SetTimeRange(value string) models.TimeRange {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.timeRange = models.ParseTimeRange(value)
	return m.timeRange
}

// TimeRange returns the selected report window
func (m *Monitor) TimeRange() models.TimeRange {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.timeRange
}

// SetDisplayName sets the name printed on reports; blank resets to the default
func (m *Monitor) SetDisplayName(name string) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.displayName = normalizeName(name)
	return m.displayName
}

// DisplayName returns the name printed on reports
func (m *Monitor) DisplayName() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.displayName
}

// Samples returns the sample window, oldest first
func (m *Monitor) Samples() []models.SignalSample {
	return m.store.Samples()
}

// Emotions returns the emotion history, oldest first
func (m *Monitor) Emotions() []models.EmotionEvent {
	return m.store.Emotions()
}

// RecentEmotions returns the emotion history, newest first
func (m *Monitor) RecentEmotions() []models.EmotionEvent {
	return m.store.RecentEmotions()
}

// CurrentEmotion returns the latest event, or neutral at 0% before the first tick
func (m *Monitor) CurrentEmotion() models.EmotionEvent {
	if event, ok := m.store.LatestEvent(); ok {
		return event
	}
	return models.EmotionEvent{Emotion: models.EmotionNeutral}
}

// Sessions returns the whole session list, oldest first
func (m *Monitor) Sessions() ([]models.SessionRecord, error) {
	return m.store.Sessions()
}

// SessionCount returns the size of the session list
func (m *Monitor) SessionCount() int {
	return m.store.SessionCount()
}

// SessionsInRange returns the session records inside the window
func (m *Monitor) SessionsInRange(timeRange models.TimeRange) ([]models.SessionRecord, error) {
	return m.store.SessionsSince(timeRange.Cutoff(m.now()))
}

// Report builds the clinical report. An empty rangeValue uses the selected range.
func (m *Monitor) Report(rangeValue string) (*analytics.Report, error) {
	m.mutex.Lock()
	timeRange := m.timeRange
	name := m.displayName
	m.mutex.Unlock()

	if rangeValue != "" {
		timeRange = models.ParseTimeRange(rangeValue)
	}

	now := m.now()
	records, err := m.store.SessionsSince(timeRange.Cutoff(now))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return m.engine.Report(records, timeRange, name, now), nil
}

// Live returns statistics over the rolling windows
func (m *Monitor) Live() analytics.LiveStats {
	return analytics.Live(m.store.Samples(), m.store.Emotions())
}

// Spectrum returns the interpretation of the latest spectral snapshot
func (m *Monitor) Spectrum() analytics.SpectrumAnalysis {
	m.mutex.Lock()
	spectrum := m.lastSpectrum
	m.mutex.Unlock()
	return analytics.AnalyzeSpectrum(spectrum)
}

// Electrodes returns the channel qualities and recent artifacts
func (m *Monitor) Electrodes() (models.ElectrodeQuality, []models.Artifact) {
	return m.electrodes.Quality(), m.electrodes.Artifacts()
}

// Ticks returns how many ticks ran since start
func (m *Monitor) Ticks() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.ticks
}

func (m *Monitor) loop(ticker Ticker, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			tick, ok, err := m.tickIfRunning(stop)
			if !ok {
				return
			}
			if err != nil {
				m.logger.Error().Err(err).Msg("tick failed")
				continue
			}
			m.notifyTick(tick)
		}
	}
}

// tickIfRunning runs a tick unless stop was closed while waiting for the lock
func (m *Monitor) tickIfRunning(stop chan struct{}) (models.Tick, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	select {
	case <-stop:
		return models.Tick{}, false, nil
	default:
	}

	tick, err := m.stepLocked()
	return tick, true, err
}

func (m *Monitor) stepLocked() (models.Tick, error) {
	sample, event := m.source.Next()

	record, err := m.store.Append(sample, event, m.recording)
	if err != nil {
		return models.Tick{}, fmt.Errorf("append tick: %w", err)
	}

	quality, artifact := m.electrodes.Step(m.now())
	spectrum := m.spectrum.Next()
	m.lastSpectrum = &spectrum
	m.ticks++

	return models.Tick{
		Sample:   sample,
		Event:    event,
		Session:  record,
		Spectrum: &spectrum,
		Quality:  quality,
		Artifact: artifact,
	}, nil
}

// stopTickLocked cancels the running loop and returns its done channel
func (m *Monitor) stopTickLocked() chan struct{} {
	if m.stopCh == nil {
		return nil
	}

	close(m.stopCh)
	m.ticker.Stop()
	done := m.doneCh

	m.stopCh = nil
	m.doneCh = nil
	m.ticker = nil
	return done
}

func (m *Monitor) snapshotObservers() []Observer {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	return observers
}

func (m *Monitor) notifyTick(tick models.Tick) {
	for _, o := range m.snapshotObservers() {
		o.OnTick(tick)
	}
}

func (m *Monitor) notifyState(state models.ConnectionState) {
	for _, o := range m.snapshotObservers() {
		o.OnState(state)
	}
}

func waitDone(done chan struct{}) {
	if done != nil {
		<-done
	}
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return analytics.DefaultDisplayName
	}
	return name
}
