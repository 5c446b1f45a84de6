package monitor

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"eeg-monitor/internal/data"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/simulator"
)

type manualTicker struct {
	ch      chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (mt *manualTicker) C() <-chan time.Time { return mt.ch }

func (mt *manualTicker) Stop() { mt.once.Do(func() { close(mt.stopped) }) }

// fire reports whether a running loop received the tick
func (mt *manualTicker) fire() bool {
	select {
	case mt.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

func (mt *manualTicker) isStopped() bool {
	select {
	case <-mt.stopped:
		return true
	default:
		return false
	}
}

type recorder struct {
	ticks chan models.Tick

	mutex   sync.Mutex
	states  []models.ConnectionState
	cleared int
}

func newRecorder() *recorder {
	return &recorder{ticks: make(chan models.Tick, 128)}
}

func (r *recorder) OnTick(tick models.Tick) { r.ticks <- tick }

func (r *recorder) OnState(state models.ConnectionState) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) OnSessionsCleared() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.cleared++
}

func (r *recorder) waitTick(t *testing.T) models.Tick {
	t.Helper()
	select {
	case tick := <-r.ticks:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return models.Tick{}
	}
}

type harness struct {
	monitor *Monitor
	rec     *recorder
	tickers []*manualTicker
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{rec: newRecorder()}
	h.monitor = New(Options{
		Source:     simulator.NewRandomSource(simulator.DefaultConfig(), rand.New(rand.NewSource(1))),
		Electrodes: simulator.NewElectrodeMonitor(rand.New(rand.NewSource(2))),
		Spectrum:   simulator.NewSpectrumSampler(rand.New(rand.NewSource(3))),
		NewTicker: func(time.Duration) Ticker {
			mt := newManualTicker()
			h.tickers = append(h.tickers, mt)
			return mt
		},
	})
	h.monitor.Subscribe(h.rec)
	t.Cleanup(func() { h.monitor.Close() })
	return h
}

func (h *harness) ticker(t *testing.T) *manualTicker {
	t.Helper()
	if len(h.tickers) == 0 {
		t.Fatal("no ticker created")
	}
	return h.tickers[len(h.tickers)-1]
}

func (h *harness) record(t *testing.T) {
	t.Helper()
	h.monitor.Connect()
	if _, err := h.monitor.StartRecording(); err != nil {
		t.Fatalf("StartRecording error: %v", err)
	}
}

func sessionCount(t *testing.T, m *Monitor) int {
	t.Helper()
	sessions, err := m.Sessions()
	if err != nil {
		t.Fatalf("Sessions error: %v", err)
	}
	return len(sessions)
}

func TestMonitor_InitialState(t *testing.T) {
	h := newHarness(t)

	state := h.monitor.State()
	if state.Status != models.StatusDisconnected || state.Connected || state.Recording {
		t.Errorf("initial state = %+v, want disconnected", state)
	}
	if n := len(h.monitor.Samples()); n != 0 {
		t.Errorf("samples = %d, want 0", n)
	}
	if n := len(h.monitor.Emotions()); n != 0 {
		t.Errorf("emotions = %d, want 0", n)
	}
	if n := sessionCount(t, h.monitor); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}

	current := h.monitor.CurrentEmotion()
	if current.Emotion != models.EmotionNeutral || current.Confidence != 0 {
		t.Errorf("current emotion = %+v, want neutral at 0", current)
	}
	if h.monitor.TimeRange() != models.Range7d {
		t.Errorf("time range = %q, want 7d", h.monitor.TimeRange())
	}
}

func TestMonitor_StartWhileDisconnected(t *testing.T) {
	h := newHarness(t)

	state, err := h.monitor.StartRecording()
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("StartRecording error = %v, want ErrNotConnected", err)
	}
	if state.Recording || state.Connected {
		t.Errorf("state = %+v, want disconnected", state)
	}
	if len(h.tickers) != 0 {
		t.Errorf("created %d tickers, want 0", len(h.tickers))
	}
	if _, err := h.monitor.Step(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Step error = %v, want ErrNotRecording", err)
	}
}

func TestMonitor_ThreeTicks(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	mt := h.ticker(t)
	for i := 0; i < 3; i++ {
		if !mt.fire() {
			t.Fatalf("tick %d not received", i)
		}
		tick := h.rec.waitTick(t)
		if tick.Session == nil {
			t.Errorf("tick %d: missing session record", i)
		}
	}

	if n := len(h.monitor.Samples()); n != 3 {
		t.Errorf("samples = %d, want 3", n)
	}
	if n := len(h.monitor.Emotions()); n != 3 {
		t.Errorf("emotions = %d, want 3", n)
	}
	if n := sessionCount(t, h.monitor); n != 3 {
		t.Errorf("sessions = %d, want 3", n)
	}
	if h.monitor.Ticks() != 3 {
		t.Errorf("ticks = %d, want 3", h.monitor.Ticks())
	}
}

func TestMonitor_WindowsCapAfter25Ticks(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	var ticks []models.Tick
	for i := 0; i < 25; i++ {
		tick, err := h.monitor.Step()
		if err != nil {
			t.Fatalf("Step %d error: %v", i, err)
		}
		ticks = append(ticks, tick)
	}

	samples := h.monitor.Samples()
	if len(samples) != data.MaxSamples {
		t.Fatalf("samples = %d, want %d", len(samples), data.MaxSamples)
	}
	for i, sample := range samples {
		if sample != ticks[5+i].Sample {
			t.Errorf("sample %d = %+v, want tick %d", i, sample, 5+i)
		}
	}

	recent := h.monitor.RecentEmotions()
	if len(recent) != data.MaxEmotions {
		t.Fatalf("emotions = %d, want %d", len(recent), data.MaxEmotions)
	}
	if recent[0] != ticks[24].Event {
		t.Errorf("newest emotion = %+v, want %+v", recent[0], ticks[24].Event)
	}
	if recent[len(recent)-1] != ticks[15].Event {
		t.Errorf("oldest emotion = %+v, want %+v", recent[len(recent)-1], ticks[15].Event)
	}

	if n := sessionCount(t, h.monitor); n != 25 {
		t.Errorf("sessions = %d, want 25", n)
	}
}

func TestMonitor_ClearSessionsKeepsWindows(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	for i := 0; i < 10; i++ {
		if _, err := h.monitor.Step(); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}

	if err := h.monitor.ClearSessions(); err != nil {
		t.Fatalf("ClearSessions error: %v", err)
	}
	if n := sessionCount(t, h.monitor); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
	if n := len(h.monitor.Samples()); n != 10 {
		t.Errorf("samples = %d, want 10", n)
	}
	if n := len(h.monitor.Emotions()); n != 10 {
		t.Errorf("emotions = %d, want 10", n)
	}

	h.rec.mutex.Lock()
	cleared := h.rec.cleared
	h.rec.mutex.Unlock()
	if cleared != 1 {
		t.Errorf("cleared notifications = %d, want 1", cleared)
	}
}

func TestMonitor_DisconnectStopsRecording(t *testing.T) {
	h := newHarness(t)
	h.record(t)
	mt := h.ticker(t)

	state := h.monitor.Disconnect()
	if state.Status != models.StatusDisconnected || state.Recording {
		t.Errorf("state = %+v, want disconnected and not recording", state)
	}
	if !mt.isStopped() {
		t.Error("ticker should be stopped after disconnect")
	}
	if mt.fire() {
		t.Error("tick delivered after disconnect")
	}

	if _, err := h.monitor.StartRecording(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("StartRecording after disconnect error = %v, want ErrNotConnected", err)
	}
}

func TestMonitor_NoTicksAfterStop(t *testing.T) {
	h := newHarness(t)
	h.record(t)
	mt := h.ticker(t)

	for i := 0; i < 2; i++ {
		if !mt.fire() {
			t.Fatalf("tick %d not received", i)
		}
		h.rec.waitTick(t)
	}

	state := h.monitor.StopRecording()
	if state.Status != models.StatusIdle {
		t.Errorf("status = %q, want idle", state.Status)
	}
	if !mt.isStopped() {
		t.Error("ticker should be stopped")
	}

	if mt.fire() {
		t.Error("tick delivered after stop")
	}
	if n := len(h.monitor.Samples()); n != 2 {
		t.Errorf("samples = %d, want 2", n)
	}
	if n := sessionCount(t, h.monitor); n != 2 {
		t.Errorf("sessions = %d, want 2", n)
	}
}

func TestMonitor_StartTwiceKeepsOneLoop(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	state, err := h.monitor.StartRecording()
	if err != nil {
		t.Fatalf("second StartRecording error: %v", err)
	}
	if state.Status != models.StatusRecording {
		t.Errorf("status = %q, want recording", state.Status)
	}
	if len(h.tickers) != 1 {
		t.Errorf("created %d tickers, want 1", len(h.tickers))
	}
}

func TestMonitor_StateNotifications(t *testing.T) {
	h := newHarness(t)

	h.monitor.Connect()
	h.monitor.Connect()
	h.monitor.StartRecording()
	h.monitor.StopRecording()
	h.monitor.Disconnect()
	h.monitor.Disconnect()

	want := []models.ConnectionStatus{models.StatusIdle, models.StatusRecording, models.StatusIdle, models.StatusDisconnected}

	h.rec.mutex.Lock()
	defer h.rec.mutex.Unlock()
	if len(h.rec.states) != len(want) {
		t.Fatalf("got %d state notifications, want %d", len(h.rec.states), len(want))
	}
	for i, status := range want {
		if h.rec.states[i].Status != status {
			t.Errorf("notification %d = %q, want %q", i, h.rec.states[i].Status, status)
		}
	}
}

func TestMonitor_Settings(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		in   string
		want models.TimeRange
	}{
		{"24h", models.Range24h},
		{"30d", models.Range30d},
		{"90D", models.Range90d},
		{"1y", models.Range7d},
		{"", models.Range7d},
	}
	for _, tt := range tests {
		if got := h.monitor.SetTimeRange(tt.in); got != tt.want {
			t.Errorf("SetTimeRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := h.monitor.SetDisplayName("  Kim  "); got != "Kim" {
		t.Errorf("SetDisplayName = %q, want Kim", got)
	}
	if got := h.monitor.SetDisplayName("   "); got != "Patient" {
		t.Errorf("blank display name = %q, want Patient", got)
	}
}

func TestMonitor_Report(t *testing.T) {
	h := newHarness(t)
	h.monitor.SetDisplayName("Kim")
	h.record(t)

	for i := 0; i < 8; i++ {
		if _, err := h.monitor.Step(); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}

	report, err := h.monitor.Report("")
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if report.TotalSessions != 8 {
		t.Errorf("total sessions = %d, want 8", report.TotalSessions)
	}
	if report.Patient != "Kim" {
		t.Errorf("patient = %q, want Kim", report.Patient)
	}
	if report.TimeRange != models.Range7d {
		t.Errorf("time range = %q, want 7d", report.TimeRange)
	}

	report, err = h.monitor.Report("24h")
	if err != nil {
		t.Fatalf("Report(24h) error: %v", err)
	}
	if report.TimeRange != models.Range24h {
		t.Errorf("time range = %q, want 24h", report.TimeRange)
	}
}

func TestMonitor_SpectrumAndElectrodes(t *testing.T) {
	h := newHarness(t)

	if analysis := h.monitor.Spectrum(); analysis.Spectrum != nil {
		t.Error("spectrum should be empty before the first tick")
	}

	h.record(t)
	if _, err := h.monitor.Step(); err != nil {
		t.Fatalf("Step error: %v", err)
	}

	if analysis := h.monitor.Spectrum(); analysis.Spectrum == nil {
		t.Error("spectrum should be set after a tick")
	}
	quality, _ := h.monitor.Electrodes()
	if len(quality) != len(simulator.Electrodes) {
		t.Errorf("quality channels = %d, want %d", len(quality), len(simulator.Electrodes))
	}
}

func TestMonitor_StartStopRealTicker(t *testing.T) {
	m := New(Options{TickInterval: time.Millisecond})
	defer m.Close()
	m.Connect()

	for i := 0; i < 20; i++ {
		if _, err := m.StartRecording(); err != nil {
			t.Fatalf("StartRecording error: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
		m.StopRecording()
	}

	before := m.Ticks()
	count := m.SessionCount()
	time.Sleep(20 * time.Millisecond)
	if m.Ticks() != before {
		t.Errorf("ticks advanced after stop: %d -> %d", before, m.Ticks())
	}
	if m.SessionCount() != count {
		t.Errorf("sessions advanced after stop: %d -> %d", count, m.SessionCount())
	}
}
