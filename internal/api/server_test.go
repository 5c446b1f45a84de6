package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eeg-monitor/internal/config"
	"eeg-monitor/internal/metrics"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/monitor"
	"eeg-monitor/internal/simulator"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, apiCfg config.APIConfig) (*httptest.Server, *monitor.Monitor) {
	t.Helper()

	m := monitor.New(monitor.Options{
		Source:       simulator.NewRandomSource(simulator.DefaultConfig(), rand.New(rand.NewSource(7))),
		TickInterval: time.Hour,
	})
	met := metrics.New(nil, m.SessionCount)
	m.Subscribe(met)

	s := NewServer(apiCfg, m, nil, met.Handler(), "test", zerolog.Nop())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return srv, m
}

func defaultAPI() config.APIConfig {
	return config.APIConfig{RateLimit: 1000, RateBurst: 1000, AllowedOrigins: []string{"*"}}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func step(t *testing.T, m *monitor.Monitor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := m.Step(); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, defaultAPI())

	resp := do(t, "GET", srv.URL+"/api/v1/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]interface{}
	decode(t, resp, &body)
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestStartRecording_NotConnected(t *testing.T) {
	srv, _ := newTestServer(t, defaultAPI())

	resp := do(t, "POST", srv.URL+"/api/v1/recording/start", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var body models.ErrorResponse
	decode(t, resp, &body)
	if body.Code != http.StatusConflict {
		t.Errorf("code = %d, want 409", body.Code)
	}
}

func TestRecordingFlow(t *testing.T) {
	srv, m := newTestServer(t, defaultAPI())

	if resp := do(t, "POST", srv.URL+"/api/v1/connect", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}

	resp := do(t, "POST", srv.URL+"/api/v1/recording/start", "")
	var state struct {
		Status    models.ConnectionStatus `json:"status"`
		Connected bool                    `json:"connected"`
		Recording bool                    `json:"recording"`
	}
	decode(t, resp, &state)
	if state.Status != models.StatusRecording || !state.Connected || !state.Recording {
		t.Fatalf("state = %+v, want recording", state)
	}

	step(t, m, 3)

	var sessions struct {
		Total    int                    `json:"total"`
		Sessions []models.SessionRecord `json:"sessions"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/sessions", ""), &sessions)
	if sessions.Total != 3 || len(sessions.Sessions) != 3 {
		t.Errorf("sessions = %d/%d, want 3", sessions.Total, len(sessions.Sessions))
	}

	var samples struct {
		Count int `json:"count"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/samples", ""), &samples)
	if samples.Count != 3 {
		t.Errorf("samples = %d, want 3", samples.Count)
	}

	var emotions struct {
		Count    int                   `json:"count"`
		Emotions []models.EmotionEvent `json:"emotions"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/emotions", ""), &emotions)
	if emotions.Count != 3 || len(emotions.Emotions) != 3 {
		t.Fatalf("emotions = %d, want 3", emotions.Count)
	}
	if emotions.Emotions[0] != m.CurrentEmotion() {
		t.Errorf("emotions should be newest first")
	}

	decode(t, do(t, "POST", srv.URL+"/api/v1/disconnect", ""), &state)
	if state.Status != models.StatusDisconnected || state.Recording {
		t.Errorf("state = %+v, want disconnected", state)
	}
}

func TestClearSessions(t *testing.T) {
	srv, m := newTestServer(t, defaultAPI())
	m.Connect()
	m.StartRecording()
	step(t, m, 10)

	if resp := do(t, "DELETE", srv.URL+"/api/v1/sessions", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if n := m.SessionCount(); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
	if n := len(m.Samples()); n != 10 {
		t.Errorf("samples = %d, want 10", n)
	}
}

func TestSettings(t *testing.T) {
	srv, _ := newTestServer(t, defaultAPI())

	tests := []struct {
		path, body, key, want string
	}{
		{"/api/v1/settings/time-range", `{"time_range":"30d"}`, "time_range", "30d"},
		{"/api/v1/settings/time-range", `{"time_range":"1y"}`, "time_range", "7d"},
		{"/api/v1/settings/display-name", `{"display_name":"Kim"}`, "display_name", "Kim"},
		{"/api/v1/settings/display-name", `{"display_name":" "}`, "display_name", "Patient"},
	}
	for _, tt := range tests {
		resp := do(t, "PUT", srv.URL+tt.path, tt.body)
		var body map[string]string
		decode(t, resp, &body)
		if body[tt.key] != tt.want {
			t.Errorf("PUT %s %s: %s = %q, want %q", tt.path, tt.body, tt.key, body[tt.key], tt.want)
		}
	}

	if resp := do(t, "PUT", srv.URL+"/api/v1/settings/time-range", "{"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d, want 400", resp.StatusCode)
	}
}

func TestReport(t *testing.T) {
	srv, m := newTestServer(t, defaultAPI())
	m.Connect()
	m.StartRecording()
	step(t, m, 4)

	var report struct {
		TimeRange      models.TimeRange `json:"time_range"`
		TotalSessions  int              `json:"total_sessions"`
		Patient        string           `json:"patient"`
		AlphaBetaRatio *float64         `json:"alpha_beta_ratio"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/report?range=24h", ""), &report)
	if report.TimeRange != models.Range24h {
		t.Errorf("time range = %q, want 24h", report.TimeRange)
	}
	if report.TotalSessions != 4 {
		t.Errorf("total sessions = %d, want 4", report.TotalSessions)
	}
	if report.Patient != "Patient" {
		t.Errorf("patient = %q, want Patient", report.Patient)
	}
	if report.AlphaBetaRatio == nil {
		t.Error("alpha/beta ratio should be available with sessions")
	}
}

func TestReport_EmptyHasNullRatios(t *testing.T) {
	srv, _ := newTestServer(t, defaultAPI())

	var report map[string]interface{}
	decode(t, do(t, "GET", srv.URL+"/api/v1/report", ""), &report)
	if report["alpha_beta_ratio"] != nil || report["theta_beta_ratio"] != nil {
		t.Errorf("ratios should be null, got %v / %v", report["alpha_beta_ratio"], report["theta_beta_ratio"])
	}
	if report["stress_level"] != 0.0 {
		t.Errorf("stress level = %v, want 0", report["stress_level"])
	}
}

func TestExport(t *testing.T) {
	srv, m := newTestServer(t, defaultAPI())
	m.Connect()
	m.StartRecording()
	step(t, m, 2)

	resp := do(t, "GET", srv.URL+"/api/v1/sessions/export/csv?range=24h", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "eeg_sessions_24h_") {
		t.Errorf("content disposition = %q", cd)
	}

	if resp := do(t, "GET", srv.URL+"/api/v1/sessions/export/xml", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("xml status = %d, want 400", resp.StatusCode)
	}
}

func TestElectrodesAndAnalytics(t *testing.T) {
	srv, m := newTestServer(t, defaultAPI())
	m.Connect()
	m.StartRecording()
	step(t, m, 1)

	var electrodes struct {
		Quality map[string]float64 `json:"quality"`
		Grades  map[string]string  `json:"grades"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/electrodes", ""), &electrodes)
	if len(electrodes.Quality) != len(simulator.Electrodes) || len(electrodes.Grades) != len(simulator.Electrodes) {
		t.Errorf("electrodes = %+v", electrodes)
	}

	var live struct {
		Points int `json:"points"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/analytics/live", ""), &live)
	if live.Points != 1 {
		t.Errorf("points = %d, want 1", live.Points)
	}

	var spectrum struct {
		Spectrum *models.Spectrum `json:"spectrum"`
	}
	decode(t, do(t, "GET", srv.URL+"/api/v1/analytics/spectrum", ""), &spectrum)
	if spectrum.Spectrum == nil {
		t.Error("spectrum should be present after a tick")
	}
}

func TestRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, config.APIConfig{RateLimit: 0.001, RateBurst: 2, AllowedOrigins: []string{"*"}})

	for i := 0; i < 2; i++ {
		if resp := do(t, "POST", srv.URL+"/api/v1/connect", ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, resp.StatusCode)
		}
	}
	if resp := do(t, "POST", srv.URL+"/api/v1/connect", ""); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}

	// reads are not limited
	if resp := do(t, "GET", srv.URL+"/api/v1/state", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("state status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, defaultAPI())

	resp := do(t, "GET", srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
