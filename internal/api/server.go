// Package api exposes the monitor over HTTP under /api/v1.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"eeg-monitor/internal/config"
	"eeg-monitor/internal/data"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/monitor"
	"eeg-monitor/internal/simulator"
	"eeg-monitor/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server HTTP handlers over one monitor
type Server struct {
	monitor *monitor.Monitor
	hub     *websocket.Hub
	metrics http.Handler
	limiter *rate.Limiter
	origins []string
	version string
	started time.Time
	logger  zerolog.Logger
}

// NewServer creates the API server. hub and metrics may be nil.
func NewServer(cfg config.APIConfig, m *monitor.Monitor, hub *websocket.Hub, metrics http.Handler, version string, logger zerolog.Logger) *Server {
	return &Server{
		monitor: m,
		hub:     hub,
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		origins: cfg.AllowedOrigins,
		version: version,
		started: time.Now(),
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Router returns the route table wrapped with CORS
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Connection control
	api.HandleFunc("/state", s.getState).Methods("GET")
	api.HandleFunc("/connect", s.limit(s.connect)).Methods("POST")
	api.HandleFunc("/disconnect", s.limit(s.disconnect)).Methods("POST")

	recording := api.PathPrefix("/recording").Subrouter()
	recording.HandleFunc("/start", s.limit(s.startRecording)).Methods("POST")
	recording.HandleFunc("/stop", s.limit(s.stopRecording)).Methods("POST")

	// Rolling windows and session history
	api.HandleFunc("/samples", s.getSamples).Methods("GET")
	api.HandleFunc("/emotions", s.getEmotions).Methods("GET")

	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.HandleFunc("", s.listSessions).Methods("GET")
	sessions.HandleFunc("", s.limit(s.clearSessions)).Methods("DELETE")
	sessions.HandleFunc("/export/{format}", s.exportSessions).Methods("GET")

	// Report and analytics
	api.HandleFunc("/report", s.getReport).Methods("GET")
	api.HandleFunc("/analytics/live", s.getLive).Methods("GET")
	api.HandleFunc("/analytics/spectrum", s.getSpectrum).Methods("GET")
	api.HandleFunc("/electrodes", s.getElectrodes).Methods("GET")

	settings := api.PathPrefix("/settings").Subrouter()
	settings.HandleFunc("/time-range", s.limit(s.setTimeRange)).Methods("PUT")
	settings.HandleFunc("/display-name", s.limit(s.setDisplayName)).Methods("PUT")

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods("GET")
	}
	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.HandleWebSocket)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// limit rejects control requests above the configured rate with 429
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ConnectedClients()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"version":           s.version,
		"timestamp":         time.Now().Unix(),
		"uptime":            time.Since(s.started).Seconds(),
		"websocket_clients": clients,
	})
}

type stateResponse struct {
	models.ConnectionState
	TimeRange      models.TimeRange    `json:"time_range"`
	DisplayName    string              `json:"display_name"`
	CurrentEmotion models.EmotionEvent `json:"current_emotion"`
	SessionCount   int                 `json:"session_count"`
}

func (s *Server) stateBody(state models.ConnectionState) stateResponse {
	return stateResponse{
		ConnectionState: state,
		TimeRange:       s.monitor.TimeRange(),
		DisplayName:     s.monitor.DisplayName(),
		CurrentEmotion:  s.monitor.CurrentEmotion(),
		SessionCount:    s.monitor.SessionCount(),
	}
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stateBody(s.monitor.State()))
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stateBody(s.monitor.Connect()))
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stateBody(s.monitor.Disconnect()))
}

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request) {
	state, err := s.monitor.StartRecording()
	if errors.Is(err, monitor.ErrNotConnected) {
		s.writeError(w, http.StatusConflict, "headset not connected")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.stateBody(state))
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stateBody(s.monitor.StopRecording()))
}

func (s *Server) getSamples(w http.ResponseWriter, r *http.Request) {
	samples := s.monitor.Samples()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(samples),
		"samples": samples,
	})
}

func (s *Server) getEmotions(w http.ResponseWriter, r *http.Request) {
	emotions := s.monitor.RecentEmotions()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(emotions),
		"current":  s.monitor.CurrentEmotion(),
		"emotions": emotions,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	var (
		records []models.SessionRecord
		err     error
	)
	if value := r.URL.Query().Get("range"); value != "" {
		records, err = s.monitor.SessionsInRange(models.ParseTimeRange(value))
	} else {
		records, err = s.monitor.Sessions()
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(records),
		"sessions": records,
	})
}

func (s *Server) clearSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.ClearSessions(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) exportSessions(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]

	timeRange := s.monitor.TimeRange()
	if value := r.URL.Query().Get("range"); value != "" {
		timeRange = models.ParseTimeRange(value)
	}

	records, err := s.monitor.SessionsInRange(timeRange)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, contentType, filename, err := data.ExportSessions(format, records, timeRange, time.Now())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Write(body)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.Report(r.URL.Query().Get("range"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) getLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Live())
}

func (s *Server) getSpectrum(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.Spectrum())
}

type electrodesResponse struct {
	Quality   models.ElectrodeQuality `json:"quality"`
	Grades    map[string]string       `json:"grades"`
	Artifacts []models.Artifact       `json:"artifacts"`
}

func (s *Server) getElectrodes(w http.ResponseWriter, r *http.Request) {
	quality, artifacts := s.monitor.Electrodes()

	grades := make(map[string]string, len(quality))
	for channel, q := range quality {
		grades[channel] = simulator.QualityGrade(q)
	}

	s.writeJSON(w, http.StatusOK, electrodesResponse{
		Quality:   quality,
		Grades:    grades,
		Artifacts: artifacts,
	})
}

func (s *Server) setTimeRange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TimeRange string `json:"time_range"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]models.TimeRange{
		"time_range": s.monitor.SetTimeRange(body.TimeRange),
	})
}

func (s *Server) setDisplayName(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"display_name": s.monitor.SetDisplayName(body.DisplayName),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}
