package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eeg-monitor/internal/analytics"
	"eeg-monitor/internal/api"
	"eeg-monitor/internal/config"
	"eeg-monitor/internal/data"
	"eeg-monitor/internal/metrics"
	"eeg-monitor/internal/models"
	"eeg-monitor/internal/monitor"
	"eeg-monitor/internal/simulator"
	"eeg-monitor/internal/stream"
	"eeg-monitor/internal/websocket"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const Version = "1.0.0"

type Server struct {
	monitor    *monitor.Monitor
	wsHub      *websocket.Hub
	forwarder  *stream.Forwarder
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

func newLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// seededRand returns nil for seed 0 so each component seeds from the clock
func seededRand(seed, offset int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed + offset))
}

// newMonitor builds the monitor and its session log from configuration
func newMonitor(cfg *config.Config, ticker monitor.TickerFunc, logger zerolog.Logger) (*monitor.Monitor, error) {
	sessions, err := data.NewSessionLog(cfg.Monitor.SessionBackend)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	seed := cfg.Monitor.Seed
	return monitor.New(monitor.Options{
		Source:       simulator.NewRandomSource(cfg.Simulator, seededRand(seed, 0)),
		Electrodes:   simulator.NewElectrodeMonitor(seededRand(seed, 1)),
		Spectrum:     simulator.NewSpectrumSampler(seededRand(seed, 2)),
		Store:        data.NewStore(sessions),
		Engine:       analytics.NewEngine(cfg.Thresholds),
		TickInterval: cfg.Monitor.TickInterval(),
		NewTicker:    ticker,
		TimeRange:    models.TimeRange(cfg.Monitor.TimeRange),
		DisplayName:  cfg.Monitor.DisplayName,
		Logger:       logger,
	}), nil
}

// newPublishers connects the enabled brokers. Publishers are optional, so a
// failed connection is logged and skipped.
func newPublishers(cfg *config.Config, logger zerolog.Logger) []stream.Publisher {
	var publishers []stream.Publisher

	if cfg.NATS.Enabled {
		p, err := stream.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS publisher disabled")
		} else {
			logger.Info().Str("url", cfg.NATS.URL).Msg("NATS publisher connected")
			publishers = append(publishers, p)
		}
	}

	if cfg.MQTT.Enabled {
		p, err := stream.NewMQTTPublisher(stream.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			Device:   cfg.MQTT.Device,
			QoS:      byte(cfg.MQTT.QoS),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("MQTT publisher disabled")
		} else {
			logger.Info().Str("broker", cfg.MQTT.Broker).Msg("MQTT publisher connected")
			publishers = append(publishers, p)
		}
	}

	return publishers
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	m, err := newMonitor(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	wsHub := websocket.NewHub(logger, m.State)
	met := metrics.New(wsHub.ConnectedClients, m.SessionCount)
	forwarder := stream.NewForwarder(logger, newPublishers(cfg, logger)...)

	m.Subscribe(wsHub)
	m.Subscribe(met)
	m.Subscribe(forwarder)

	apiServer := api.NewServer(cfg.API, m, wsHub, met.Handler(), Version, logger)

	return &Server{
		monitor:   m,
		wsHub:     wsHub,
		forwarder: forwarder,
		config:    cfg,
		logger:    logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      apiServer.Router(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		},
	}, nil
}

func (s *Server) Start() error {
	go s.wsHub.Run()

	s.logger.Info().
		Int("port", s.config.Server.Port).
		Str("version", Version).
		Str("session_backend", s.config.Monitor.SessionBackend).
		Int("publishers", s.forwarder.Len()).
		Msg("Starting EEG monitor server")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() error {
	s.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.monitor.Close(); err != nil {
		s.logger.Error().Err(err).Msg("close monitor")
	}
	s.wsHub.Stop()
	if err := s.forwarder.Close(); err != nil {
		s.logger.Error().Err(err).Msg("close publishers")
	}

	return s.httpServer.Shutdown(ctx)
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "eeg-monitor",
		Short:         "eeg-monitor - simulated EEG emotion recognition monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newSimulateCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Log, os.Stdout)
			if err != nil {
				return err
			}

			server, err := NewServer(cfg, logger)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				server.Stop()
				return fmt.Errorf("server failed: %w", err)
			case <-quit:
			}

			if err := server.Stop(); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			logger.Info().Msg("Server exited")
			return nil
		},
	}
}

// idleTicker never fires; simulate drives the monitor with Step
type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }

func (idleTicker) Stop() {}

func newSimulateCmd(configPath *string) *cobra.Command {
	var (
		ticks      int
		timeRange  string
		seed       int64
		asJSON     bool
		exportFmt  string
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record N ticks headless and print the clinical report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ticks < 0 {
				return errors.New("ticks must not be negative")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("seed") {
				cfg.Monitor.Seed = seed
			}

			logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			m, err := newMonitor(cfg, func(time.Duration) monitor.Ticker { return idleTicker{} }, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			m.Connect()
			if _, err := m.StartRecording(); err != nil {
				return err
			}
			for i := 0; i < ticks; i++ {
				if _, err := m.Step(); err != nil {
					return fmt.Errorf("tick %d: %w", i, err)
				}
			}
			m.StopRecording()

			report, err := m.Report(timeRange)
			if err != nil {
				return err
			}

			if exportFmt != "" {
				if err := exportSessions(m, report.TimeRange, exportFmt, exportPath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().IntVarP(&ticks, "ticks", "n", 25, "Number of ticks to record")
	cmd.Flags().StringVar(&timeRange, "range", "", "Report time range (24h, 7d, 30d, 90d)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 seeds from the clock)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().StringVar(&exportFmt, "export", "", "Also export the sessions (csv or json)")
	cmd.Flags().StringVarP(&exportPath, "output", "o", "", "Export file path (default: generated name)")
	return cmd
}

func exportSessions(m *monitor.Monitor, timeRange models.TimeRange, format, path string) error {
	records, err := m.SessionsInRange(timeRange)
	if err != nil {
		return err
	}

	body, _, filename, err := data.ExportSessions(format, records, timeRange, time.Now())
	if err != nil {
		return err
	}
	if path == "" {
		path = filename
	}
	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

func printReport(w io.Writer, r *analytics.Report) {
	fmt.Fprintf(w, "Patient: %s\n", r.Patient)
	fmt.Fprintf(w, "Report date: %s (range %s)\n", r.ReportDate, r.TimeRange)
	fmt.Fprintf(w, "Sessions: %d\n", r.TotalSessions)
	fmt.Fprintf(w, "Stress: %.1f%%  Positive: %.1f%%\n", r.StressLevel, r.PositiveLevel)
	fmt.Fprintf(w, "Sleep quality: %.1f  Cognitive load: %.1f  Relaxation: %.1f  Creativity: %.1f\n",
		r.Levels.SleepQuality, r.Levels.CognitiveLoad, r.Levels.RelaxationLevel, r.Levels.Creativity)
	fmt.Fprintf(w, "Alpha/Beta: %s  Theta/Beta: %s\n",
		analytics.FormatRatio(r.AlphaBetaRatio), analytics.FormatRatio(r.ThetaBetaRatio))

	fmt.Fprintln(w, "\nEmotions:")
	for _, e := range models.Emotions {
		fmt.Fprintf(w, "  %-9s %3d  %5.1f%%\n", e, r.EmotionStats[e], r.EmotionPercentages[e])
	}

	fmt.Fprintf(w, "\n%s\n", r.Interpretation)

	fmt.Fprintln(w, "\nRecommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  [%s] %s: %s\n", rec.Priority, rec.Category, rec.Action)
	}

	fmt.Fprintln(w, "\nRisk factors:")
	if len(r.RiskFactors) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, risk := range r.RiskFactors {
		fmt.Fprintf(w, "  [%s] %s\n", risk.Level, risk.Factor)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eeg-monitor %s\n", Version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
