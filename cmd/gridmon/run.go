package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/logutil"
	"github.com/dm/gridmon/internal/metrics"
	"github.com/dm/gridmon/internal/service"
	"github.com/dm/gridmon/internal/tracing"
	"github.com/dm/gridmon/internal/tui"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// monitor is a started service plus the process-level resources around it.
type monitor struct {
	svc     *service.Service
	log     hclog.Logger
	closers []func()
}

func (m *monitor) close() {
	if err := m.svc.Stop(); err != nil {
		m.log.Error("stop failed", "error", err)
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		m.closers[i]()
	}
}

// startMonitor builds the logger, tracing, metrics endpoint and service
// from cfg and starts polling.
func startMonitor(ctx context.Context, cfg config.Config, logOut io.Writer) (*monitor, error) {
	log := logutil.New(logutil.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Output: logOut})
	m := &monitor{log: log}

	if cfg.Trace {
		shutdown, err := tracing.Setup(true)
		if err != nil {
			log.Warn("tracing setup failed", "error", err)
		} else {
			m.closers = append(m.closers, func() { _ = shutdown(context.Background()) })
		}
	}

	src, err := service.SourceFromConfig(cfg, log.Named("membership"))
	if err != nil {
		return nil, err
	}
	svc, err := service.New(cfg, src, log)
	if err != nil {
		return nil, err
	}
	m.svc = svc

	if cfg.MetricsAddr != "" {
		metrics.Register()
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: newMetricsMux(svc), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		m.closers = append(m.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		})
		log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	if err := svc.Start(ctx); err != nil {
		for i := len(m.closers) - 1; i >= 0; i-- {
			m.closers[i]()
		}
		return nil, err
	}
	return m, nil
}

// healthChecker is the subset of *service.Service behind /healthz.
type healthChecker interface {
	Healthy() bool
}

func newMetricsMux(h healthChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.Healthy() {
			http.Error(w, "pollers not running", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// openLogOutput returns the log destination: the --log-file if given,
// otherwise fallback.
func openLogOutput(o *options, fallback io.Writer) (io.Writer, func(), error) {
	if o.logFile == "" {
		return fallback, func() {}, nil
	}
	f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newRunCmd(o *options, lookup func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the cluster headless, exposing metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o, lookup)
			if err != nil {
				return err
			}
			out, closeLog, err := openLogOutput(o, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signalContext()
			defer cancel()
			m, err := startMonitor(ctx, cfg, out)
			if err != nil {
				return err
			}
			defer m.close()

			<-ctx.Done()
			return nil
		},
	}
}

func newWatchCmd(o *options, lookup func(string) (string, bool)) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the cluster and show a live per-node cache dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o, lookup)
			if err != nil {
				return err
			}
			// The dashboard owns the terminal.
			out, closeLog, err := openLogOutput(o, io.Discard)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signalContext()
			defer cancel()
			m, err := startMonitor(ctx, cfg, out)
			if err != nil {
				return err
			}
			defer m.close()

			app := tui.NewApp(m.svc.Store(), cfg.RefreshRate, describeTarget(cfg))
			p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			return nil
		},
	}
}
