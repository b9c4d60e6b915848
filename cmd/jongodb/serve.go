package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jongodb/jongodb/pkg/bsontype"
	"github.com/jongodb/jongodb/pkg/config"
	"github.com/jongodb/jongodb/pkg/dispatch"
	"github.com/jongodb/jongodb/pkg/handlers"
	"github.com/jongodb/jongodb/pkg/log"
	"github.com/jongodb/jongodb/pkg/metrics"
	"github.com/jongodb/jongodb/pkg/store/memstore"
)

func serveCmd() *cobra.Command {
	var listen string
	var metricsListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command-layer server over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("metrics-listen") {
				cfg.MetricsListen = metricsListen
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address the command endpoint listens on")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address the metrics/health endpoints listen on")
	return cmd
}

func runServe(cfg config.Config) error {
	metrics.SetVersion(Version)
	d := dispatch.New(memstore.New())
	handlers.Register(d)
	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("cursor", true, "")
	metrics.RegisterComponent("dispatch", true, "")

	commandMux := http.NewServeMux()
	commandMux.HandleFunc("/command", commandHandler(d, cfg.DefaultDatabase))
	commandServer := &http.Server{Addr: cfg.Listen, Handler: commandMux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.HandleFunc("/health", metrics.HealthHandler())
	metricsMux.HandleFunc("/ready", metrics.ReadyHandler())
	metricsMux.HandleFunc("/live", metrics.LivenessHandler())
	metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: metricsMux}

	errCh := make(chan error, 2)
	go func() {
		log.WithComponent("server").Info().Str("addr", cfg.Listen).Msg("command endpoint listening")
		if err := commandServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.WithComponent("server").Info().Str("addr", cfg.MetricsListen).Msg("metrics/health endpoints listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.WithComponent("server").Info().Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = commandServer.Shutdown(ctx)
	_ = metricsServer.Shutdown(ctx)
	return nil
}

// commandHandler decodes one command document per request body, dispatches
// it, and writes back the response envelope (spec §6). This stands in for
// the real wire protocol's connection loop (spec §1 Non-goals: no wire
// compatibility, JSON over HTTP only).
func commandHandler(d *dispatch.Dispatcher, defaultDatabase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":0,"errmsg":"invalid JSON body"}`))
			return
		}

		cmd, err := bsontype.FromJSON(raw)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":0,"errmsg":"invalid command document"}`))
			return
		}
		if _, ok := cmd.Get("$db"); !ok {
			cmd.Set("$db", bsontype.String(defaultDatabase))
		}

		resp := d.Dispatch(cmd)
		body, err := bsontype.ToJSON(resp)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}
