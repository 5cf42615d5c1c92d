package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/pyrohost/alerion/internal/audit"
	"github.com/pyrohost/alerion/internal/config"
	"github.com/pyrohost/alerion/internal/dockeradapter"
	"github.com/pyrohost/alerion/internal/httpapi"
	"github.com/pyrohost/alerion/internal/localdata"
	"github.com/pyrohost/alerion/internal/metrics"
	"github.com/pyrohost/alerion/internal/panel"
	"github.com/pyrohost/alerion/internal/pool"
	"github.com/pyrohost/alerion/internal/statedb"
	"github.com/pyrohost/alerion/internal/telemetry"
	"github.com/pyrohost/alerion/internal/wsbus"
)

// shutdownGrace bounds how long the HTTP surface is given to drain
// in-flight requests before the process exits.
const shutdownGrace = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("alerion", pflag.ExitOnError)
	cfgFile := config.Flags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs, *cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	telemetry.InitLogger(cfg.Debug, cfg.LogFile)
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := localdata.New(cfg.DataDir)
	if err != nil {
		log.Error("failed to initialize local data directory", "error", err)
		os.Exit(1)
	}

	ledger, err := audit.Open(paths.AuditFile())
	if err != nil {
		log.Error("failed to open audit ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close()

	m := metrics.New()

	db, err := statedb.Open(paths.DBFile(), statedb.WithTransitionObserver(func(id uuid.UUID, from, to statedb.State) {
		if err := ledger.Record(id, from, to); err != nil {
			log.Error("failed to record audit transition", "server", id, "error", err)
		}
		m.RecordTransition(id.String(), string(from), string(to))
	}))
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}

	panelClient := panel.New(cfg.RemoteURL, cfg.Auth.TokenID, cfg.Auth.Token)

	docker, err := dockeradapter.NewClient()
	if err != nil {
		log.Error("failed to initialize container engine client", "error", err)
		os.Exit(1)
	}

	p := pool.New(panelClient, docker, paths, db, log)
	if err := p.FetchExisting(ctx); err != nil {
		log.Error("failed to recover existing servers from the panel", "error", err)
	}
	m.ServersManaged.Set(float64(p.Count()))

	auth := wsbus.NewAuthenticator([]byte(cfg.Auth.Token), cfg.RemoteURL)
	api := httpapi.New(p, auth, cfg.Auth.Token, m, log)

	mux := http.NewServeMux()
	mux.Handle("/", api.Handler())
	mux.Handle("/metrics", m.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("starting http surface", "addr", addr)

		var serveErr error
		if cfg.API.SSL.Enabled {
			serveErr = httpSrv.ListenAndServeTLS(cfg.API.SSL.Cert, cfg.API.SSL.Key)
		} else {
			serveErr = httpSrv.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Error("http surface stopped unexpectedly", "error", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to gracefully shut down http surface", "error", err)
	}
}
