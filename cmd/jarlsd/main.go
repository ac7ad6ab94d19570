// Command jarlsd runs the authoritative Jarls game server: HTTP REST API,
// websocket realtime transport, SQLite-backed persistence, and a Redis
// session store, wired together the way the teacher's partybox command
// wires ServePage, following its graceful-shutdown pattern.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/spf13/cobra"

	"github.com/seednode/jarlsd/internal/config"
	"github.com/seednode/jarlsd/internal/httpapi"
	"github.com/seednode/jarlsd/internal/logging"
	"github.com/seednode/jarlsd/internal/manager"
	"github.com/seednode/jarlsd/internal/realtime"
	"github.com/seednode/jarlsd/internal/session"
	"github.com/seednode/jarlsd/internal/store"
)

const requestTimeout = 10 * time.Second

func main() {
	cfg := &config.Config{}

	cmd := config.NewCommand(cfg, func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cfg)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Env, cfg.Verbose)
	if err != nil {
		return fmt.Errorf("jarlsd: build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("jarlsd: open store: %w", err)
	}
	defer db.Close()

	sess, err := session.Open(cfg.SessionStoreURL)
	if err != nil {
		return fmt.Errorf("jarlsd: open session store: %w", err)
	}
	defer sess.Close()

	mgr := manager.New(manager.Config{
		DisconnectGrace:   cfg.DisconnectGrace,
		StarvationTimeout: cfg.StarvationTimeout,
		AITimeout:         cfg.AITimeout,
	}, log, db)

	if err := mgr.Recover(ctx); err != nil {
		log.Errorw("recover active games failed", "error", err)
	}

	hub := realtime.NewHub(mgr, sess, log)
	mgr.SetBroadcaster(hub)

	api := httpapi.New(mgr, sess, log)

	mux := httprouter.New()
	api.Register(mux)
	mux.GET("/ws", hub.ServeWS)
	mux.GET("/api/games/:gameid/qr", realtime.QRHandler)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       requestTimeout,
		ReadHeaderTimeout: requestTimeout,
		WriteTimeout:      requestTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errs:
		return fmt.Errorf("jarlsd: serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
