package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	_ "github.com/tbourn/payroll-approval-bot/docs"
	httpapi "github.com/tbourn/payroll-approval-bot/internal/http"
	"github.com/tbourn/payroll-approval-bot/internal/http/handlers"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var drain time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the VK webhook and admin API and run the background loops",
		Long: `Serve the VK Callback API webhook and the admin API, and run the event
loop, the announcement poller and the archival scheduler until SIGINT/SIGTERM.

Examples:
  payrollbot serve
  payrollbot serve --env-file .env.prod --rules configs/rules.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, opts, "serve")
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(context.Background()); err != nil {
					a.log.Error().Err(err).Msg("shutdown")
				}
			}()
			if err := a.wire(ctx); err != nil {
				return err
			}
			return serve(ctx, a, drain)
		},
	}
	cmd.Flags().DurationVar(&drain, "drain-timeout", 15*time.Second, "time allowed for in-flight requests and queued events on shutdown")
	return cmd
}

func serve(ctx context.Context, a *app, drain time.Duration) error {
	cfg := a.cfg
	gin.SetMode(cfg.GinMode)

	inbox := services.NewInbox(a.approval, cfg.InboxSize, cfg.EventTimeout)
	callback := handlers.NewCallback(handlers.CallbackConfig{
		GroupID:      cfg.VK.GroupID,
		Confirmation: cfg.VK.Confirmation,
		Secret:       cfg.VK.Secret,
		DedupTTL:     cfg.EventDedupTTL,
	}, a.store, a.dispatcher, inbox)
	admin := handlers.NewAdmin(a.store, a.importer, a.scheduler, a.announcer)
	admin.SetCSVRoot(a.mover.OpenRoot())

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Callback: callback, Admin: admin}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	// The event loop outlives ctx so queued events drain after the signal.
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	defer cancelLoop()
	var loops sync.WaitGroup
	loops.Add(1)
	go func() {
		defer loops.Done()
		inbox.Run(loopCtx)
	}()

	ctx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var workers sync.WaitGroup
	for _, run := range []func(context.Context){a.announcer.Run, a.scheduler.Run} {
		workers.Add(1)
		go func(run func(context.Context)) {
			defer workers.Done()
			run(ctx)
		}(run)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = err
			a.log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}

	inbox.Close()
	drained := make(chan struct{})
	go func() {
		loops.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		a.log.Warn().Int("queued", inbox.Len()).Msg("drain timeout; dropping queued events")
		cancelLoop()
		<-drained
	}

	stopWorkers()
	workers.Wait()
	return runErr
}
