package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/payroll-approval-bot/internal/archive"
	"github.com/tbourn/payroll-approval-bot/internal/cache"
	"github.com/tbourn/payroll-approval-bot/internal/complaints"
	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/observability"
	"github.com/tbourn/payroll-approval-bot/internal/repo"
	"github.com/tbourn/payroll-approval-bot/internal/services"
	"github.com/tbourn/payroll-approval-bot/internal/sysutil"
)

// app is the process wiring. Every subcommand opens the base (config, logger,
// tracing, store); the ones that talk to recipients also call wire.
type app struct {
	cfg   config.Config
	rules config.Rules
	log   zerolog.Logger
	db    *gorm.DB
	store *repo.Store

	cache      *cache.Cache
	resolver   *content.Resolver
	dispatcher *notify.Dispatcher
	bus        *complaints.Bus
	mover      *archive.FolderMover
	approval   *services.Approval
	scheduler  *services.Scheduler
	announcer  *services.Announcer
	importer   *services.Importer

	closers []func(context.Context) error
}

func openApp(ctx context.Context, opts *rootOptions, command string) (*app, error) {
	if _, err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	lg := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)

	rules, err := config.LoadRules(sysutil.FirstNonEmpty(opts.rulesPath, cfg.Hosting.RulesPath))
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	a := &app{cfg: cfg, rules: rules, log: lg.With().Str("command", command).Logger()}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Service{
		Version: version,
		GroupID: cfg.VK.GroupID,
		Command: command,
	})
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.closers = append(a.closers, shutdownOTel)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}
	a.db = db
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := repo.AutoMigrate(db); err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.store = repo.NewStore(db, cfg.Scheduler.RetentionWindow)
	return a, nil
}

// wire builds the caches, the VK transport, the complaint bus and the
// services on top of the store.
func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	a.cache = cache.New(a.store, cache.Options{
		MaxEntries:    cfg.Cache.MaxEntries,
		MaxLastOpened: cfg.Cache.MaxLastOpened,
	})
	a.resolver = content.NewResolver(cfg.Cache.CSVTTL)
	renderer := content.NewRenderer(cfg.Scheduler.RetentionWindow, a.rules.Retention)

	a.dispatcher = notify.NewDispatcher(notify.NewVKClient(cfg.VK), notify.Options{
		MaxRetries: cfg.VK.MaxRetries,
		RetryDelay: cfg.VK.RetryDelay,
		RPS:        cfg.VK.SendRPS,
		MaxRunes:   cfg.VK.MaxMessageRune,
		PageSize:   cfg.VK.ListPageSize,
	})

	sinks := []complaints.Sink{complaints.LogSink{Log: a.log}}
	if cfg.Sheets.Enabled() {
		sheet, err := complaints.NewSheetSink(ctx, cfg.Sheets, cfg.VK.GroupID)
		if err != nil {
			return err
		}
		sinks = append(sinks, sheet)
	}
	a.bus = complaints.NewBus(sinks...)
	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.bus.Close() })

	a.mover = archive.NewFolderMover(cfg.Hosting)

	a.approval = services.NewApproval(services.ApprovalDeps{
		Store:      a.store,
		Cache:      a.cache,
		Rows:       a.resolver,
		Renderer:   renderer,
		Sender:     a.dispatcher,
		Complaints: a.bus,
	})
	a.scheduler = services.NewScheduler(services.SchedulerDeps{
		Store:    a.store,
		Sender:   a.dispatcher,
		Renderer: renderer,
		Mover:    a.mover,
		Cache:    a.cache,
	}, cfg.Scheduler)
	a.announcer = services.NewAnnouncer(services.AnnouncerDeps{
		Store:    a.store,
		Rows:     a.resolver,
		Renderer: renderer,
		Sender:   a.dispatcher,
		Cache:    a.cache,
		Sweeper:  a.resolver,
	}, cfg.Scheduler, cfg.Cache)
	a.importer = services.NewImporter(a.store)
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
