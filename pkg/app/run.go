// Package app provides the shared entry point of the edgecycle binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/edgecycle/internal/config"
	"github.com/flemzord/edgecycle/internal/core"
	"github.com/flemzord/edgecycle/internal/cron"
	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/gateway"
	"github.com/flemzord/edgecycle/internal/heartbeat"
	"github.com/flemzord/edgecycle/internal/metrics"
	"github.com/flemzord/edgecycle/internal/scheduler"
	"github.com/flemzord/edgecycle/internal/security"
	"github.com/flemzord/edgecycle/internal/store"
	"github.com/flemzord/edgecycle/internal/telemetry"
	"github.com/flemzord/edgecycle/modules/node/layeredge"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, the standard locations are searched and defaults are used
	// when nothing is found.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the config.
	DataDir string

	// Proxy overrides use_proxy from the config. Zero value means ask.
	Proxy ProxyMode

	// Prompter asks the proxy question. Nil disables asking.
	Prompter Prompter

	// Banner prints the startup banner and waits BannerDelay.
	Banner      bool
	BannerDelay time.Duration

	// Stdout receives the banner. Stderr receives logs.
	Stdout io.Writer
	Stderr io.Writer
}

// Run loads configuration and inputs, starts all modules, and blocks
// until ctx is cancelled. It returns scheduler.ErrNoAccounts when no
// wallet is configured and scheduler.ErrInsufficientProxies when proxy
// mode cannot cover every wallet.
func Run(ctx context.Context, params RunParams) error {
	stdout, stderr := params.Stdout, params.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, cfgPath, err := config.LoadDefault(params.ConfigPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)

	// Initialize credential store and redactor (security foundation).
	credStore := security.NewCredentialStore()
	redactor := security.NewRedactor()

	innerHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(security.NewRedactingHandler(innerHandler, redactor))

	if cfg.Gateway.BearerToken != "" {
		credStore.Set("gateway.bearer_token", cfg.Gateway.BearerToken)
	}
	if cfg.Heartbeat.Secret != "" {
		credStore.Set("heartbeat.secret", cfg.Heartbeat.Secret)
	}
	redactor.SyncCredentials(credStore)

	if params.Banner {
		delay := params.BannerDelay
		if delay == 0 {
			delay = bannerDelay
		}
		if err := showBanner(ctx, stdout, params.Version, delay); err != nil {
			return nil
		}
	}

	if cfgPath == "" {
		logger.Info("no configuration file found, using defaults")
	} else {
		logger.Info("configuration loaded", "path", cfgPath)
	}

	snap, err := datasource.Load(cfg.Files, logger)
	if err != nil {
		return err
	}
	registerSecrets(credStore, snap)
	redactor.SyncCredentials(credStore)

	useProxy, err := resolveUseProxy(ctx, params.Proxy, cfg, params.Prompter)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	factory, err := layeredge.NewFactory(cfg.Node, logger)
	if err != nil {
		return err
	}
	defer factory.Close()
	m := metrics.New()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	var storeModule *store.Module
	observers := scheduler.Observers{m}
	if !cfg.Store.Disabled {
		storeModule = &store.Module{Path: cfg.Store.Path}
		observers = append(observers, storeModule)
	}
	var gw *gateway.Gateway
	if cfg.Gateway.Enabled() {
		gw = gateway.New(cfg.Gateway, gateway.WithRedact(redactor.Redact))
		observers = append(observers, gw.Hub())
	}
	var notifier *heartbeat.Notifier
	if cfg.Heartbeat.Enabled() {
		notifier, err = heartbeat.New(cfg.Heartbeat, heartbeat.WithRedact(redactor.Redact))
		if err != nil {
			return err
		}
		observers = append(observers, notifier)
	}

	// The scheduler validates wallets and proxies before anything is
	// opened or started.
	sched, err := scheduler.New(scheduler.Config{
		Interval:       cfg.Schedule.IntervalDuration(),
		AccountTimeout: cfg.Schedule.AccountTimeoutDuration(),
		ReferralCode:   cfg.ReferralCode,
		UseProxy:       useProxy,
		Logger:         logger,
		Observer:       observers,
	}, factory, snap)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if storeModule != nil {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("app: create data dir: %w", err)
		}
	}

	auditLogger := security.NewAuditLogger(security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(e security.AuditEvent) {
			logger.Info("audit", "type", string(e.Type), "detail", e.Detail)
		},
	})
	rateLimiter := security.NewRateLimiter(security.RateLimitConfig{
		AuthPerMinute: cfg.Gateway.AuthPerMinute,
	})

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx.RegisterService(gateway.ServiceAudit, auditLogger)
	appCtx.RegisterService(gateway.ServiceRateLimiter, rateLimiter)
	appCtx.RegisterService(gateway.ServiceLocalState, snap.LocalState)
	appCtx.RegisterService(gateway.ServiceMetrics, m.Handler())
	appCtx.RegisterService(gateway.ServiceScheduler, sched)

	application := core.NewApp(appCtx)
	if err := registerModules(application, cfg, logger, snap, storeModule, gw, notifier, sched); err != nil {
		if storeModule != nil {
			_ = storeModule.Stop(context.Background())
		}
		return err
	}

	if err := application.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// registerModules registers modules in dependency order. The scheduler
// goes last so it starts after, and stops before, everything it feeds.
func registerModules(
	application *core.App,
	cfg *config.Config,
	logger *slog.Logger,
	snap *datasource.Snapshot,
	storeModule *store.Module,
	gw *gateway.Gateway,
	notifier *heartbeat.Notifier,
	sched *scheduler.Scheduler,
) error {
	jobs := []cron.Job{&cron.StateFlushJob{
		Path:         cfg.Files.LocalState,
		State:        snap.LocalState,
		Logger:       logger,
		ScheduleExpr: cfg.Schedule.StateFlush,
	}}

	if storeModule != nil {
		if err := application.Register(storeModule); err != nil {
			return err
		}
		if retention := cfg.Schedule.RetentionDuration(); retention > 0 {
			jobs = append(jobs, &cron.HistoryPruneJob{
				Store:        storeModule.Store(),
				Retention:    retention,
				Logger:       logger,
				ScheduleExpr: cfg.Schedule.HistoryPrune,
			})
		}
	}

	cronModule := &cron.Module{Jobs: jobs, FinalRun: []string{jobs[0].Name()}}
	if err := application.Register(cronModule); err != nil {
		return err
	}

	if gw != nil {
		if err := application.Register(gw); err != nil {
			return err
		}
	}
	if notifier != nil {
		if err := application.Register(notifier); err != nil {
			return err
		}
	}

	return application.Register(&scheduler.Module{Scheduler: sched})
}

func registerSecrets(creds *security.CredentialStore, snap *datasource.Snapshot) {
	for _, acct := range snap.Accounts {
		creds.Set("wallet."+acct.Address, acct.PrivateKey)
	}
	for i, p := range snap.Proxies {
		if pw := p.Password(); pw != "" {
			creds.Set(fmt.Sprintf("proxy.%d", i), pw)
		}
	}
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/edgecycle if set, otherwise ~/.local/share/edgecycle.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "edgecycle")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "edgecycle")
}

// IsNoAccounts reports whether err is the expected empty-wallet state.
func IsNoAccounts(err error) bool {
	return errors.Is(err, scheduler.ErrNoAccounts)
}
