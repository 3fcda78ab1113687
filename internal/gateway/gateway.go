// Package gateway exposes the HTTP surface of edgecycle: health, Prometheus
// metrics, scheduler status, run history and a live event stream.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/edgecycle/internal/core"
	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/scheduler"
	"github.com/flemzord/edgecycle/internal/security"
	"github.com/flemzord/edgecycle/internal/store"
)

// Service names resolved from the AppContext at Start.
const (
	ServiceScheduler   = "scheduler"
	ServiceMetrics     = "metrics.handler"
	ServiceLocalState  = "node.local_state"
	ServiceAudit       = "security.audit"
	ServiceRateLimiter = "security.ratelimiter"
)

// StatusSource reports scheduler progress.
type StatusSource interface {
	Status() scheduler.Status
	Accounts() int
}

// HistorySource reads recorded cycles.
type HistorySource interface {
	Ping(ctx context.Context) error
	RecentCycles(ctx context.Context, n int) ([]store.CycleRecord, error)
	AccountHistory(ctx context.Context, address string, n int) ([]store.AccountRecord, error)
}

// Compile-time interface guards.
var (
	_ core.Provisioner = (*Gateway)(nil)
	_ core.Validator   = (*Gateway)(nil)
	_ core.Starter     = (*Gateway)(nil)
	_ core.Stopper     = (*Gateway)(nil)
	_ HistorySource    = (*store.Store)(nil)
	_ StatusSource     = (*scheduler.Scheduler)(nil)
)

// Gateway is the HTTP gateway module. Nothing depends on it; every
// collaborator is optional and resolved from the service registry.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	hub       *Hub
	server    *http.Server
	addr      net.Addr
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	scheduler StatusSource
	history   HistorySource
	state     *node.LocalState
	metrics   http.Handler
	audit     *security.AuditLogger
	limiter   *security.RateLimiter
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRedact filters account error strings before they are pushed to
// event subscribers.
func WithRedact(fn func(string) string) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.hub.redact = fn
		}
	}
}

// New creates a gateway for cfg. The event hub exists from construction
// so it can be handed to the scheduler as an observer before Start.
func New(cfg Config, opts ...Option) *Gateway {
	cfg.defaults()
	g := &Gateway{config: cfg, hub: NewHub(nil)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "gateway.http"}
}

// Hub returns the event hub, a scheduler.Observer.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Addr returns the bound listener address. Nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.hub.logger = ctx.Logger
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	if g.config.BearerToken == "" {
		g.logger.Warn("gateway has no bearer_token, only /health and /metrics are served")
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolve()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolve binds optional services. Missing services degrade the
// matching endpoints instead of failing startup.
func (g *Gateway) resolve() {
	if svc, ok := g.appCtx.Service(ServiceScheduler); ok {
		if s, ok := svc.(StatusSource); ok {
			g.scheduler = s
		}
	}
	if svc, ok := g.appCtx.Service(store.ServiceName); ok {
		if h, ok := svc.(HistorySource); ok {
			g.history = h
		}
	}
	if svc, ok := g.appCtx.Service(ServiceLocalState); ok {
		if st, ok := svc.(*node.LocalState); ok {
			g.state = st
		}
	}
	if svc, ok := g.appCtx.Service(ServiceMetrics); ok {
		if h, ok := svc.(http.Handler); ok {
			g.metrics = h
		}
	}
	if svc, ok := g.appCtx.Service(ServiceAudit); ok {
		if a, ok := svc.(*security.AuditLogger); ok {
			g.audit = a
		}
	}
	if svc, ok := g.appCtx.Service(ServiceRateLimiter); ok {
		if l, ok := svc.(*security.RateLimiter); ok {
			g.limiter = l
		}
	}
	if g.limiter == nil {
		g.limiter = security.NewRateLimiter(security.RateLimitConfig{AuthPerMinute: g.config.AuthPerMinute})
	}
}

// Stop implements core.Stopper. Event subscribers are disconnected before
// the server drains.
func (g *Gateway) Stop(ctx context.Context) error {
	g.hub.Close()
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
