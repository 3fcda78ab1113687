// Package layeredge implements node.Session against the LayerEdge light
// node HTTP API.
package layeredge

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/proxy"
)

// Compile-time interface guards.
var (
	_ node.Factory = (*Factory)(nil)
	_ node.Session = (*Session)(nil)
)

// Factory creates sessions sharing one request limiter and one
// transport per proxy, so connections are pooled across cycles.
type Factory struct {
	config     Config
	limiter    *rate.Limiter
	logger     *slog.Logger
	timeout    time.Duration
	retryDelay time.Duration
	now        func() time.Time

	mu         sync.Mutex
	transports map[proxy.Addr]*http.Transport
}

// NewFactory validates cfg and returns a Factory.
func NewFactory(cfg Config, logger *slog.Logger) (*Factory, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Factory{
		config:     cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:     logger,
		timeout:    cfg.parsedTimeout(),
		retryDelay: cfg.parsedRetryDelay(),
		now:        time.Now,
		transports: make(map[proxy.Addr]*http.Transport),
	}, nil
}

func (f *Factory) transportFor(addr proxy.Addr) (*http.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transports[addr]; ok {
		return t, nil
	}
	t, err := addr.Transport()
	if err != nil {
		return nil, err
	}
	f.transports[addr] = t
	return t, nil
}

// Close drops idle connections on every cached transport. Sessions
// created afterwards still work; they dial fresh connections.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for addr, t := range f.transports {
		t.CloseIdleConnections()
		delete(f.transports, addr)
	}
}

// NewSession implements node.Factory. It fails only when the credential
// is not a usable private key or the proxy cannot be used.
func (f *Factory) NewSession(p node.Params) (node.Session, error) {
	sig, err := newSigner(p.Credential)
	if err != nil {
		return nil, err
	}
	transport, err := f.transportFor(p.Proxy)
	if err != nil {
		return nil, fmt.Errorf("layeredge: proxy transport: %w", err)
	}

	state := p.LocalState
	if state == nil {
		state = node.NewLocalState()
	}

	return &Session{
		factory:  f,
		signer:   sig,
		client:   &http.Client{Timeout: f.timeout, Transport: transport},
		referral: p.ReferralCode,
		state:    state,
		tasks:    p.Tasks,
		logger:   f.logger.With("address", sig.address, "proxy", p.Proxy.Redacted()),
	}, nil
}
