// Package heartbeat posts a signed JSON report to a webhook after every
// cycle, so an operator learns about failing wallets without watching logs.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flemzord/edgecycle/internal/core"
	"github.com/flemzord/edgecycle/internal/scheduler"
)

// Sentinel errors for lifecycle misuse.
var (
	ErrAlreadyStarted = errors.New("heartbeat: already started")
	ErrNotStarted     = errors.New("heartbeat: not started")
)

const queueSize = 8

var (
	_ core.Provisioner   = (*Notifier)(nil)
	_ core.Starter       = (*Notifier)(nil)
	_ core.Stopper       = (*Notifier)(nil)
	_ scheduler.Observer = (*Notifier)(nil)
)

// Report is the webhook payload.
type Report struct {
	Event      string    `json:"event"`
	CycleID    string    `json:"cycle_id"`
	Number     int       `json:"number"`
	Accounts   int       `json:"accounts"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Failure describes one failed account.
type Failure struct {
	Address string `json:"address"`
	Step    string `json:"step,omitempty"`
	Error   string `json:"error"`
}

// Notifier queues cycle reports and delivers them from its own goroutine.
// Reports raised during quiet hours or while the queue is full are dropped.
type Notifier struct {
	scheduler.NopObserver

	cfg        Config
	quiet      *QuietHours
	loc        *time.Location
	client     *http.Client
	retryDelay time.Duration
	redact     func(string) string
	now        func() time.Time
	logger     *slog.Logger

	queue chan Report

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithRedact filters error strings before they leave the process.
func WithRedact(fn func(string) string) Option {
	return func(n *Notifier) { n.redact = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithRetryDelay overrides the pause between delivery attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(n *Notifier) { n.retryDelay = d }
}

// New builds a Notifier. cfg must be valid.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, _ := time.LoadLocation(cfg.Timezone)
	timeout, _ := time.ParseDuration(cfg.Timeout)

	n := &Notifier{
		cfg:        cfg,
		loc:        loc,
		client:     &http.Client{Timeout: timeout},
		retryDelay: defaultRetryDelay,
		redact:     func(s string) string { return s },
		now:        time.Now,
		logger:     slog.Default(),
		queue:      make(chan Report, queueSize),
	}
	if cfg.QuietHours != "" {
		q, _ := ParseQuietHours(cfg.QuietHours)
		n.quiet = &q
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// ModuleInfo implements core.Module.
func (n *Notifier) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "heartbeat.webhook"}
}

// Provision implements core.Provisioner.
func (n *Notifier) Provision(ctx *core.AppContext) error {
	n.logger = ctx.Logger
	return nil
}

// Start implements core.Starter.
func (n *Notifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil || n.closed {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(ctx, n.done)
	return nil
}

// Stop implements core.Stopper. Queued reports are still delivered until
// ctx expires.
func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	if cancel == nil {
		n.mu.Unlock()
		return ErrNotStarted
	}
	n.cancel = nil
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

func (n *Notifier) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for report := range n.queue {
		n.deliver(ctx, report)
	}
}

func (n *Notifier) deliver(ctx context.Context, report Report) {
	body, err := json.Marshal(report)
	if err != nil {
		n.logger.Error("heartbeat encode failed", "error", err)
		return
	}
	if err := n.post(ctx, body); err != nil {
		n.logger.Warn("heartbeat delivery failed", "cycle", report.Number, "error", err)
		return
	}
	n.logger.Debug("heartbeat delivered", "cycle", report.Number)
}

// CycleFinished implements scheduler.Observer.
func (n *Notifier) CycleFinished(_ context.Context, r scheduler.CycleReport) {
	if n.cfg.OnlyFailures && r.Failed() == 0 {
		return
	}
	if n.quiet != nil && n.quiet.IsQuiet(n.now().In(n.loc)) {
		n.logger.Debug("heartbeat skipped: quiet hours", "cycle", r.Number)
		return
	}

	report := n.build(r)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- report:
	default:
		n.logger.Warn("heartbeat queue full, report dropped", "cycle", r.Number)
	}
}

func (n *Notifier) build(r scheduler.CycleReport) Report {
	report := Report{
		Event:      "cycle_finished",
		CycleID:    r.ID,
		Number:     r.Number,
		Accounts:   len(r.Results),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, res := range r.Results {
		if res.OK() {
			continue
		}
		report.Failures = append(report.Failures, Failure{
			Address: res.Address,
			Step:    string(scheduler.FailedStep(res.Err)),
			Error:   n.redact(res.Err.Error()),
		})
	}
	return report
}
