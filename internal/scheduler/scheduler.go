// Package scheduler drives every account through the node lifecycle
// pipeline, one account at a time, and repeats the pass forever with a
// fixed cooldown between cycles.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/proxy"
)

const tracerName = "github.com/flemzord/edgecycle/internal/scheduler"

// DefaultInterval is the cooldown between two cycles.
const DefaultInterval = 20 * time.Hour

// Config holds scheduler configuration.
type Config struct {
	Interval       time.Duration // default 20h
	AccountTimeout time.Duration // 0 = no per-account deadline
	ReferralCode   string
	UseProxy       bool
	Logger         *slog.Logger
	Observer       Observer
	Now            func() time.Time
	// Sleep suspends between cycles. It returns ctx.Err() when cancelled.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.AccountTimeout < 0 {
		c.AccountTimeout = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Cycles      int
	InCycle     bool
	NextCycleAt time.Time
	Last        *CycleReport
}

// Scheduler runs the account processing cycles.
type Scheduler struct {
	cfg       Config
	factory   node.Factory
	accounts  []datasource.Account
	proxies   []proxy.Addr
	state     *node.LocalState
	tasks     []node.Task
	tracer    trace.Tracer
	observers []Observer

	mu      sync.Mutex
	cycles  int
	inCycle bool
	next    time.Time
	last    *CycleReport
	cancel  context.CancelFunc
	done    chan struct{}
}

// New validates the inputs and returns a Scheduler. It returns
// ErrInsufficientProxies or ErrNoAccounts when the run cannot start.
func New(cfg Config, factory node.Factory, snap *datasource.Snapshot) (*Scheduler, error) {
	if factory == nil {
		return nil, errors.New("scheduler: nil session factory")
	}
	if snap == nil {
		return nil, errors.New("scheduler: nil snapshot")
	}
	cfg = cfg.withDefaults()

	if err := Validate(cfg.Logger, cfg.UseProxy, snap.Accounts, snap.Proxies); err != nil {
		return nil, err
	}

	state := snap.LocalState
	if state == nil {
		state = node.NewLocalState()
	}

	return &Scheduler{
		cfg:       cfg,
		factory:   factory,
		accounts:  snap.Accounts,
		proxies:   snap.Proxies,
		state:     state,
		tasks:     snap.Tasks,
		tracer:    otel.Tracer(tracerName),
		observers: flatten(cfg.Observer),
	}, nil
}

// Run processes cycles until ctx is cancelled. Errors from individual
// accounts never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cfg.Logger.Info("starting run with all wallets", "wallets", len(s.accounts))

	for {
		report := s.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		next := s.cfg.Now().Add(s.cfg.Interval)
		s.mu.Lock()
		s.next = next
		s.mu.Unlock()

		s.cfg.Logger.Warn("all wallets processed, waiting before next run",
			"cycle", report.Number,
			"succeeded", report.Succeeded(),
			"failed", report.Failed(),
			"duration", report.Duration().Round(time.Millisecond),
			"wait", s.cfg.Interval,
			"next_run", next.Format(time.RFC3339),
		)

		if err := s.cfg.Sleep(ctx, s.cfg.Interval); err != nil {
			return nil
		}
	}
}

// RunCycle processes every account once, in list order.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	s.mu.Lock()
	s.cycles++
	info := CycleInfo{
		ID:        uuid.NewString(),
		Number:    s.cycles,
		StartedAt: s.cfg.Now(),
		Accounts:  len(s.accounts),
	}
	s.inCycle = true
	s.next = time.Time{}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "scheduler.cycle", trace.WithAttributes(
		attribute.String("cycle.id", info.ID),
		attribute.Int("cycle.number", info.Number),
		attribute.Int("cycle.accounts", info.Accounts),
	))
	defer span.End()

	s.notify(func(o Observer) { o.CycleStarted(ctx, info) })

	report := CycleReport{
		ID:        info.ID,
		Number:    info.Number,
		StartedAt: info.StartedAt,
		Results:   make([]AccountResult, 0, len(s.accounts)),
	}
	for i, acct := range s.accounts {
		if ctx.Err() != nil {
			s.cfg.Logger.Info("cycle interrupted", "cycle", info.Number, "remaining", len(s.accounts)-i)
			break
		}
		res := s.processAccount(ctx, i, acct)
		report.Results = append(report.Results, res)
		s.notify(func(o Observer) { o.AccountFinished(ctx, info, res) })
	}
	report.FinishedAt = s.cfg.Now()

	span.SetAttributes(
		attribute.Int("cycle.succeeded", report.Succeeded()),
		attribute.Int("cycle.failed", report.Failed()),
	)

	s.mu.Lock()
	s.inCycle = false
	s.last = &report
	s.mu.Unlock()

	s.notify(func(o Observer) { o.CycleFinished(ctx, report) })
	return report
}

// processAccount is the fault isolation boundary: any error or panic
// from the session is recorded in the result and never escapes.
func (s *Scheduler) processAccount(ctx context.Context, i int, acct datasource.Account) (res AccountResult) {
	p := proxy.Assign(i, s.proxies, s.cfg.UseProxy)
	res = AccountResult{
		Index:     i,
		Address:   acct.Address,
		Proxy:     p,
		StartedAt: s.cfg.Now(),
	}
	logger := s.cfg.Logger.With("wallet", acct.Address, "proxy", p.Redacted())

	ctx, span := s.tracer.Start(ctx, "scheduler.account", trace.WithAttributes(
		attribute.Int("account.index", i),
		attribute.String("account.address", acct.Address),
	))
	if s.cfg.AccountTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AccountTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
			logger.Error("panic while processing wallet", "panic", r, "stack", string(debug.Stack()))
		}
		res.FinishedAt = s.cfg.Now()
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			logger.Error("error processing wallet", "step", FailedStep(res.Err), "error", res.Err)
		}
		span.End()
	}()

	logger.Info("processing wallet")

	sess, err := s.factory.NewSession(node.Params{
		Proxy:        p,
		Credential:   acct.PrivateKey,
		ReferralCode: s.cfg.ReferralCode,
		LocalState:   s.state,
		Tasks:        s.tasks,
	})
	if err != nil {
		res.Err = &StepError{Step: StepSession, Err: err}
		return res
	}

	out, err := runPipeline(ctx, sess, logger)
	res.Steps = out.steps
	res.Running = out.running
	res.Points = out.points
	res.Err = err
	return res
}

// flatten expands nested Observers so each one is notified in isolation.
func flatten(o Observer) []Observer {
	switch v := o.(type) {
	case nil:
		return nil
	case Observers:
		var out []Observer
		for _, inner := range v {
			out = append(out, flatten(inner)...)
		}
		return out
	default:
		return []Observer{o}
	}
}

// notify calls fn for every observer. A panicking observer is logged and
// affects neither the cycle nor the other observers.
func (s *Scheduler) notify(fn func(o Observer)) {
	for _, o := range s.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.cfg.Logger.Error("observer panicked", "observer", fmt.Sprintf("%T", o), "panic", r)
				}
			}()
			fn(o)
		}()
	}
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Cycles:      s.cycles,
		InCycle:     s.inCycle,
		NextCycleAt: s.next,
	}
	if s.last != nil {
		cp := *s.last
		st.Last = &cp
	}
	return st
}

// Accounts returns the number of accounts processed per cycle.
func (s *Scheduler) Accounts() int {
	return len(s.accounts)
}

// Start launches Run in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.Run(ctx)
	}()
	return nil
}

// Stop cancels the running loop and waits for it to return or for ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the loop started by Start returns.
// It is nil before Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
