package scheduler

import (
	"context"
	"time"

	"github.com/flemzord/edgecycle/internal/proxy"
)

// CycleInfo identifies a cycle in progress.
type CycleInfo struct {
	ID        string
	Number    int
	StartedAt time.Time
	Accounts  int
}

// AccountResult is the outcome of one account's pipeline within a cycle.
type AccountResult struct {
	Index      int
	Address    string
	Proxy      proxy.Addr
	Running    bool
	Steps      []Step
	Points     int64
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OK reports whether every step succeeded.
func (r AccountResult) OK() bool {
	return r.Err == nil
}

// Duration returns how long the account took.
func (r AccountResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// CycleReport summarizes a finished cycle.
type CycleReport struct {
	ID         string
	Number     int
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []AccountResult
}

// Duration returns the wall time of the cycle.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded returns the number of accounts that completed every step.
func (r CycleReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of accounts that failed.
func (r CycleReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Observer receives cycle progress. Calls are synchronous, made from the
// scheduler goroutine, and must return quickly.
type Observer interface {
	CycleStarted(ctx context.Context, info CycleInfo)
	AccountFinished(ctx context.Context, info CycleInfo, result AccountResult)
	CycleFinished(ctx context.Context, report CycleReport)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) CycleStarted(context.Context, CycleInfo)                     {}
func (NopObserver) AccountFinished(context.Context, CycleInfo, AccountResult) {}
func (NopObserver) CycleFinished(context.Context, CycleReport)                 {}

// Observers fans events out to every observer in order.
type Observers []Observer

func (o Observers) CycleStarted(ctx context.Context, info CycleInfo) {
	for _, obs := range o {
		obs.CycleStarted(ctx, info)
	}
}

func (o Observers) AccountFinished(ctx context.Context, info CycleInfo, result AccountResult) {
	for _, obs := range o {
		obs.AccountFinished(ctx, info, result)
	}
}

func (o Observers) CycleFinished(ctx context.Context, report CycleReport) {
	for _, obs := range o {
		obs.CycleFinished(ctx, report)
	}
}
