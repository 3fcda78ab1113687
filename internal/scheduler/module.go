package scheduler

import (
	"context"
	"errors"

	"github.com/flemzord/edgecycle/internal/core"
)

var (
	_ core.Starter = (*Module)(nil)
	_ core.Stopper = (*Module)(nil)
)

// Module runs a Scheduler under the app lifecycle. It is registered last
// so every observer it reports to is already started.
type Module struct {
	Scheduler *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "scheduler"}
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.Scheduler.Start(context.Background())
}

// Stop implements core.Stopper. An in-flight account is abandoned when
// ctx expires.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.Scheduler.Stop(ctx); err != nil && !errors.Is(err, ErrNotStarted) {
		return err
	}
	return nil
}
