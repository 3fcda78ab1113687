package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/flemzord/edgecycle/internal/core"
)

var (
	_ core.Provisioner = (*Module)(nil)
	_ core.Validator   = (*Module)(nil)
	_ core.Starter     = (*Module)(nil)
	_ core.Stopper     = (*Module)(nil)
)

// Module runs Jobs for the lifetime of the app. On Stop, jobs named in
// FinalRun execute once more so nothing pending is lost at shutdown.
type Module struct {
	Jobs     []Job
	FinalRun []string

	sched *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron"}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.sched = NewScheduler(ctx.Logger)
	for _, j := range m.Jobs {
		if err := m.sched.RegisterJob(j); err != nil {
			return err
		}
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	var errs []error
	for _, j := range m.Jobs {
		if err := ParseSchedule(j.Schedule()); err != nil {
			errs = append(errs, fmt.Errorf("cron: job %q: invalid schedule %q: %w", j.Name(), j.Schedule(), err))
		}
	}
	for _, name := range m.FinalRun {
		if !slices.Contains(m.sched.Jobs(), name) {
			errs = append(errs, fmt.Errorf("cron: final run of unknown job %q", name))
		}
	}
	return errors.Join(errs...)
}

// Start implements core.Starter.
func (m *Module) Start() error {
	return m.sched.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	errs := []error{m.sched.Stop(ctx)}
	for _, name := range m.FinalRun {
		errs = append(errs, m.sched.RunJob(ctx, name))
	}
	return errors.Join(errs...)
}
