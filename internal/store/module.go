package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/flemzord/edgecycle/internal/core"
	"github.com/flemzord/edgecycle/internal/scheduler"
)

// ServiceName is the AppContext service key of the *Store.
const ServiceName = "store.history"

const defaultDBFile = "history.db"

// Compile-time interface guards.
var (
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
	_ scheduler.Observer = (*Module)(nil)
)

// Module owns the history database for the lifetime of the app and
// records every finished cycle.
type Module struct {
	scheduler.NopObserver

	// Path is the database file. Defaults to {DataDir}/history.db.
	Path string

	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "store.sqlite"}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.Path == "" {
		m.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	s, err := Open(context.TODO(), m.Path)
	if err != nil {
		return err
	}
	m.store = s
	ctx.RegisterService(ServiceName, s)

	m.logger.Info("run history store provisioned", "path", m.Path)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.store.Ping(context.TODO()); err != nil {
		return fmt.Errorf("store: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info("run history store stopping")
	return m.store.Close()
}

// Store returns the underlying store. Nil before Provision.
func (m *Module) Store() *Store {
	return m.store
}

// CycleFinished implements scheduler.Observer. Failures are logged.
func (m *Module) CycleFinished(ctx context.Context, report scheduler.CycleReport) {
	if m.store == nil {
		return
	}
	if err := m.store.RecordCycle(context.WithoutCancel(ctx), report); err != nil {
		m.logger.Error("failed to record cycle", "cycle", report.Number, "error", err)
	}
}
