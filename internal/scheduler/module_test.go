package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/flemzord/edgecycle/internal/core"
	"github.com/flemzord/edgecycle/internal/datasource"
	"github.com/flemzord/edgecycle/internal/node/nodetest"
)

func TestModule_Lifecycle(t *testing.T) {
	t.Parallel()

	cycled := make(chan struct{}, 1)
	s := newScheduler(t, Config{Observer: &cycleSignal{ch: cycled}}, &nodetest.MockFactory{},
		&datasource.Snapshot{Accounts: accounts("A")})

	app := core.NewApp(core.NewAppContext(discard, t.TempDir()))
	if err := app.Register(&Module{Scheduler: s}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-cycled:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not finish")
	}

	app.Stop()
	select {
	case <-s.Done():
	default:
		t.Error("scheduler loop still running after app stop")
	}
}

func TestModule_StopBeforeStart(t *testing.T) {
	t.Parallel()

	s := newScheduler(t, Config{}, &nodetest.MockFactory{}, &datasource.Snapshot{Accounts: accounts("A")})
	m := &Module{Scheduler: s}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start = %v, want nil", err)
	}
}
