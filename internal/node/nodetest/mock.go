// Package nodetest provides test doubles for the node package.
package nodetest

import (
	"context"
	"sync"

	"github.com/flemzord/edgecycle/internal/node"
	"github.com/flemzord/edgecycle/internal/proxy"
)

// Operation names recorded in a Journal.
const (
	OpCheckStatus = "check_status"
	OpStop        = "stop"
	OpConnect     = "connect"
	OpCheckPoints = "check_points"
	OpHandleTasks = "handle_tasks"
)

// Call is one recorded session operation.
type Call struct {
	Address string
	Op      string
	Proxy   proxy.Addr
}

// Journal records operations across every session of a test.
// All methods are safe for concurrent use.
type Journal struct {
	mu    sync.Mutex
	calls []Call
}

func (j *Journal) record(c Call) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
}

// Calls returns a copy of every recorded call in order.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Call, len(j.calls))
	copy(out, j.calls)
	return out
}

// Ops returns the operations recorded for address, in order.
func (j *Journal) Ops(address string) []string {
	var ops []string
	for _, c := range j.Calls() {
		if c.Address == address {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Count returns how many times op was recorded across all sessions.
func (j *Journal) Count(op string) int {
	n := 0
	for _, c := range j.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Len returns the number of recorded calls.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.calls)
}

// MockSession is a configurable test double for node.Session.
// Unset funcs succeed with zero values.
type MockSession struct {
	AddressVal string
	Proxy      proxy.Addr
	Journal    *Journal

	CheckStatusFunc func(ctx context.Context) (bool, error)
	StopFunc        func(ctx context.Context) error
	ConnectFunc     func(ctx context.Context) error
	CheckPointsFunc func(ctx context.Context) (int64, error)
	HandleTasksFunc func(ctx context.Context) error
}

// Interface guard.
var _ node.Session = (*MockSession)(nil)

func (m *MockSession) record(op string) {
	if m.Journal != nil {
		m.Journal.record(Call{Address: m.AddressVal, Op: op, Proxy: m.Proxy})
	}
}

// Address implements node.Session.
func (m *MockSession) Address() string { return m.AddressVal }

// CheckStatus implements node.Session.
func (m *MockSession) CheckStatus(ctx context.Context) (bool, error) {
	m.record(OpCheckStatus)
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx)
	}
	return false, nil
}

// Stop implements node.Session.
func (m *MockSession) Stop(ctx context.Context) error {
	m.record(OpStop)
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

// Connect implements node.Session.
func (m *MockSession) Connect(ctx context.Context) error {
	m.record(OpConnect)
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

// CheckPoints implements node.Session.
func (m *MockSession) CheckPoints(ctx context.Context) (int64, error) {
	m.record(OpCheckPoints)
	if m.CheckPointsFunc != nil {
		return m.CheckPointsFunc(ctx)
	}
	return 0, nil
}

// HandleTasks implements node.Session.
func (m *MockSession) HandleTasks(ctx context.Context) error {
	m.record(OpHandleTasks)
	if m.HandleTasksFunc != nil {
		return m.HandleTasksFunc(ctx)
	}
	return nil
}

// MockFactory is a test double for node.Factory. Sessions use the credential
// as their address so tests can identify accounts by key.
type MockFactory struct {
	Journal *Journal

	// Configure customizes each new session before it is returned.
	Configure func(s *MockSession)

	// NewSessionErr, when set, fails session construction for matching params.
	NewSessionErr func(p node.Params) error

	mu     sync.Mutex
	params []node.Params
}

// Interface guard.
var _ node.Factory = (*MockFactory)(nil)

// NewSession implements node.Factory.
func (f *MockFactory) NewSession(p node.Params) (node.Session, error) {
	f.mu.Lock()
	f.params = append(f.params, p)
	f.mu.Unlock()

	if f.NewSessionErr != nil {
		if err := f.NewSessionErr(p); err != nil {
			return nil, err
		}
	}

	s := &MockSession{AddressVal: p.Credential, Proxy: p.Proxy, Journal: f.Journal}
	if f.Configure != nil {
		f.Configure(s)
	}
	return s, nil
}

// Params returns every construction request received, in order.
func (f *MockFactory) Params() []node.Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]node.Params, len(f.params))
	copy(out, f.params)
	return out
}
