// Package node defines the Node Session contract: the per-account remote
// protocol client driven by the scheduler, plus the task and local state
// types shared by every session in a run.
package node

import (
	"context"

	"github.com/flemzord/edgecycle/internal/proxy"
)

// Session performs remote node operations for a single account.
// A Session is created fresh for every account in every cycle.
type Session interface {
	// Address returns the public wallet address the session acts for.
	Address() string

	// CheckStatus reports whether the remote node is currently running.
	CheckStatus(ctx context.Context) (bool, error)

	// Stop claims accumulated rewards and halts the remote node.
	Stop(ctx context.Context) error

	// Connect (re)starts the remote node.
	Connect(ctx context.Context) error

	// CheckPoints returns the current reward balance.
	CheckPoints(ctx context.Context) (int64, error)

	// HandleTasks attempts every pending task for the account.
	HandleTasks(ctx context.Context) error
}

// Params is the construction contract for a Session.
type Params struct {
	// Proxy routes the session's traffic. The zero value means direct.
	Proxy proxy.Addr

	// Credential is the account secret (hex private key).
	Credential string

	// ReferralCode is used when the remote side does not know the wallet yet.
	ReferralCode string

	// LocalState is shared by every session of the run.
	LocalState *LocalState

	// Tasks is the shared, read-only task set.
	Tasks []Task
}

// Factory builds sessions.
type Factory interface {
	NewSession(p Params) (Session, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(p Params) (Session, error)

// NewSession implements Factory.
func (f FactoryFunc) NewSession(p Params) (Session, error) {
	return f(p)
}
