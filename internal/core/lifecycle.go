package core

import "context"

// ModuleID identifies a module within the application (e.g. "gateway.http").
type ModuleID string

// ModuleInfo describes a module.
type ModuleInfo struct {
	ID ModuleID
}

// Module is implemented by every component managed by App.
type Module interface {
	ModuleInfo() ModuleInfo
}

// Provisioner is implemented by modules that need setup before start.
// This is where modules resolve services from the AppContext and
// register their own.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can verify their configuration
// is complete and correct. Called after Provision().
// Validate should be read-only, no side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that need to start background work
// (goroutines, listeners, connections). Called after all modules are
// provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}
