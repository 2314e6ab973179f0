package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Optional lifecycle interfaces. LoadModule probes each one in order:
// Configure, Provision, Validate; App.Start and App.Stop drive the
// rest. A module implements only what it needs.

// Configurable receives the module's raw YAML block before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner sets the module up: apply defaults, resolve and publish
// services on the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator confirms the provisioned state is usable. It runs after
// Provision and must not have side effects.
type Validator interface {
	Validate() error
}

// Starter launches background work (listeners, goroutines) once every
// module has provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper releases resources at shutdown, in reverse Start order.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader accepts a live configuration reload.
type Reloader interface {
	Reload(ctx *AppContext) error
}
