// Package modules holds the feature modules a server process runs and
// initializes them in dependency order.
package modules

import "errors"

var (
	// ErrTypeRequired indicates a module without a type.
	ErrTypeRequired = errors.New("module type is required")
	// ErrAlreadyRegistered indicates a duplicate module registration.
	ErrAlreadyRegistered = errors.New("module already registered")
	// ErrResolving indicates a registration attempt while a resolution pass runs.
	ErrResolving = errors.New("modules are being resolved")
	// ErrNotInitialized indicates a lookup of a module that is not initialized yet.
	ErrNotInitialized = errors.New("module is not initialized")
)

// Module is a server feature that depends on other features by type.
type Module interface {
	// Type identifies the module. It must be unique within a registry.
	Type() string
	// Dependencies lists module types that must be initialized first.
	Dependencies() []string
	// OptionalDependencies lists module types that should be initialized
	// first when they are registered, but never block initialization.
	OptionalDependencies() []string
	// Initialize is called exactly once, after the dependencies above.
	Initialize(host *Host) error
}

// Base can be embedded by modules without dependencies.
type Base struct{}

func (Base) Dependencies() []string         { return nil }
func (Base) OptionalDependencies() []string { return nil }
