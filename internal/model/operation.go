package model

import "fmt"

// OperationKind is the kind of backend action an operation runs.
type OperationKind string

const (
	OperationKindShell    OperationKind = "shell"
	OperationKindSystemd  OperationKind = "systemd"
	OperationKindDeploy   OperationKind = "deploy"
	OperationKindTemplate OperationKind = "template"
)

// Validate checks the kind is one the backends know how to run.
func (k OperationKind) Validate() error {
	switch k {
	case OperationKindShell, OperationKindSystemd, OperationKindDeploy, OperationKindTemplate:
		return nil
	default:
		return fmt.Errorf("unknown operation kind %q: %w", k, ErrNotValid)
	}
}

// LaunchRequest is the request sent to a backend to start an operation.
type LaunchRequest struct {
	Kind       OperationKind
	Parameters map[string]string
}

// Validate validates the launch request.
func (r LaunchRequest) Validate() error {
	return r.Kind.Validate()
}

// LogSnapshot is the full accumulated log buffer of an operation as returned by
// the backend, plus the status the backend asserted, if any.
type LogSnapshot struct {
	Lines  []string
	Status BackendStatus
}
