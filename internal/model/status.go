package model

// Status is the inferred state of a watched operation.
type Status string

const (
	// StatusIdle is the status of a session that has not started polling yet.
	StatusIdle Status = "idle"
	// StatusRunning indicates the operation is still in flight.
	StatusRunning Status = "running"
	// StatusSuccess indicates the operation finished successfully.
	StatusSuccess Status = "success"
	// StatusFailed indicates the operation failed, stalled or could not be observed.
	StatusFailed Status = "failed"
)

// IsTerminal returns true when the status will not change anymore.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Reason explains why a session reached its current status.
type Reason string

const (
	ReasonNone Reason = ""
	// ReasonBackend means the backend asserted the terminal status itself.
	ReasonBackend Reason = "backend"
	// ReasonConfirmedSuccess means all steps completed and a final success marker was logged.
	ReasonConfirmedSuccess Reason = "confirmed_success"
	// ReasonFailureMarker means a failure marker was logged and nothing is running anymore.
	ReasonFailureMarker Reason = "failure_marker"
	// ReasonTransport means the backend could not be reached within the error budget.
	ReasonTransport Reason = "transport"
	// ReasonAmbiguousCompletion means every step was logged complete but success was
	// never confirmed and the log went silent.
	ReasonAmbiguousCompletion Reason = "ambiguous_completion"
	// ReasonStall means the log went silent with steps still pending.
	ReasonStall Reason = "stall"
	// ReasonTimeout means the absolute tick budget was exhausted.
	ReasonTimeout Reason = "timeout"
)

// BackendStatus is the optional status asserted by the backend along with the logs.
type BackendStatus string

const (
	BackendStatusUnknown BackendStatus = ""
	BackendStatusRunning BackendStatus = "running"
	BackendStatusSuccess BackendStatus = "success"
	BackendStatusFailed  BackendStatus = "failed"
)

// IsTerminal returns true when the backend asserted a final status.
func (s BackendStatus) IsTerminal() bool {
	return s == BackendStatusSuccess || s == BackendStatusFailed
}

// ParseBackendStatus maps a raw backend value into a BackendStatus. Values the
// backend is not expected to send are treated as not asserted.
func ParseBackendStatus(s string) BackendStatus {
	switch BackendStatus(s) {
	case BackendStatusRunning, BackendStatusSuccess, BackendStatusFailed:
		return BackendStatus(s)
	default:
		return BackendStatusUnknown
	}
}
