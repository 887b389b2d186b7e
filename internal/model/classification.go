package model

// Classification is the verdict of a log buffer at a specific point in time.
// It is recomputed on every tick and never stored.
type Classification struct {
	// HasFailure is true when a terminal failure marker is present in the recent lines.
	HasFailure bool
	// FailureLine is the most recent line that was taken as a failure marker.
	FailureLine string
	// CompletedStepCount is the number of distinct steps marked as completed in the whole buffer.
	CompletedStepCount int
	// IsActivelyRunning is true when the recent lines show work in progress.
	IsActivelyRunning bool
	// HasFinalSuccess is true when the recent lines show a whole operation success marker.
	HasFinalSuccess bool
	// HasRecentStepCompletion is true when a step completion marker is present in the recent lines.
	HasRecentStepCompletion bool
}
