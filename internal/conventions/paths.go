package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default deploywatch data directory name (relative to home).
	DefaultDataDir = ".deploywatch"
	// TemplatesFile is the default templates catalog filename.
	TemplatesFile = "templates.yaml"

	// EnvarPrefix is the prefix of the environment variables that configure the flags.
	EnvarPrefix = "DEPLOYWATCH"
	// MetricsPath is the HTTP path the metrics are served on.
	MetricsPath = "/metrics"
)

// TemplatesPath returns the path of the templates catalog inside a home directory.
func TemplatesPath(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir, TemplatesFile)
}
