package deploywatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/slok/deploywatch/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "deploywatch"
	}

	// go test changes the CWD to the test package directory so relative paths
	// would be resolved against it.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("DEPLOYWATCH_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("deploywatch binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "DEPLOYWATCH_INTEGRATION"
		envBinary     = "DEPLOYWATCH_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunCmd runs a quiet deploywatch command against a backend.
func RunCmd(ctx context.Context, config Config, backendURL, cmdArgs string) (stdout, stderr []byte, err error) {
	dw := testutils.Deploywatch{Binary: config.Binary, BackendURL: backendURL, Quiet: true}
	return dw.Run(ctx, cmdArgs)
}

// Backend is a minimal operations backend that serves scripted logs. Every logs
// request reveals one more line of the script.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	scripts  map[string][]string
	revealed map[string]int
	launched []string
}

// NewBackend starts a backend that serves the scripts by operation ID. Launched
// operations get the script stored under their kind.
func NewBackend(t *testing.T, scripts map[string][]string) *Backend {
	t.Helper()

	b := &Backend{scripts: scripts, revealed: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/operations", b.handleLaunch)
	mux.HandleFunc("GET /api/operations/{id}/logs", b.handleLogs)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)

	return b
}

// Launched returns the kinds of the launched operations.
func (b *Backend) Launched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.launched...)
}

func (b *Backend) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("op-%d", len(b.launched)+1)
	b.launched = append(b.launched, req.Kind)
	b.scripts[id] = b.scripts[req.Kind]

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"operation_id": id})
}

func (b *Backend) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	script, ok := b.scripts[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if b.revealed[id] < len(script) {
		b.revealed[id]++
	}

	_ = json.NewEncoder(w).Encode(map[string][]string{"lines": script[:b.revealed[id]]})
}
