package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
)

// Step is a single scripted fetch result.
type Step struct {
	Lines  []string
	Status model.BackendStatus
	Err    error
}

// BackendConfig is the configuration for the fake backend.
type BackendConfig struct {
	// Scripts are the scripts of already existing operations by ID.
	Scripts map[string][]Step
	// ScriptFor returns the script of a launched operation. Defaults to DemoScript.
	ScriptFor func(req model.LaunchRequest) []Step
	Logger    log.Logger
}

func (c *BackendConfig) defaults() error {
	if c.ScriptFor == nil {
		c.ScriptFor = func(req model.LaunchRequest) []Step {
			return DemoScript(splitSteps(req.Parameters["steps"]))
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.Fake"})
	return nil
}

type operation struct {
	script []Step
	cursor int
}

// Backend is a fake implementation of the backend.Client interface.
// Every fetch returns the next scripted step, once the script is exhausted the
// last step is returned forever.
type Backend struct {
	ops       map[string]*operation
	scriptFor func(req model.LaunchRequest) []Step
	mu        sync.Mutex
	logger    log.Logger
}

// NewBackend creates a new fake backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Backend{
		ops:       make(map[string]*operation),
		scriptFor: cfg.ScriptFor,
		logger:    cfg.Logger,
	}
	for id, s := range cfg.Scripts {
		b.ops[id] = &operation{script: s}
	}

	return b, nil
}

// Launch registers a new operation with the script for the request.
func (b *Backend) Launch(ctx context.Context, req model.LaunchRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid launch request: %w", err)
	}

	id := uuid.NewString()
	script := b.scriptFor(req)

	b.mu.Lock()
	b.ops[id] = &operation{script: script}
	b.mu.Unlock()

	b.logger.Infof("Launched fake %s operation %s with %d scripted steps", req.Kind, id, len(script))

	return id, nil
}

// FetchLogs returns the next scripted step of the operation.
func (b *Backend) FetchLogs(ctx context.Context, operationID string) (model.LogSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.LogSnapshot{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	op, ok := b.ops[operationID]
	if !ok {
		return model.LogSnapshot{}, fmt.Errorf("operation %s: %w: %w", operationID, model.ErrTransport, model.ErrNotFound)
	}
	if len(op.script) == 0 {
		return model.LogSnapshot{}, nil
	}

	step := op.script[op.cursor]
	if op.cursor < len(op.script)-1 {
		op.cursor++
	}

	if step.Err != nil {
		return model.LogSnapshot{}, step.Err
	}

	// Return a copy to avoid external modifications.
	lines := make([]string, len(step.Lines))
	copy(lines, step.Lines)

	return model.LogSnapshot{Lines: lines, Status: step.Status}, nil
}

// Grow returns a script where the buffer grows one line per fetch until all
// lines are visible.
func Grow(lines []string) []Step {
	steps := make([]Step, 0, len(lines))
	for i := range lines {
		steps = append(steps, Step{Lines: lines[:i+1]})
	}
	return steps
}

// DemoScript returns a script of a template deployment that runs the named steps
// and succeeds.
func DemoScript(stepNames []string) []Step {
	if len(stepNames) == 0 {
		stepNames = []string{"run"}
	}

	lines := []string{
		"Creating temporary inventory for 1 hosts",
		"PLAY [deploy] ******************************************************",
	}
	for i, name := range stepNames {
		n := i + 1
		lines = append(lines,
			fmt.Sprintf("Starting step %d: %s", n, name),
			fmt.Sprintf("TASK [%s] *********************************************", name),
			"changed: [localhost]",
			fmt.Sprintf("Step %d completed successfully", n),
		)
	}
	lines = append(lines,
		"PLAY RECAP *********************************************************",
		fmt.Sprintf("localhost : ok=%d changed=%d unreachable=0 failed=0", len(stepNames)*2, len(stepNames)),
		"=== Template Deployment SUCCESS ===",
	)

	return Grow(lines)
}

func splitSteps(s string) []string {
	var steps []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			steps = append(steps, p)
		}
	}
	return steps
}
