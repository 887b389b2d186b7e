package inspect

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/slok/deploywatch/internal/classify"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/session"
)

// ServiceConfig is the configuration for the inspect service.
type ServiceConfig struct {
	FS         fs.FS
	Classifier session.Classifier
	Thresholds session.Thresholds
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.FS == nil {
		return fmt.Errorf("file system is required")
	}

	if c.Classifier == nil {
		c.Classifier = classify.Default()
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Inspect"})

	return nil
}

// Service classifies captured operation logs offline.
type Service struct {
	fs         fs.FS
	classifier session.Classifier
	reducer    *session.Reducer
	logger     log.Logger
}

// NewService creates a new inspect service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reducer, err := session.NewReducer(cfg.Thresholds, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("could not create reducer: %w", err)
	}

	return &Service{
		fs:         cfg.FS,
		classifier: cfg.Classifier,
		reducer:    reducer,
		logger:     cfg.Logger,
	}, nil
}

// Request represents the inspect request parameters.
type Request struct {
	// Path is the log file path inside the service file system.
	Path string
	// TotalSteps is the number of steps the operation declared, 0 when unknown.
	TotalSteps int
}

// Response is the result of inspecting a log file.
type Response struct {
	Path           string
	LineCount      int
	Classification model.Classification
	Progress       model.Progress
	// Status is what a watch would decide after fetching this buffer once.
	Status model.Status
	Reason model.Reason
}

// Run classifies the log file.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.TotalSteps < 0 {
		return nil, fmt.Errorf("total steps can't be negative: %w", model.ErrNotValid)
	}

	data, err := fs.ReadFile(s.fs, req.Path)
	if err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	lines := splitLines(string(data))
	s.logger.Debugf("Inspecting %d log lines from %s", len(lines), req.Path)

	st := s.reducer.Reduce(session.NewState(req.Path, req.TotalSteps), session.TickOutcome{
		Snapshot: model.LogSnapshot{Lines: lines},
	})

	return &Response{
		Path:           req.Path,
		LineCount:      len(lines),
		Classification: st.LastClassification,
		Progress:       st.Progress(),
		Status:         st.Status,
		Reason:         st.Reason,
	}, nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
