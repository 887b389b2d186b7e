package classify

import (
	"errors"
	"fmt"

	"github.com/slok/deploywatch/internal/model"
)

var errMissingStepGroup = errors.New(`step matcher requires a named "step" capture group`)

const (
	// DefaultFailureWindow is the number of trailing lines inspected for failures.
	DefaultFailureWindow = 20
	// DefaultActivityWindow is the number of trailing lines inspected for activity.
	DefaultActivityWindow = 15
	// DefaultSuccessWindow is the number of trailing lines inspected for a final success.
	DefaultSuccessWindow = 30
)

// Config is the configuration of a Classifier.
type Config struct {
	FailureWindow  int
	ActivityWindow int
	SuccessWindow  int
	// Matchers replaces the default matchers when set.
	Matchers []Matcher
}

func (c *Config) defaults() error {
	if c.FailureWindow == 0 {
		c.FailureWindow = DefaultFailureWindow
	}
	if c.ActivityWindow == 0 {
		c.ActivityWindow = DefaultActivityWindow
	}
	if c.SuccessWindow == 0 {
		c.SuccessWindow = DefaultSuccessWindow
	}
	if c.FailureWindow < 0 || c.ActivityWindow < 0 || c.SuccessWindow < 0 {
		return fmt.Errorf("windows must be positive: %w", model.ErrNotValid)
	}

	if len(c.Matchers) == 0 {
		c.Matchers = DefaultMatchers()
	}
	for _, m := range c.Matchers {
		if m.match == nil && m.step == nil {
			return fmt.Errorf("matcher %q has no predicate: %w", m.Name, model.ErrNotValid)
		}
	}

	return nil
}

// Classifier infers the state of an operation from its raw log buffer.
// It holds no state between calls and is safe for concurrent use.
type Classifier struct {
	failureWindow  int
	activityWindow int
	successWindow  int

	exclusions []Matcher
	failures   []Matcher
	successes  []Matcher
	steps      []Matcher
	activities []Matcher
}

// NewClassifier returns a new Classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Classifier{
		failureWindow:  cfg.FailureWindow,
		activityWindow: cfg.ActivityWindow,
		successWindow:  cfg.SuccessWindow,
	}
	for _, m := range cfg.Matchers {
		switch m.Kind {
		case KindFailureExclusion:
			c.exclusions = append(c.exclusions, m)
		case KindFailure:
			c.failures = append(c.failures, m)
		case KindSuccess:
			c.successes = append(c.successes, m)
		case KindStepCompletion:
			c.steps = append(c.steps, m)
		case KindActivity:
			c.activities = append(c.activities, m)
		default:
			return nil, fmt.Errorf("matcher %q has unknown kind %d: %w", m.Name, m.Kind, model.ErrNotValid)
		}
	}

	return c, nil
}

var defaultClassifier = func() *Classifier {
	c, err := NewClassifier(Config{})
	if err != nil {
		panic(err)
	}
	return c
}()

// Default returns the classifier with the default windows and matchers.
func Default() *Classifier { return defaultClassifier }

// Classify classifies the buffer with the default classifier.
func Classify(lines []string) model.Classification {
	return defaultClassifier.Classify(lines)
}

// Classify returns the classification of the full log buffer.
func (c *Classifier) Classify(lines []string) model.Classification {
	var res model.Classification

	res.CompletedStepCount = c.countCompletedSteps(lines)

	// Failures, only the latest one matters: activity logged before it is stale.
	lastFailure := -1
	for i := windowStart(lines, c.failureWindow); i < len(lines); i++ {
		if c.IsFailure(lines[i]) {
			lastFailure = i
		}
	}
	if lastFailure >= 0 {
		res.HasFailure = true
		res.FailureLine = lines[lastFailure]
	}

	for i := windowStart(lines, c.successWindow); i < len(lines); i++ {
		if matchAny(c.successes, lines[i]) {
			res.HasFinalSuccess = true
			break
		}
	}

	activity, stepAfterFailure := false, false
	for i := windowStart(lines, c.activityWindow); i < len(lines); i++ {
		isStep := matchAny(c.steps, lines[i])
		if isStep {
			res.HasRecentStepCompletion = true
		}

		if i <= lastFailure {
			continue
		}
		if isStep {
			stepAfterFailure = true
		}
		if matchAny(c.activities, lines[i]) {
			activity = true
		}
	}

	// A finished step is not a finished operation.
	res.IsActivelyRunning = activity || (stepAfterFailure && !res.HasFinalSuccess)

	return res
}

// IsFailure returns true if the line is a terminal failure marker. Exclusions are
// checked first so zero-failure summaries are never taken as failures.
func (c *Classifier) IsFailure(line string) bool {
	if matchAny(c.exclusions, line) {
		return false
	}
	return matchAny(c.failures, line)
}

func (c *Classifier) countCompletedSteps(lines []string) int {
	seen := map[int]struct{}{}
	for _, l := range lines {
		for _, m := range c.steps {
			if n, ok := m.StepNumber(l); ok {
				seen[n] = struct{}{}
				break
			}
		}
	}

	return len(seen)
}

func matchAny(ms []Matcher, line string) bool {
	for _, m := range ms {
		if m.Match(line) {
			return true
		}
	}
	return false
}

func windowStart(lines []string, window int) int {
	if len(lines) <= window {
		return 0
	}
	return len(lines) - window
}
