package classify

import (
	"strconv"

	"github.com/wasilibs/go-re2"
)

// Kind is the role a matcher plays when a line is classified.
type Kind int

const (
	// KindFailureExclusion lines are never considered failures, whatever else they contain.
	KindFailureExclusion Kind = iota
	// KindFailure lines are terminal failure markers.
	KindFailure
	// KindSuccess lines mark the whole operation as successful.
	KindSuccess
	// KindStepCompletion lines mark a single numbered step as completed.
	KindStepCompletion
	// KindActivity lines show the backend is doing work right now.
	KindActivity
)

func (k Kind) String() string {
	switch k {
	case KindFailureExclusion:
		return "failure-exclusion"
	case KindFailure:
		return "failure"
	case KindSuccess:
		return "success"
	case KindStepCompletion:
		return "step-completion"
	case KindActivity:
		return "activity"
	default:
		return "unknown"
	}
}

// Matcher is a named predicate over a single log line.
type Matcher struct {
	Name string
	Kind Kind

	match func(line string) bool
	// step extracts the step number, only set on step completion matchers.
	step func(line string) (int, bool)
}

// Match returns true if the line matches.
func (m Matcher) Match(line string) bool {
	if m.step != nil {
		_, ok := m.step(line)
		return ok
	}
	return m.match(line)
}

// StepNumber returns the step number of a step completion line.
func (m Matcher) StepNumber(line string) (int, bool) {
	if m.step == nil {
		return 0, false
	}
	return m.step(line)
}

// NewRegexpMatcher returns a matcher that matches lines with the regular expression.
func NewRegexpMatcher(name string, kind Kind, expr string) (Matcher, error) {
	re, err := re2.Compile(expr)
	if err != nil {
		return Matcher{}, err
	}

	return Matcher{Name: name, Kind: kind, match: re.MatchString}, nil
}

// NewStepMatcher returns a step completion matcher. The regular expression must
// have a capture group named "step" with the step number.
func NewStepMatcher(name string, expr string) (Matcher, error) {
	re, err := re2.Compile(expr)
	if err != nil {
		return Matcher{}, err
	}

	idx := -1
	for i, n := range re.SubexpNames() {
		if n == "step" {
			idx = i
		}
	}
	if idx < 0 {
		return Matcher{}, errMissingStepGroup
	}

	return Matcher{Name: name, Kind: KindStepCompletion, step: stepExtractor(re, idx)}, nil
}

func stepExtractor(re *re2.Regexp, idx int) func(string) (int, bool) {
	return func(line string) (int, bool) {
		if stepFailed.MatchString(line) && !successPhrase.MatchString(line) {
			return 0, false
		}

		sm := re.FindStringSubmatch(line)
		if sm == nil {
			return 0, false
		}

		n, err := strconv.Atoi(sm[idx])
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

const (
	// stepFailedExpr ignores "failed=N" counters, those are handled by the count matchers.
	stepFailedExpr    = `(?i)\bstep\s*#?[0-9]+\b.*\b(failed|failure|errored)([^=]|$)`
	successPhraseExpr = `(?i:\b(completed|finished|succeeded|deployed|ran) successfully\b)|\bSUCCESS\b`
)

var (
	zeroCounts    = re2.MustCompile(`(?i)\b(failed|unreachable)=0+\b`)
	nonZeroCounts = re2.MustCompile(`(?i)\b(failed|unreachable)=0*[1-9][0-9]*\b`)
	stepFailed    = re2.MustCompile(stepFailedExpr)
	successPhrase = re2.MustCompile(successPhraseExpr)
)

// DefaultMatchers returns the matchers used by default. Order matters inside each
// kind only for reporting, the classifier applies kinds with fixed precedence.
func DefaultMatchers() []Matcher {
	ms := make([]Matcher, 0, len(defaultMatcherSpecs)+1)
	ms = append(ms, Matcher{
		Name: "zero-failures-summary",
		Kind: KindFailureExclusion,
		match: func(line string) bool {
			return zeroCounts.MatchString(line) && !nonZeroCounts.MatchString(line)
		},
	})

	for _, s := range defaultMatcherSpecs {
		var (
			m   Matcher
			err error
		)
		if s.kind == KindStepCompletion {
			m, err = NewStepMatcher(s.name, s.expr)
		} else {
			m, err = NewRegexpMatcher(s.name, s.kind, s.expr)
		}
		if err != nil {
			panic("invalid default matcher " + s.name + ": " + err.Error())
		}
		ms = append(ms, m)
	}

	return ms
}

type matcherSpec struct {
	name string
	kind Kind
	expr string
}

var defaultMatcherSpecs = []matcherSpec{
	// Exclusions.
	{name: "success-phrase", kind: KindFailureExclusion, expr: successPhraseExpr},

	// Failures.
	{name: "retry-failure", kind: KindFailure, expr: `(?i)\bFAILED!|\ball retries (failed|exhausted)\b|\bgiving up after [0-9]+ (attempts|retries)\b`},
	{name: "fatal", kind: KindFailure, expr: `(?i)^\s*fatal:|\bfatal: \[`},
	{name: "error-prefix", kind: KindFailure, expr: `(?i)^\s*(\[error\]|error\b|err:)`},
	{name: "operation-failed", kind: KindFailure, expr: `(?i)\b(deployment|operation|command|playbook|job|service) (has )?failed\b|^\s*={3,}.*\bFAILED\b.*={3,}\s*$`},
	{name: "step-failed", kind: KindFailure, expr: stepFailedExpr},
	{name: "unreachable-count", kind: KindFailure, expr: `(?i)\bunreachable=0*[1-9][0-9]*\b`},
	{name: "failed-count", kind: KindFailure, expr: `(?i)\bfailed=0*[1-9][0-9]*\b`},

	// Final success.
	{name: "deployment-success-banner", kind: KindSuccess, expr: `(?i)^\s*={3,}.*\bSUCCESS\b.*={3,}\s*$`},
	{name: "operation-success", kind: KindSuccess, expr: `(?i)\b(deployment|operation|template deployment|playbook|all steps) (completed|finished) successfully\b|\b(deployment|operation) succeeded\b`},

	// Step completions.
	{name: "step-completed", kind: KindStepCompletion, expr: `(?i)\bstep\s*#?(?P<step>[0-9]+)(\s*/\s*[0-9]+)?\b.{0,80}?\b(completed|complete|succeeded|finished|done)\b`},
	{name: "completed-step", kind: KindStepCompletion, expr: `(?i)\b(completed|finished|succeeded)\s+step\s*#?(?P<step>[0-9]+)\b`},

	// Activity.
	{name: "task-start", kind: KindActivity, expr: `^\s*(TASK|RUNNING HANDLER) \[`},
	{name: "play-start", kind: KindActivity, expr: `^\s*PLAY \[`},
	{name: "task-result", kind: KindActivity, expr: `^\s*(changed|ok|skipping): \[`},
	{name: "command-echo", kind: KindActivity, expr: `(?i)^\s*(\$ |\+ |>>> |(running|executing)( command)?:)`},
	{name: "inventory-setup", kind: KindActivity, expr: `(?i)\b(creating|generating|writing|using) (temporary |dynamic )?inventory\b|\binventory (file )?(created|written|ready)\b`},
	{name: "step-start", kind: KindActivity, expr: `(?i)\b(starting|running|executing) step\s*#?[0-9]+\b|\bstep\s*#?[0-9]+\b.*\b(starting|started|in progress)\b`},
}
