package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/deploywatch/internal/backend"
	"github.com/slok/deploywatch/internal/backend/fake"
	backendhttp "github.com/slok/deploywatch/internal/backend/http"
	"github.com/slok/deploywatch/internal/conventions"
	"github.com/slok/deploywatch/internal/log"
	"github.com/slok/deploywatch/internal/metrics"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/printer"
	"github.com/slok/deploywatch/internal/session"
	storageio "github.com/slok/deploywatch/internal/storage/io"
	"github.com/slok/deploywatch/internal/storage/memory"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug             bool
	NoLog             bool
	NoColor           bool
	LoggerType        string
	BackendURL        string
	TemplatesPath     string
	MetricsListenAddr string

	// Global instances.
	Stdin           io.Reader
	Stdout          io.Writer
	Stderr          io.Writer
	Logger          log.Logger
	MetricsRecorder metrics.Recorder
	// FS is the file system paths are resolved against.
	FS fs.FS

	defaultTemplatesPath string
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{
		MetricsRecorder:      metrics.Noop,
		FS:                   os.DirFS("/"),
		defaultTemplatesPath: conventions.TemplatesPath(homedir.HomeDir()),
	}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("backend-url", "Operations backend base URL. If empty a demo backend that runs scripted deployments is used.").StringVar(&c.BackendURL)
	app.Flag("templates-path", "Path to the deployment templates catalog file.").Default(c.defaultTemplatesPath).StringVar(&c.TemplatesPath)
	app.Flag("metrics-listen-addr", "Address to serve Prometheus metrics on (e.g. ':8081'). Disabled if empty.").StringVar(&c.MetricsListenAddr)

	return c
}

// sessionFlags are the flags of the commands that poll an operation.
type sessionFlags struct {
	interval   time.Duration
	thresholds session.Thresholds
}

func registerSessionFlags(cmd *kingpin.CmdClause) *sessionFlags {
	f := &sessionFlags{}
	d := session.DefaultThresholds()

	cmd.Flag("poll-interval", "Time between two log fetches.").Default(session.DefaultInterval.String()).DurationVar(&f.interval)
	cmd.Flag("max-ticks", "Maximum number of fetches before giving up.").Default(strconv.Itoa(d.MaxTicks)).IntVar(&f.thresholds.MaxTicks)
	cmd.Flag("stall-pending-ticks", "Silent fetches tolerated with pending steps before warning.").Default(strconv.Itoa(d.StallPendingTicks)).IntVar(&f.thresholds.StallPendingTicks)
	cmd.Flag("stall-done-ticks", "Silent fetches tolerated once all steps are done without a success confirmation.").Default(strconv.Itoa(d.StallDoneTicks)).IntVar(&f.thresholds.StallDoneTicks)
	cmd.Flag("stall-ceiling-ticks", "Silent fetches that always fail the operation.").Default(strconv.Itoa(d.StallCeilingTicks)).IntVar(&f.thresholds.StallCeilingTicks)
	cmd.Flag("error-tick-weight", "Error budget used by every failed fetch.").Default(strconv.Itoa(d.ErrorTickWeight)).IntVar(&f.thresholds.ErrorTickWeight)
	cmd.Flag("error-tick-budget", "Error budget of consecutive failed fetches.").Default(strconv.Itoa(d.ErrorTickBudget)).IntVar(&f.thresholds.ErrorTickBudget)

	return f
}

func (f sessionFlags) newRunner(rootCmd *RootCommand, fetcher session.Fetcher) (*session.Runner, error) {
	return session.NewRunner(session.RunnerConfig{
		Fetcher:         fetcher,
		Thresholds:      f.thresholds,
		Interval:        f.interval,
		MetricsRecorder: rootCmd.MetricsRecorder,
		Logger:          rootCmd.Logger,
	})
}

// newBackendClient returns the HTTP backend client, or the demo backend when no
// backend URL is configured. The demo backend knows the preloaded scripts.
func newBackendClient(rootCmd *RootCommand, demoScripts map[string][]fake.Step) (backend.Client, error) {
	if rootCmd.BackendURL == "" {
		rootCmd.Logger.Warningf("No backend URL set, using the demo backend")
		return fake.NewBackend(fake.BackendConfig{
			Scripts: demoScripts,
			Logger:  rootCmd.Logger,
		})
	}

	return backendhttp.NewClient(backendhttp.ClientConfig{
		BaseURL: rootCmd.BackendURL,
		Logger:  rootCmd.Logger,
	})
}

// newTemplateRepository loads the templates catalog into a memory repository. A
// missing catalog at the default location is an empty catalog.
func newTemplateRepository(ctx context.Context, rootCmd *RootCommand) (*memory.Repository, error) {
	path, err := fsPath(rootCmd.TemplatesPath)
	if err != nil {
		return nil, err
	}

	templates, err := storageio.NewTemplateCatalogYAMLRepository(rootCmd.FS).ListTemplates(ctx, path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && rootCmd.TemplatesPath == rootCmd.defaultTemplatesPath:
		rootCmd.Logger.Debugf("No templates catalog at %s", rootCmd.TemplatesPath)
	case err != nil:
		return nil, fmt.Errorf("could not load templates from %s: %w", rootCmd.TemplatesPath, err)
	}

	return memory.NewRepository(memory.RepositoryConfig{
		Templates: templates,
		Logger:    rootCmd.Logger,
	})
}

// fsPath returns the path relative to the root file system.
func fsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return filepath.ToSlash(abs)[1:], nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(w)
	default:
		return printer.NewTablePrinter(w)
	}
}

// resultRecorder prints the session updates and keeps what the final result needs.
type resultRecorder struct {
	printer printer.Printer
	logger  log.Logger
	result  printer.Result
}

func newResultRecorder(p printer.Printer, logger log.Logger) *resultRecorder {
	return &resultRecorder{
		printer: p,
		logger:  logger,
		result:  printer.Result{StartedAt: time.Now()},
	}
}

func (r *resultRecorder) OnUpdate(u model.Update) {
	r.result.SessionID = u.SessionID
	r.result.FinishedAt = u.At
	if err := r.printer.PrintUpdate(u); err != nil {
		r.logger.Warningf("Could not print update: %s", err)
	}
}

// Finish prints the result and returns an error if the operation failed.
func (r *resultRecorder) Finish(st model.SessionState) error {
	r.result.State = st
	if err := r.printer.PrintResult(r.result); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}

	if st.Status == model.StatusFailed {
		return fmt.Errorf("operation %s ended with %s: %w", st.OperationID, st.Reason, model.ErrOperationFailed)
	}

	return nil
}
