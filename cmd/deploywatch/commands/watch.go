package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deploywatch/internal/app/watch"
	"github.com/slok/deploywatch/internal/backend/fake"
)

type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	session *sessionFlags

	operationID string
	totalSteps  int
	format      string
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Watch a running operation until it finishes.")
	c.Cmd.Arg("operation-id", "Backend operation ID.").Required().StringVar(&c.operationID)
	c.Cmd.Flag("total-steps", "Number of steps the operation declares, 0 if unknown.").Default("0").IntVar(&c.totalSteps)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.session = registerSessionFlags(c.Cmd)

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// The demo backend runs a deployment with the declared steps for the watched ID.
	client, err := newBackendClient(c.rootCmd, map[string][]fake.Step{
		c.operationID: fake.DemoScript(demoStepNames(c.totalSteps)),
	})
	if err != nil {
		return fmt.Errorf("could not create backend client: %w", err)
	}

	runner, err := c.session.newRunner(c.rootCmd, client)
	if err != nil {
		return fmt.Errorf("could not create session runner: %w", err)
	}

	svc, err := watch.NewService(watch.ServiceConfig{
		SessionStarter: runner,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	rec := newResultRecorder(newPrinter(c.format, c.rootCmd.Stdout), logger)
	st, err := svc.Run(ctx, watch.Request{
		OperationID: c.operationID,
		TotalSteps:  c.totalSteps,
		OnUpdate:    rec.OnUpdate,
	})
	if err != nil {
		return fmt.Errorf("could not watch operation: %w", err)
	}

	return rec.Finish(*st)
}

func demoStepNames(n int) []string {
	names := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		names = append(names, fmt.Sprintf("step-%d", i))
	}
	return names
}
