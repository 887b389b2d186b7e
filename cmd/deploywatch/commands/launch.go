package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deploywatch/internal/app/launch"
	"github.com/slok/deploywatch/internal/app/watch"
	"github.com/slok/deploywatch/internal/model"
	"github.com/slok/deploywatch/internal/utils/kv"
)

type LaunchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	session *sessionFlags

	template   string
	kind       string
	params     []string
	totalSteps int
	format     string
}

// NewLaunchCommand returns the launch command.
func NewLaunchCommand(rootCmd *RootCommand, app *kingpin.Application) *LaunchCommand {
	c := &LaunchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("launch", "Launch an operation and watch it until it finishes.")
	c.Cmd.Flag("template", "Name of the deployment template to launch.").StringVar(&c.template)
	c.Cmd.Flag("kind", "Kind of an ad hoc operation (shell, systemd, deploy, template).").EnumVar(&c.kind,
		string(model.OperationKindShell), string(model.OperationKindSystemd), string(model.OperationKindDeploy), string(model.OperationKindTemplate))
	c.Cmd.Flag("param", "Operation parameter in KEY=VALUE format (repeatable).").Short('p').StringsVar(&c.params)
	c.Cmd.Flag("total-steps", "Number of steps of the operation, 0 uses the template steps.").Default("0").IntVar(&c.totalSteps)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.session = registerSessionFlags(c.Cmd)

	return c
}

func (c LaunchCommand) Name() string { return c.Cmd.FullCommand() }

func (c LaunchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	params, err := kv.ParseSpecs(c.params)
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	repo, err := newTemplateRepository(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	client, err := newBackendClient(c.rootCmd, nil)
	if err != nil {
		return fmt.Errorf("could not create backend client: %w", err)
	}

	runner, err := c.session.newRunner(c.rootCmd, client)
	if err != nil {
		return fmt.Errorf("could not create session runner: %w", err)
	}

	watcher, err := watch.NewService(watch.ServiceConfig{
		SessionStarter: runner,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create watch service: %w", err)
	}

	svc, err := launch.NewService(launch.ServiceConfig{
		Launcher:   client,
		Repository: repo,
		Watcher:    watcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	rec := newResultRecorder(p, logger)
	resp, err := svc.Run(ctx, launch.Request{
		Template:   c.template,
		Kind:       model.OperationKind(c.kind),
		Parameters: params,
		TotalSteps: c.totalSteps,
		OnLaunched: func(id string) {
			if c.format == formatTable {
				_ = p.PrintMessage(fmt.Sprintf("Launched operation %s", id))
			}
		},
		OnUpdate: rec.OnUpdate,
	})
	if err != nil {
		return fmt.Errorf("could not launch operation: %w", err)
	}

	return rec.Finish(resp.State)
}
