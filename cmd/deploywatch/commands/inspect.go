package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deploywatch/internal/app/inspect"
	"github.com/slok/deploywatch/internal/printer"
)

type InspectCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path       string
	totalSteps int
	format     string
}

// NewInspectCommand returns the inspect command.
func NewInspectCommand(rootCmd *RootCommand, app *kingpin.Application) *InspectCommand {
	c := &InspectCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("inspect", "Classify a captured operation log file.")
	c.Cmd.Arg("log-file", "Path to the log file.").Required().StringVar(&c.path)
	c.Cmd.Flag("total-steps", "Number of steps the operation declared, 0 if unknown.").Default("0").IntVar(&c.totalSteps)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c InspectCommand) Name() string { return c.Cmd.FullCommand() }

func (c InspectCommand) Run(ctx context.Context) error {
	path, err := fsPath(c.path)
	if err != nil {
		return err
	}

	svc, err := inspect.NewService(inspect.ServiceConfig{
		FS:     c.rootCmd.FS,
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	resp, err := svc.Run(ctx, inspect.Request{
		Path:       path,
		TotalSteps: c.totalSteps,
	})
	if err != nil {
		return fmt.Errorf("could not inspect log file: %w", err)
	}

	err = newPrinter(c.format, c.rootCmd.Stdout).PrintInspection(printer.Inspection{
		Path:           c.path,
		LineCount:      resp.LineCount,
		Classification: resp.Classification,
		Progress:       resp.Progress,
		Status:         resp.Status,
		Reason:         resp.Reason,
	})
	if err != nil {
		return fmt.Errorf("could not print inspection: %w", err)
	}

	return nil
}
