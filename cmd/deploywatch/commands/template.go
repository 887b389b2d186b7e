package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deploywatch/internal/app/templatelist"
)

// NewTemplateCommand returns the template parent command.
func NewTemplateCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("template", "Manage deployment templates.")
}

type TemplateListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewTemplateListCommand returns the template list command.
func NewTemplateListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TemplateListCommand {
	c := &TemplateListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List the deployment templates of the catalog.").Alias("ls")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c TemplateListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateListCommand) Run(ctx context.Context) error {
	repo, err := newTemplateRepository(ctx, c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	svc, err := templatelist.NewService(templatelist.ServiceConfig{
		Repository: repo,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	templates, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("could not list templates: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if len(templates) == 0 && c.format == formatTable {
		return p.PrintMessage("No templates found.")
	}
	if err := p.PrintTemplateList(templates); err != nil {
		return fmt.Errorf("could not print templates: %w", err)
	}

	return nil
}
