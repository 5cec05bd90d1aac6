package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	output "github.com/sammcj/deskchores/internal/cli"
	"github.com/sammcj/deskchores/internal/config"
	"github.com/sammcj/deskchores/internal/folder"
	"github.com/sammcj/deskchores/internal/paranoia"
	"github.com/sammcj/deskchores/internal/trash"
	"github.com/urfave/cli/v3"
)

const paranoiaDebugFile = "pdfparanoia_DEBUG.txt"

func (a *app) paranoiaCommand() *cli.Command {
	return &cli.Command{
		Name:      "paranoia",
		Usage:     "Lock every unlocked PDF in a folder with a password, and unlock every locked one",
		ArgsUsage: "<folder> <password>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Directory to search for the folder in (default: home directory)",
				Sources: cli.EnvVars("PARANOIA_ROOT"),
			},
			&cli.BoolFlag{
				Name:  "no-recursive",
				Usage: "Search only directly inside the root and process only files directly inside the folder",
			},
			&cli.StringFlag{
				Name:  "marker",
				Usage: "Suffix added to the names of locked files (default: " + config.DefaultMarker + ")",
			},
			&cli.StringFlag{
				Name:  "ext",
				Usage: "Extension of the files to process (default: .pdf)",
			},
			&cli.StringFlag{
				Name:  "trash-dir",
				Usage: "Where originals go once replaced (default: the desktop trash)",
			},
			&cli.BoolFlag{
				Name:  "stop-on-verify-failure",
				Usage: "Stop the batch when a locked file fails verification instead of skipping it",
			},
		},
		Action: a.runParanoia,
	}
}

func (a *app) runParanoia(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("usage: deskchores paranoia %s", cmd.ArgsUsage)
	}
	name, password := cmd.Args().Get(0), cmd.Args().Get(1)

	opts := a.cfg.Paranoia
	if cmd.IsSet("root") {
		opts.Root = cmd.String("root")
	}
	if cmd.IsSet("no-recursive") {
		opts.Recursive = !cmd.Bool("no-recursive")
	}
	if cmd.IsSet("marker") {
		opts.Marker = cmd.String("marker")
	}
	if cmd.IsSet("ext") {
		opts.Ext = cmd.String("ext")
	}
	if cmd.IsSet("trash-dir") {
		opts.TrashDir = cmd.String("trash-dir")
	}
	if cmd.IsSet("stop-on-verify-failure") {
		opts.StopOnVerifyFailure = cmd.Bool("stop-on-verify-failure")
	}
	if err := config.Validate(&opts); err != nil {
		return err
	}

	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	closeLog, err := a.startDebugLog(paranoiaDebugFile)
	if err != nil {
		return err
	}
	defer closeLog()

	terminal := a.terminal()
	if password == "-" {
		password = os.Getenv("PARANOIA_PASSWORD")
		if password == "" {
			if password, err = terminal.Password("Password: "); err != nil {
				return err
			}
		}
	}
	if password == "" {
		return errors.New("password must not be empty")
	}

	resolver, err := folder.NewResolver(opts.Root, opts.Recursive, terminal, a.logger)
	if err != nil {
		return err
	}
	dir, err := resolver.Resolve(ctx, name)
	switch {
	case errors.Is(err, folder.ErrFolderNotFound):
		return fmt.Errorf("no such folder exists: %s", name)
	case errors.Is(err, folder.ErrNoSelection):
		return errors.New("no folder chosen")
	case err != nil:
		return err
	}

	bin, err := trash.New(opts.TrashDir, a.logger)
	if err != nil {
		return err
	}

	reporter := output.NewReporter(a.stdout, format)
	engine := paranoia.NewEngine(paranoia.NewPDFCPU(), bin, password, opts.Marker, a.logger)
	runner := paranoia.NewRunner(engine, paranoia.Options{
		Ext:                 opts.Ext,
		StopOnVerifyFailure: opts.StopOnVerifyFailure,
		Shallow:             !opts.Recursive,
	}, reporter, a.logger)

	reporter.Noticef("Processing %s (originals go to %s)", dir, bin.Dir())
	summary, runErr := runner.Run(ctx, dir)
	if err := reporter.ParanoiaSummary(summary); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
