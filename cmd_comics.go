package main

import (
	"context"
	"fmt"

	output "github.com/sammcj/deskchores/internal/cli"
	"github.com/sammcj/deskchores/internal/config"
	"github.com/sammcj/deskchores/internal/utils/httpclient"
	"github.com/sammcj/deskchores/internal/webcomic"
	"github.com/urfave/cli/v3"
)

const comicsDebugFile = "webcomics_DEBUG.txt"

func (a *app) comicsCommand() *cli.Command {
	return &cli.Command{
		Name:      "comics",
		Usage:     "Download the latest strip of every webcomic in a list, if it is new",
		ArgsUsage: "[list]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory strips are saved under, one folder per site (default: webcomics)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum requests per second (default: 1)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout for each request (default: 30s)",
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Usage:   "User-Agent header sent with every request",
				Sources: cli.EnvVars("DESKCHORES_USER_AGENT"),
			},
		},
		Action: a.runComics,
	}
}

func (a *app) runComics(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("usage: deskchores comics %s", cmd.ArgsUsage)
	}

	opts := a.cfg.Comics
	if list := cmd.Args().First(); list != "" {
		opts.List = list
	}
	if cmd.IsSet("out") {
		opts.Out = cmd.String("out")
	}
	if cmd.IsSet("rate") {
		opts.Rate = cmd.Float("rate")
	}
	if cmd.IsSet("timeout") {
		opts.Timeout = cmd.Duration("timeout")
	}
	if cmd.IsSet("user-agent") {
		opts.UserAgent = cmd.String("user-agent")
	}
	if err := config.Validate(&opts); err != nil {
		return err
	}

	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	closeLog, err := a.startDebugLog(comicsDebugFile)
	if err != nil {
		return err
	}
	defer closeLog()

	entries, err := webcomic.LoadListFile(opts.List)
	if err != nil {
		return err
	}

	client := httpclient.NewRateLimited(httpclient.NewWithProxy(opts.Timeout, a.logger), opts.Rate, opts.UserAgent)
	results, runErr := webcomic.NewDownloader(client, opts.Out, a.logger).Run(ctx, entries)
	if err := output.NewReporter(a.stdout, format).Comics(results); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
