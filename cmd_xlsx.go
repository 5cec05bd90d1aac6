package main

import (
	"context"
	"fmt"

	output "github.com/sammcj/deskchores/internal/cli"
	"github.com/sammcj/deskchores/internal/xlsx"
	"github.com/urfave/cli/v3"
)

const xlsxDebugFile = "excel-to-csv-converter_DEBUG.txt"

func (a *app) xlsxCommand() *cli.Command {
	return &cli.Command{
		Name:      "xlsx2csv",
		Usage:     "Write a CSV file for every sheet of every .xlsx workbook in a directory",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory to write CSV files to (default: the workbook directory)",
			},
		},
		Action: a.runXLSX,
	}
}

func (a *app) runXLSX(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() > 1 {
		return fmt.Errorf("usage: deskchores xlsx2csv %s", cmd.ArgsUsage)
	}
	dir := cmd.Args().First()
	if dir == "" {
		dir = "."
	}

	opts := a.cfg.Excel
	if cmd.IsSet("out") {
		opts.Out = cmd.String("out")
	}

	format, err := output.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return err
	}

	closeLog, err := a.startDebugLog(xlsxDebugFile)
	if err != nil {
		return err
	}
	defer closeLog()

	results, runErr := xlsx.NewConverter(opts.Out, a.logger).ConvertDir(ctx, dir)
	if err := output.NewReporter(a.stdout, format).Workbooks(results); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
