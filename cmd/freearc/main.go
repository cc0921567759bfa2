package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/shiroemons/go-freearc/internal/freearc/config"
	cli "github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "freearc",
		Usage:   "FreeArcアーカイブの一覧表示、展開、検証、作成を行います",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug output",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password for encrypted archives",
				EnvVars: []string{"FREEARC_PASSWORD"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of blocks decoded in parallel (0 = number of CPUs)",
			},
		},
		Commands: []*cli.Command{
			listCmd,
			extractCmd,
			testCmd,
			infoCmd,
			createCmd,
		},
	}
}
