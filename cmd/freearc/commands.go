package main

import (
	"errors"

	"github.com/shiroemons/go-freearc/internal/freearc/app"
	"github.com/shiroemons/go-freearc/internal/freearc/config"
	ferrors "github.com/shiroemons/go-freearc/internal/freearc/errors"
	"github.com/shiroemons/go-freearc/internal/freearc/models"
	cli "github.com/urfave/cli/v2"
)

var (
	listFileFlag = &cli.StringFlag{
		Name:  "listfile",
		Usage: "file listing the names to process, one per line",
	}
	nameEncodingFlag = &cli.StringFlag{
		Name:  "name-encoding",
		Usage: "encoding of file names in the archive (utf8, sjis)",
		Value: config.EncodingUTF8,
	}
)

var listCmd = &cli.Command{
	Name:      "list",
	Aliases:   []string{"l"},
	Usage:     "アーカイブ内のファイルを一覧表示します",
	ArgsUsage: "<archive> [names...]",
	Flags: []cli.Flag{
		listFileFlag,
		nameEncodingFlag,
		&cli.StringFlag{
			Name:  "save",
			Usage: "also save the listing to a UTF-8 (BOM) text file",
		},
	},
	Action: func(cctx *cli.Context) error {
		a, _, err := newApp(cctx)
		if err != nil {
			return err
		}
		if err := a.List(cctx.Context); err != nil {
			return describe(err, false)
		}
		if path := cctx.String("save"); path != "" {
			return a.SaveListing(cctx.Context, path)
		}
		return nil
	},
}

var extractCmd = &cli.Command{
	Name:      "extract",
	Aliases:   []string{"x"},
	Usage:     "アーカイブを展開します",
	ArgsUsage: "<archive> [names...]",
	Flags: []cli.Flag{
		listFileFlag,
		nameEncodingFlag,
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output directory",
			Value:   ".",
		},
		&cli.BoolFlag{
			Name:    "overwrite",
			Aliases: []string{"y"},
			Usage:   "overwrite existing files",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "decode and check without writing files",
		},
	},
	Action: func(cctx *cli.Context) error {
		a, _, err := newApp(cctx)
		if err != nil {
			return err
		}
		sum, err := a.Extract(cctx.Context)
		a.Report("展開", sum)
		return summaryError(err, sum)
	},
}

var testCmd = &cli.Command{
	Name:      "test",
	Aliases:   []string{"t"},
	Usage:     "全ファイルを展開してCRCを検証します",
	ArgsUsage: "<archive>",
	Action: func(cctx *cli.Context) error {
		a, _, err := newApp(cctx)
		if err != nil {
			return err
		}
		sum, err := a.Test(cctx.Context)
		a.Report("検証", sum)
		return summaryError(err, sum)
	},
}

var infoCmd = &cli.Command{
	Name:      "info",
	Usage:     "アーカイブの概要を表示します",
	ArgsUsage: "<archive>",
	Action: func(cctx *cli.Context) error {
		a, _, err := newApp(cctx)
		if err != nil {
			return err
		}
		if _, err := a.Info(cctx.Context); err != nil {
			return describe(err, false)
		}
		return nil
	},
}

var createCmd = &cli.Command{
	Name:      "create",
	Aliases:   []string{"a"},
	Usage:     "ファイルやディレクトリからアーカイブを作成します",
	ArgsUsage: "<archive> <files or directories...>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "method",
			Aliases: []string{"m"},
			Usage:   "compression method string (e.g. lzma:16mb, ppmd:8:96mb, storing)",
		},
		&cli.StringFlag{
			Name:  "cipher",
			Usage: "cipher list used with --password (e.g. aes-256, aes-128+blowfish)",
		},
		&cli.BoolFlag{
			Name:    "encrypt-headers",
			Aliases: []string{"hp"},
			Usage:   "also encrypt the directory",
		},
		&cli.StringFlag{
			Name:  "solid",
			Usage: "solid block size (e.g. 16mb)",
		},
		&cli.StringFlag{
			Name:  "comment",
			Usage: "archive comment",
		},
	},
	Action: func(cctx *cli.Context) error {
		a, cfg, err := newApp(cctx)
		if err != nil {
			return err
		}
		sum, err := a.Create(cctx.Context)
		if err != nil {
			return ferrors.NewArchiveError("作成", cfg.ArchivePath, err)
		}
		a.Report("作成", sum)
		return nil
	},
}

// newApp はコマンドラインから設定を作り、Appを作成します
func newApp(cctx *cli.Context) (*app.App, *config.Config, error) {
	args := cctx.Args().Slice()
	cfg := &config.Config{
		Password:     cctx.String("password"),
		Workers:      cctx.Int("workers"),
		DebugMode:    cctx.Bool("debug"),
		OutputDir:    cctx.String("output"),
		Overwrite:    cctx.Bool("overwrite"),
		DryRun:       cctx.Bool("dry-run"),
		ListFile:     cctx.String("listfile"),
		NameEncoding: cctx.String("name-encoding"),

		Method:         cctx.String("method"),
		Cipher:         cctx.String("cipher"),
		EncryptHeaders: cctx.Bool("encrypt-headers"),
		SolidSize:      cctx.String("solid"),
		Comment:        cctx.String("comment"),
	}
	if len(args) > 0 {
		cfg.ArchivePath = args[0]
		if cctx.Command.Name == "create" {
			cfg.Inputs = args[1:]
		} else {
			cfg.Files = args[1:]
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// summaryError は集計済みの失敗を利用者向けのエラーにします
func summaryError(err error, sum *models.Summary) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrExtractFailed), errors.Is(err, app.ErrTestFailed), errors.Is(err, app.ErrNotFound):
		// 個別の失敗は Report で表示済み
		return cli.Exit(err.Error(), 2)
	}
	return describe(err, sum != nil && sum.Encrypted)
}

func describe(err error, encrypted bool) error {
	return errors.New(ferrors.Describe(err, encrypted))
}
