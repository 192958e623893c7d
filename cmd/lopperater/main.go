package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/config"
	"github.com/Clark-Hu/lopperater/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lopperater: %s\n", describe(err))
		os.Exit(1)
	}
}

// runtime carries what the Before hook loads to every command.
type runtime struct {
	out    io.Writer
	errOut io.Writer
	cfg    config.Config
	logger zerolog.Logger
}

func newCLI(out, errOut io.Writer) *cli.App {
	r := &runtime{out: out, errOut: errOut, logger: zerolog.Nop()}
	return &cli.App{
		Name:      "lopperater",
		Usage:     "find flea markets and rate their stalls",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load before reading the environment (default .env.local, .env)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log at debug level"},
		},
		Before: r.load,
		Commands: []*cli.Command{
			loginCommand(r),
			logoutCommand(r),
			whoamiCommand(r),
			marketsCommand(r),
			marketCommand(r),
			stallsCommand(r),
			stallCommand(r),
			rateCommand(r),
			ratingsCommand(r),
			photoCommand(r),
			migrateCommand(r),
			watchCommand(r),
		},
	}
}

func (r *runtime) load(c *cli.Context) error {
	if err := config.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	level := cfg.LogLevel
	if c.Bool("verbose") {
		level = zerolog.LevelDebugValue
	}
	r.cfg = cfg
	r.logger = logging.NewWithWriter("lopperater", level, r.errOut)
	return nil
}

// withApp builds the application for one command and closes it afterwards.
func (r *runtime) withApp(fn func(c *cli.Context, app *application) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		app, err := newApplication(c.Context, r.cfg, r.logger, r.out)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(c, app)
	}
}

// describe renders classified errors as user messages and everything else
// verbatim.
func describe(err error) string {
	if apperr.TypeOf(err) == "" {
		return err.Error()
	}
	return apperr.UserMessage(err)
}
