package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Clark-Hu/lopperater/internal/baasmock"
	"github.com/Clark-Hu/lopperater/internal/domain"
	"github.com/Clark-Hu/lopperater/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "baas-mock",
		Usage: "in-memory BaaS for local development",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Value: "9099", Usage: "port to listen on", EnvVars: []string{"MOCK_PORT"}},
			&cli.StringFlag{Name: "fixture", Value: "mock-baas.json", Usage: "path to fixture documents; empty starts blank"},
			&cli.StringFlag{Name: "project", Value: "lopperater-dev", Usage: "accepted X-Appwrite-Project"},
			&cli.StringFlag{Name: "database", Value: "lopperater", Usage: "database id"},
			&cli.StringFlag{Name: "api-key", Usage: "accepted X-Appwrite-Key; empty disables admin access"},
			&cli.StringFlag{Name: "jwt-secret", Value: "baasmock-dev-secret", EnvVars: []string{"SESSION_SECRET"}},
			&cli.DurationFlag{Name: "processing-delay", Value: 3 * time.Second, Usage: "simulated face-blur duration"},
			&cli.StringFlag{Name: "dev-user", Value: "dev-user", Usage: "user id of the printed development token"},
			&cli.StringFlag{Name: "dev-name", Value: "Dev Bruger"},
			&cli.StringFlag{Name: "dev-email", Value: "dev@lopperater.local"},
			&cli.StringSliceFlag{Name: "dev-roles", Value: cli.NewStringSlice(string(domain.RoleBuyer), string(domain.RoleSeller))},
			&cli.DurationFlag{Name: "token-ttl", Value: 24 * time.Hour},
			&cli.StringFlag{Name: "log-level", Value: "info", EnvVars: []string{"LOG_LEVEL"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New("baas-mock", c.String("log-level"))

	mock := baasmock.New(baasmock.Options{
		ProjectID:       c.String("project"),
		DatabaseID:      c.String("database"),
		APIKey:          c.String("api-key"),
		JWTSecret:       []byte(c.String("jwt-secret")),
		ProcessingDelay: c.Duration("processing-delay"),
		Logger:          logger,
	})

	if path := c.String("fixture"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open fixture: %w", err)
		}
		n, err := mock.LoadFixture(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load fixture: %w", err)
		}
		logger.Info().Str("fixture", path).Int("documents", n).Msg("fixture loaded")
	}

	user := domain.User{
		ID:    c.String("dev-user"),
		Name:  c.String("dev-name"),
		Email: c.String("dev-email"),
	}
	for _, r := range c.StringSlice("dev-roles") {
		user.Roles = append(user.Roles, domain.Role(strings.TrimSpace(r)))
	}
	token, err := mock.IssueToken(user, c.Duration("token-ttl"))
	if err != nil {
		return fmt.Errorf("issue dev token: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "development token for %s:\n%s\n", user.ID, token)

	srv := &http.Server{
		Addr:              ":" + c.String("port"),
		Handler:           mock.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("project", c.String("project")).Msg("mock baas listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
