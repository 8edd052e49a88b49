package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/okian/pokerank/internal/adapters/repository"
	app "github.com/okian/pokerank/internal/app"
	"github.com/okian/pokerank/internal/config"
	"github.com/okian/pokerank/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "pokerank-admin",
		Usage:     "operate a pokerank store",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file (same keys as the server)",
				EnvVars: []string{"POKERANK_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "storage-driver",
				Usage: "override storage_driver: memory, postgres or sqlite",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "create or update the schema",
				Action: withService(func(c *cli.Context, _ *app.Service, store repository.Store) error {
					_, err := fmt.Fprintf(c.App.Writer, "schema ready on %s\n", store.Driver())
					return err
				}),
			},
			{
				Name:  "seed",
				Usage: "populate the catalogue if it is empty",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reset", Usage: "wipe votes and entities first"},
				},
				Action: withService(func(c *cli.Context, svc *app.Service, _ repository.Store) error {
					if c.Bool("reset") {
						if err := svc.Wipe(c.Context); err != nil {
							return err
						}
					}
					res, err := svc.Init(c.Context, false)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, res.Message)
					return err
				}),
			},
			{
				Name:  "reset-votes",
				Usage: "clear the ledger and restore default ratings",
				Action: withService(func(c *cli.Context, svc *app.Service, _ repository.Store) error {
					if err := svc.ResetVotes(c.Context); err != nil {
						return err
					}
					_, err := fmt.Fprintln(c.App.Writer, "votes reset")
					return err
				}),
			},
			{
				Name:  "wipe",
				Usage: "remove every vote and entity",
				Action: withService(func(c *cli.Context, svc *app.Service, _ repository.Store) error {
					if err := svc.Wipe(c.Context); err != nil {
						return err
					}
					_, err := fmt.Fprintln(c.App.Writer, "store wiped")
					return err
				}),
			},
			{
				Name:  "stats",
				Usage: "print aggregate statistics as JSON",
				Action: withService(func(c *cli.Context, svc *app.Service, _ repository.Store) error {
					st, err := svc.Stats(c.Context)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(c.App.Writer)
					enc.SetIndent("", "  ")
					return enc.Encode(st)
				}),
			},
		},
	}
}

type action func(c *cli.Context, svc *app.Service, store repository.Store) error

// withService loads config, opens the store and builds the service
// around a command.
func withService(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		if path := c.String("config"); path != "" {
			if err := os.Setenv("POKERANK_CONFIG", path); err != nil {
				return err
			}
		}
		cfg, err := config.Load(c.Context)
		if err != nil {
			return err
		}
		if driver := c.String("storage-driver"); driver != "" {
			cfg.StorageDriver = driver
		}
		if err := logger.SetLevelString(c.String("log-level")); err != nil {
			return err
		}

		log := logger.Get()
		store, err := repository.Open(c.Context, cfg, repository.WithLogger(log.Named("repository")))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		svc := app.FromConfig(cfg, store, log)
		defer svc.Stop()
		return fn(c, svc, store)
	}
}
