// Command bgtask runs a batch of background checksum tasks whose results are
// post-processed on a single UI thread, optionally exposing Prometheus metrics.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Swind/go-background-task/internal/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bgtask",
		Usage: "compute in the background, post-process on the UI thread",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: ./bgtask.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file merged into the environment",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			configCommand(),
		},
	}
}

// loadConfig reads configuration using the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: c.String("config"),
		EnvFile:    c.String("env-file"),
	})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}
	return cfg, nil
}
