package loggen

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/okian/lasertrack/internal/domain/model"
)

// Command returns the `generate` subcommand.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "write synthetic match logs and optionally load them into a running service",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "seed", Value: DefaultSeed, Usage: "generator seed (non-zero)"},
			&cli.IntFlag{Name: "matches", Value: DefaultMatches, Usage: "number of matches"},
			&cli.IntFlag{Name: "roster", Value: DefaultRoster, Usage: "accounts in the player pool"},
			&cli.IntFlag{Name: "team-size", Value: DefaultTeamSize, Usage: "players per team"},
			&cli.StringFlag{Name: "mode", Usage: "elimination or ball; empty alternates both"},
			&cli.StringFlag{Name: "arena", Value: DefaultArena},
			&cli.StringFlag{Name: "out", Usage: "directory for the generated logs"},
			&cli.StringFlag{Name: "url", Usage: "base URL of a running service to load"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * 2, Usage: "concurrent submitters"},
			&cli.DurationFlag{Name: "timeout", Value: DefaultTimeout, Usage: "HTTP request timeout"},
			&cli.DurationFlag{Name: "drain-timeout", Value: DefaultDrainTimeout, Usage: "wait for queued imports"},
			&cli.IntFlag{Name: "top", Value: DefaultTopN, Usage: "leaderboard rows to verify"},
			&cli.BoolFlag{Name: "verbose"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configFromFlags(c)
			if err != nil {
				return err
			}
			if cfg.OutputDir == "" && cfg.BaseURL == "" {
				return fmt.Errorf("%w: set --out, --url or both", ErrInvalidConfig)
			}
			_, err = Run(c.Context, &cfg)
			return err
		},
	}
}

func configFromFlags(c *cli.Context) (Config, error) {
	cfg := DefaultConfig()
	cfg.Seed = c.Int64("seed")
	cfg.Matches = c.Int("matches")
	cfg.Roster = c.Int("roster")
	cfg.TeamSize = c.Int("team-size")
	cfg.Arena = c.String("arena")
	cfg.OutputDir = c.String("out")
	cfg.BaseURL = c.String("url")
	cfg.Workers = c.Int("workers")
	cfg.Timeout = c.Duration("timeout")
	cfg.DrainTimeout = c.Duration("drain-timeout")
	cfg.TopN = c.Int("top")
	cfg.Verbose = c.Bool("verbose")
	if raw := c.String("mode"); raw != "" {
		mode, err := model.ParseMode(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	return cfg, nil
}
