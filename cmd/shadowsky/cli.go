package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dmoskov/shadowsky-sub002/internal/errors"
	"github.com/dmoskov/shadowsky-sub002/internal/ops"
	"github.com/dmoskov/shadowsky-sub002/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "shadowsky",
		Usage:   "Notification dashboard for your federated social account",
		Version: Version,
		Commands: []*cli.Command{
			syncCommand(deps),
			timelineCommand(deps),
			profilesCommand(deps),
			topCommand(deps),
			interactionsCommand(deps),
			statsCommand(deps),
			sweepCommand(deps),
			clearCommand(deps),
			serveCommand(deps),
		},
	}
	// Suppress cli's default error printing; main handles errors.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func syncCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull notifications since the last sync and fold them into the cache",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-pages", Usage: "Maximum notification pages to fetch"},
			&cli.IntFlag{Name: "page-size", Usage: "Notifications per page"},
		},
		Action: func(c *cli.Context) error {
			result, err := ops.Sync(c.Context, deps, ops.SyncInput{
				MaxPages: c.Int("max-pages"),
				PageSize: c.Int("page-size"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func timelineCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "timeline",
		Usage: "Fetch recent notifications folded into ranked events",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Notifications to pull", Value: ops.DefaultTimelineLimit},
			&cli.BoolFlag{Name: "posts", Usage: "Hydrate the posts events are about"},
		},
		Action: func(c *cli.Context) error {
			result, err := ops.Timeline(c.Context, deps, ops.TimelineInput{
				Limit:        c.Int("limit"),
				IncludePosts: c.Bool("posts"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func profilesCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "profiles",
		Usage:     "Resolve profiles for the given actors, cache-first",
		ArgsUsage: "<actor>...",
		Action: func(c *cli.Context) error {
			result, err := ops.Profiles(c.Context, deps, ops.ProfilesInput{
				Actors: c.Args().Slice(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func topCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "top",
		Usage: "Rank cached accounts by followers or interaction history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "by", Usage: "Ranking: followers or interactions", Value: ops.ByFollowers},
			&cli.IntFlag{Name: "limit", Usage: "Accounts to return", Value: ops.DefaultTopLimit},
			&cli.Int64Flag{Name: "min-followers", Usage: "Follower floor (followers mode only)"},
		},
		Action: func(c *cli.Context) error {
			result, err := ops.TopAccounts(deps, ops.TopAccountsInput{
				By:           c.String("by"),
				Limit:        c.Int("limit"),
				MinFollowers: c.Int64("min-followers"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func interactionsCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "interactions",
		Usage:     "Show the cached interaction history with one account",
		ArgsUsage: "<actor>",
		Action: func(c *cli.Context) error {
			result, err := ops.Interactions(deps, ops.InteractionsInput{
				Actor: c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func statsCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show cache, rate limiter, and sync run statistics",
		Action: func(c *cli.Context) error {
			result, err := ops.Stats(deps)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func sweepCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove stale profiles from the cache",
		Action: func(c *cli.Context) error {
			result, err := ops.Sweep(deps)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func clearCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Wipe all cached profiles and interaction history",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Required; clearing is irreversible"},
		},
		Action: func(c *cli.Context) error {
			result, err := ops.Clear(deps, ops.ClearInput{
				Confirm: c.Bool("confirm"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

func serveCommand(deps ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (host:port)"},
		},
		Action: func(c *cli.Context) error {
			addr := c.String("addr")
			if addr == "" && deps.Cfg != nil {
				addr = deps.Cfg.WebAddr
			}
			return web.Run(web.NewServer(deps, Version, addr))
		},
	}
}

// outputJSON writes the result to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats a failure for terminal users, keeping the error code
// visible so scripts can match on it.
func outputError(err error) error {
	if skyErr, ok := err.(*errors.SkyError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", skyErr.Code, skyErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
