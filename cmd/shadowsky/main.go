package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmoskov/shadowsky-sub002/internal/bsky"
	"github.com/dmoskov/shadowsky-sub002/internal/cache"
	"github.com/dmoskov/shadowsky-sub002/internal/config"
	"github.com/dmoskov/shadowsky-sub002/internal/enrich"
	"github.com/dmoskov/shadowsky-sub002/internal/mcp"
	"github.com/dmoskov/shadowsky-sub002/internal/ops"
	"github.com/dmoskov/shadowsky-sub002/internal/ratelimit"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"sync": true, "timeline": true, "profiles": true, "top": true,
	"interactions": true, "stats": true, "sweep": true, "clear": true,
	"serve": true,
	"help":  true,
}

// isCLIMode decides between running a CLI command and serving MCP.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner greets interactive users who ran the binary with no args.
func printBanner() {
	fmt.Println(`
        _           _                    _
   ___ | |_  __ _  | | ___  __ __ __ ___| |__ _  _
  (_-< | ' \/ _' | / _' \ \/ V  V /(_-< | / /| || |
  /__/ |_||_\__,_| \__,_|\_/\_/\_/ /__/ |_\_\ \_, |
                                              |__/

  Notification dashboard for your federated account

  Usage: shadowsky <command> [options]
         shadowsky --help

  MCP server mode requires piped input.`)
}

func main() {
	// A bare invocation on a terminal gets the banner, not an MCP server.
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before touching the cache (no store needed)
	if isHelpOrVersion() {
		app := newCLIApp(ops.Deps{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".shadowsky")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := cache.Open(baseDir, cfg.StaleAfter())
	if err != nil {
		// A broken cache degrades to empty reads and dropped writes; the
		// live service still works.
		fmt.Fprintf(os.Stderr, "warning: cache unavailable, continuing without persistence: %v\n", err)
		store = cache.Degraded(cfg.StaleAfter())
	}
	defer store.Close()
	store.ConfigurePool(cfg)

	deps := buildDeps(store, cfg)

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// An unknown argument on a terminal is a typo, not an MCP client.
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'shadowsky --help' for usage.\n")
		os.Exit(1)
	}

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled tools: %s\n", strings.Join(unknown, ", "))
	}

	// MCP server mode (default)
	if err := mcp.Run(deps, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildDeps wires the shared operation dependencies from config.
func buildDeps(store *cache.Store, cfg *config.Config) ops.Deps {
	client := bsky.NewHTTPClient(cfg.ServiceURL, cfg.AccessToken)
	limiter := buildLimiter(cfg)
	return ops.Deps{
		Store:    store,
		Client:   client,
		Enricher: enrich.New(store, client, limiter),
		Limiter:  limiter,
		Cfg:      cfg,
	}
}

// buildLimiter converts the config's rate classes into limiter classes.
func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(map[string]ratelimit.Class{
		ratelimit.ClassProfile: toClass(cfg.ProfileLimit),
		ratelimit.ClassPost:    toClass(cfg.PostLimit),
		ratelimit.ClassAPI:     toClass(cfg.APILimit),
	})
}

func toClass(rc config.RateClass) ratelimit.Class {
	return ratelimit.Class{
		Capacity:      rc.Capacity,
		RefillPerSec:  rc.RefillPerSec,
		MinDelay:      time.Duration(rc.MinDelayMs) * time.Millisecond,
		AdaptiveAfter: rc.AdaptiveAfter,
	}
}
