package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/histia/viewsift/internal/config"
	"github.com/histia/viewsift/internal/flatseq"
	"github.com/histia/viewsift/internal/mcpserver"
	"github.com/histia/viewsift/internal/nested"
	"github.com/histia/viewsift/internal/sharedview"
	"github.com/histia/viewsift/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "scrape":
		if err := runScrape(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "organize":
		if err := runOrganize(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "snapshots":
		if err := runSnapshots(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("viewsift %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// commonFlags holds the flags shared by every subcommand.
type commonFlags struct {
	configPath string
	cookie     string
	dbPath     string
	output     string
	verbose    bool
	positional []string
}

func parseFlags(args []string, boolFlags map[string]*bool) (commonFlags, error) {
	var f commonFlags

	takeValue := func(i *int, name string) (string, error) {
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		var err error
		switch arg := args[i]; {
		case arg == "--config":
			f.configPath, err = takeValue(&i, arg)
		case arg == "--cookie":
			f.cookie, err = takeValue(&i, arg)
		case arg == "--db":
			f.dbPath, err = takeValue(&i, arg)
		case arg == "--output" || arg == "-o":
			f.output, err = takeValue(&i, arg)
		case arg == "--verbose":
			f.verbose = true
		case boolFlags[arg] != nil:
			*boolFlags[arg] = true
		case strings.HasPrefix(arg, "-"):
			return f, fmt.Errorf("unknown flag: %s", arg)
		default:
			f.positional = append(f.positional, arg)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func newLogger(verbose bool) *charmlog.Logger {
	level := charmlog.WarnLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}

func resolve(f commonFlags, shareURL string) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  f.configPath,
		CLIShareURL: shareURL,
		CLICookie:   f.cookie,
		CLIDBPath:   f.dbPath,
	})
}

func runScrape(args []string) error {
	noSave := false
	f, err := parseFlags(args, map[string]*bool{"--no-save": &noSave, "-n": &noSave})
	if err != nil {
		return err
	}
	if len(f.positional) > 1 {
		return fmt.Errorf("expected at most one share link, got %d", len(f.positional))
	}
	url := ""
	if len(f.positional) == 1 {
		url = f.positional[0]
	}

	cfg, err := resolve(f, url)
	if err != nil {
		return err
	}
	if cfg.ShareURL.Value == "" {
		return fmt.Errorf("usage: viewsift scrape <share-url> [--cookie <cookie>] [--db <path>] [-o <file>] [--no-save]")
	}

	params, err := sharedview.ParseShareURL(cfg.ShareURL.Value)
	if err != nil {
		return err
	}
	reqCfg := sharedview.DefaultRequestConfig()
	params.Apply(&reqCfg)

	logger := newLogger(f.verbose)
	client := sharedview.NewClient(
		sharedview.WithCookie(cfg.Cookie.Value),
		sharedview.WithLogger(logger),
	)

	ctx := context.Background()
	fetched, err := client.Fetch(ctx, reqCfg)
	if err != nil {
		return fmt.Errorf("fetching shared view: %w", err)
	}

	result := nested.OrganizeAuto(fetched.Payload, cfg.Tables, flatseq.Metadata{
		SourceURL:   cfg.ShareURL.Value,
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
	})

	if !noSave && result.Error == "" {
		s, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer s.Close()

		snap, err := store.NewSnapshot(cfg.ShareURL.Value, result)
		if err != nil {
			return fmt.Errorf("building snapshot: %w", err)
		}
		id, created, err := s.SaveSnapshot(ctx, snap)
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		if created {
			fmt.Fprintf(os.Stderr, "Saved snapshot %d\n", id)
		} else {
			fmt.Fprintf(os.Stderr, "Unchanged since snapshot %d\n", id)
		}
	}

	return writeJSON(f.output, result)
}

func runOrganize(args []string) error {
	f, err := parseFlags(args, nil)
	if err != nil {
		return err
	}
	if len(f.positional) != 1 {
		return fmt.Errorf("usage: viewsift organize <payload.json|-> [-o <file>]")
	}

	var raw []byte
	if f.positional[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(f.positional[0])
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}

	cfg, err := resolve(f, "")
	if err != nil {
		return err
	}

	result := nested.OrganizeAuto(payload, cfg.Tables, flatseq.Metadata{})
	return writeJSON(f.output, result)
}

func runSnapshots(args []string) error {
	limit := 0
	sourceURL := ""

	// snapshots takes its own value flags on top of the shared ones, so pull
	// them out first.
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit":
			i++
			if i >= len(args) {
				return fmt.Errorf("--limit requires a value")
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("invalid --limit: %q", args[i])
			}
			limit = n
		case "--source":
			i++
			if i >= len(args) {
				return fmt.Errorf("--source requires a value")
			}
			sourceURL = args[i]
		default:
			rest = append(rest, args[i])
		}
	}

	f, err := parseFlags(rest, nil)
	if err != nil {
		return err
	}

	action := "list"
	if len(f.positional) > 0 {
		action = f.positional[0]
	}

	cfg, err := resolve(f, "")
	if err != nil {
		return err
	}
	s, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()

	switch action {
	case "list":
		snapshots, err := s.ListSnapshots(ctx, store.ListOpts{Limit: limit, SourceURL: sourceURL})
		if err != nil {
			return err
		}
		if len(snapshots) == 0 {
			fmt.Println("No snapshots stored")
			return nil
		}
		for _, snap := range snapshots {
			fmt.Printf("%4d  %s  %3d rows  %2d cols  %s\n",
				snap.ID,
				snap.FetchedAt.Format("2006-01-02 15:04"),
				snap.TotalRows,
				snap.TotalColumns,
				snap.SourceURL,
			)
		}
		return nil

	case "get":
		if len(f.positional) < 2 {
			return fmt.Errorf("usage: viewsift snapshots get <id>")
		}
		id, err := strconv.ParseInt(f.positional[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid snapshot id: %q", f.positional[1])
		}
		snap, err := s.GetSnapshot(ctx, id)
		if err != nil {
			return err
		}
		return writeRaw(f.output, snap.Result)

	case "latest":
		snap, err := s.LatestSnapshot(ctx, sourceURL)
		if err != nil {
			return err
		}
		return writeRaw(f.output, snap.Result)

	case "delete":
		if len(f.positional) < 2 {
			return fmt.Errorf("usage: viewsift snapshots delete <id>")
		}
		id, err := strconv.ParseInt(f.positional[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid snapshot id: %q", f.positional[1])
		}
		if err := s.DeleteSnapshot(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted snapshot %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown snapshots action: %s (expected list, get, latest or delete)", action)
	}
}

func runConfig(args []string) error {
	f, err := parseFlags(args, nil)
	if err != nil {
		return err
	}
	cfg, err := resolve(f, "")
	if err != nil {
		return err
	}
	// The cookie value is a credential; show provenance only.
	if cfg.Cookie.Value != "" {
		cfg.Cookie.Value = "(set)"
	}
	return writeJSON(f.output, cfg)
}

func runMCP(args []string) error {
	f, err := parseFlags(args, nil)
	if err != nil {
		return err
	}
	cfg, err := resolve(f, "")
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.Config{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	logger := newLogger(f.verbose)
	client := sharedview.NewClient(
		sharedview.WithCookie(cfg.Cookie.Value),
		sharedview.WithLogger(logger),
	)

	srv := mcpserver.NewServer(mcpserver.ServerConfig{
		Store:   s,
		Fetcher: client,
		Tables:  cfg.Tables,
		Version: version,
		Logger:  logger,
	})
	return server.ServeStdio(srv)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeRaw(path, data)
}

func writeRaw(path string, data []byte) error {
	if path == "" || path == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

func printUsage() {
	fmt.Printf(`viewsift %s — Reconstruct structured records from Airtable shared views

Usage:
  viewsift <command> [arguments]

Commands:
  scrape <share-url>  Fetch a shared view and reconstruct its records
  organize <file|->   Reconstruct records from a saved payload (JSON)
  snapshots           Browse stored snapshots (list, get <id>, latest, delete <id>)
  config              Print the resolved configuration and where each value came from
  mcp                 Serve the tools over the Model Context Protocol (stdio)
  version             Print version

Scrape Flags:
  --cookie <cookie>   Session cookie for views that require one
  -n, --no-save       Skip storing the result as a snapshot

Snapshot Flags:
  --source <url>      Restrict list/latest to one share link
  --limit <n>         Maximum entries to list

Flags:
  --config <path>     Config file (default: ~/.viewsift/config.yaml)
  --db <path>         Database path (default: ~/.viewsift/viewsift.db)
  -o, --output <file> Write output to a file instead of stdout
  --verbose           Debug logging
  -h, --help          Show this help message
  -v, --version       Print version

Documentation:
  https://github.com/histia/viewsift
`, version)
}
