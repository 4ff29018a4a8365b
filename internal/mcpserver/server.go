// Package mcpserver exposes viewsift over the Model Context Protocol: one
// tool to reconstruct records from a raw payload, one to fetch and
// reconstruct a live shared view, and one to browse stored snapshots.
// Stdio transport only; agents run the binary directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/histia/viewsift/internal/flatseq"
	"github.com/histia/viewsift/internal/nested"
	"github.com/histia/viewsift/internal/sharedview"
	"github.com/histia/viewsift/internal/store"
)

// Fetcher fetches shared-view payloads. *sharedview.Client satisfies it; tests
// substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, cfg sharedview.RequestConfig) (*sharedview.FetchResult, error)
}

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Fetcher Fetcher
	Tables  flatseq.KeywordTables
	Version string
	// Logger receives tool activity. Defaults to the package default logger.
	Logger *log.Logger
}

// dbMu serializes tool calls that touch the database. The mcp-go library
// dispatches handlers concurrently and SQLite supports one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all viewsift tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	cfg.Tables = cfg.Tables.Defaulted()
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := server.NewMCPServer(
		"viewsift",
		ver,
		server.WithToolCapabilities(false),
	)

	registerOrganizeTool(s, cfg.Tables)
	registerScrapeTool(s, cfg)
	registerSnapshotsTool(s, cfg.Store)

	return s
}

func registerOrganizeTool(s *server.MCPServer, tables flatseq.KeywordTables) {
	tool := mcp.NewTool("viewsift_organize",
		mcp.WithDescription("Reconstruct structured company records from a raw Airtable shared-view payload (JSON). Accepts both the flat value sequence and the nested table format."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("The raw shared-view payload as a JSON object string"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("payload")
		if err != nil {
			return mcp.NewToolResultError("payload is required"), nil
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("payload is not a JSON object: %v", err)), nil
		}

		result := nested.OrganizeAuto(payload, tables, flatseq.Metadata{})
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerScrapeTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("viewsift_scrape",
		mcp.WithDescription("Fetch an Airtable shared view and reconstruct its records. Stores the result as a snapshot unless save is false."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Shared view link, e.g. https://airtable.com/appXXX/shrXXX"),
		),
		mcp.WithBoolean("save",
			mcp.Description("Store the reconstructed result as a snapshot (default: true)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		link, err := req.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		if cfg.Fetcher == nil {
			return mcp.NewToolResultError("scraping is not configured"), nil
		}

		params, err := sharedview.ParseShareURL(strings.TrimSpace(link))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid share link: %v", err)), nil
		}
		reqCfg := sharedview.DefaultRequestConfig()
		params.Apply(&reqCfg)

		fetched, err := cfg.Fetcher.Fetch(ctx, reqCfg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetch error: %v", err)), nil
		}

		result := nested.OrganizeAuto(fetched.Payload, cfg.Tables, flatseq.Metadata{
			SourceURL:   link,
			StatusCode:  fetched.StatusCode,
			ContentType: fetched.ContentType,
		})
		cfg.Logger.Debug("organized shared view", "url", link, "rows", len(result.Rows))

		save := true
		if v, err := req.RequireBool("save"); err == nil {
			save = v
		}
		if save && cfg.Store != nil && result.Error == "" {
			snap, err := store.NewSnapshot(link, result)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("snapshot error: %v", err)), nil
			}
			dbMu.Lock()
			id, created, err := cfg.Store.SaveSnapshot(ctx, snap)
			dbMu.Unlock()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving snapshot: %v", err)), nil
			}
			cfg.Logger.Debug("stored snapshot", "id", id, "created", created)
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSnapshotsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("viewsift_snapshots",
		mcp.WithDescription("Browse stored reconstruction snapshots: list them, fetch one by id, or get the latest."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("action",
			mcp.Description("One of: list, get, latest (default: list)"),
			mcp.Enum("list", "get", "latest"),
		),
		mcp.WithNumber("id",
			mcp.Description("Snapshot id, required for action=get"),
		),
		mcp.WithString("source_url",
			mcp.Description("Restrict list/latest to one share link"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries for action=list (default: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if st == nil {
			return mcp.NewToolResultError("snapshot store is not configured"), nil
		}

		dbMu.Lock()
		defer dbMu.Unlock()

		action := "list"
		if a, err := req.RequireString("action"); err == nil && a != "" {
			action = a
		}

		switch action {
		case "get":
			idVal, err := req.RequireFloat("id")
			if err != nil {
				return mcp.NewToolResultError("id is required for action=get"), nil
			}
			snap, err := st.GetSnapshot(ctx, int64(idVal))
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading snapshot: %v", err)), nil
			}
			return mcp.NewToolResultText(renderSnapshot(snap)), nil

		case "latest":
			sourceURL := ""
			if u, err := req.RequireString("source_url"); err == nil {
				sourceURL = u
			}
			snap, err := st.LatestSnapshot(ctx, sourceURL)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading latest snapshot: %v", err)), nil
			}
			return mcp.NewToolResultText(renderSnapshot(snap)), nil

		default:
			opts := store.ListOpts{Limit: 20}
			if u, err := req.RequireString("source_url"); err == nil {
				opts.SourceURL = u
			}
			if n, err := req.RequireFloat("limit"); err == nil && int(n) > 0 {
				opts.Limit = int(n)
			}
			snapshots, err := st.ListSnapshots(ctx, opts)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("listing snapshots: %v", err)), nil
			}
			entries := make([]snapshotSummary, len(snapshots))
			for i, snap := range snapshots {
				entries[i] = summarize(snap)
			}
			data, _ := json.MarshalIndent(entries, "", "  ")
			return mcp.NewToolResultText(string(data)), nil
		}
	})
}

// snapshotSummary is the list-view shape: everything except the result blob.
type snapshotSummary struct {
	ID           int64  `json:"id"`
	SourceURL    string `json:"source_url"`
	ContentHash  string `json:"content_hash"`
	FetchedAt    string `json:"fetched_at"`
	TotalColumns int    `json:"total_columns"`
	TotalRows    int    `json:"total_rows"`
}

func summarize(snap *store.Snapshot) snapshotSummary {
	return snapshotSummary{
		ID:           snap.ID,
		SourceURL:    snap.SourceURL,
		ContentHash:  snap.ContentHash,
		FetchedAt:    snap.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
		TotalColumns: snap.TotalColumns,
		TotalRows:    snap.TotalRows,
	}
}

func renderSnapshot(snap *store.Snapshot) string {
	out := map[string]any{
		"snapshot": summarize(snap),
		"result":   json.RawMessage(snap.Result),
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}
