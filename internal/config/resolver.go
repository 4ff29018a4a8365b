// Package config resolves viewsift settings from the config file, the
// environment, and CLI flags, with later sources winning. Every resolved
// value records where it came from so `viewsift config` style debugging stays
// possible.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/histia/viewsift/internal/flatseq"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-provided overrides into resolution.
type ResolveOptions struct {
	ConfigPath  string
	CLIShareURL string
	CLICookie   string
	CLIDBPath   string
}

// ResolvedConfig is the merged configuration with per-value provenance.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	ShareURL ResolvedValue `json:"share_url"`
	Cookie   ResolvedValue `json:"cookie"`

	// Tables are the field-mapper keyword tables; overriding them retargets
	// the heuristics at a different base without a rebuild.
	Tables       flatseq.KeywordTables `json:"-"`
	TablesSource ValueSource           `json:"tables_source"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	ShareURL string `yaml:"share_url"`
	Cookie   string `yaml:"cookie"`
	Keywords struct {
		Program          []string `yaml:"program"`
		FunctionWords    []string `yaml:"function_words"`
		NameStopwords    []string `yaml:"name_stopwords"`
		SentenceStarters []string `yaml:"sentence_starters"`
	} `yaml:"keywords"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".viewsift", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath:   path,
		Tables:       flatseq.DefaultTables(),
		TablesSource: SourceDefault,
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.ShareURL, cfg.ShareURL, SourceConfig, path)
		apply(&out.Cookie, cfg.Cookie, SourceConfig, path)

		kw := cfg.Keywords
		if len(kw.Program) > 0 || len(kw.FunctionWords) > 0 ||
			len(kw.NameStopwords) > 0 || len(kw.SentenceStarters) > 0 {
			if len(kw.Program) > 0 {
				out.Tables.ProgramKeywords = kw.Program
			}
			if len(kw.FunctionWords) > 0 {
				out.Tables.FunctionWords = kw.FunctionWords
			}
			if len(kw.NameStopwords) > 0 {
				out.Tables.NameStopwords = kw.NameStopwords
			}
			if len(kw.SentenceStarters) > 0 {
				out.Tables.SentenceStarters = kw.SentenceStarters
			}
			out.TablesSource = SourceConfig
		}
	}

	applyEnv(&out.DBPath, "VIEWSIFT_DB")
	applyEnv(&out.DBPath, "VIEWSIFT_DB_PATH")
	applyEnv(&out.ShareURL, "VIEWSIFT_SHARE_URL")
	applyEnv(&out.Cookie, "VIEWSIFT_COOKIE")

	apply(&out.ShareURL, opts.CLIShareURL, SourceCLI, "url argument")
	apply(&out.Cookie, opts.CLICookie, SourceCLI, "--cookie")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
