package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfig_Precedence_ConfigEnvCLI(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `db_path: ~/.viewsift/from-config.db
share_url: https://airtable.com/appCFG/shrCFG
cookie: cookie-from-config
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VIEWSIFT_DB", "~/from-env.db")
	t.Setenv("VIEWSIFT_COOKIE", "cookie-from-env")

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: cfgPath,
		CLIDBPath:  "~/from-cli.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.DBPath.Source != SourceCLI {
		t.Fatalf("expected db path source cli, got %s", resolved.DBPath.Source)
	}
	if resolved.Cookie.Source != SourceEnv || resolved.Cookie.Value != "cookie-from-env" {
		t.Fatalf("expected cookie from env, got %+v", resolved.Cookie)
	}
	if resolved.ShareURL.Source != SourceConfig {
		t.Fatalf("expected share url from config, got %s", resolved.ShareURL.Source)
	}
	if resolved.ShareURL.Value != "https://airtable.com/appCFG/shrCFG" {
		t.Fatalf("share url = %q", resolved.ShareURL.Value)
	}
}

func TestResolveConfig_MissingFileUsesDefaults(t *testing.T) {
	tmp := t.TempDir()

	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(tmp, "absent.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if resolved.DBPath.Value != "" {
		t.Fatalf("expected empty db path, got %q", resolved.DBPath.Value)
	}
	if resolved.TablesSource != SourceDefault {
		t.Fatalf("tables source = %s", resolved.TablesSource)
	}
	if len(resolved.Tables.FunctionWords) == 0 {
		t.Fatal("default keyword tables missing")
	}
}

func TestResolveConfig_KeywordTablesOverride(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	yaml := `keywords:
  program:
    - Accelerator
    - Fellowship
  name_stopwords:
    - avatar
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	resolved, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}

	if resolved.TablesSource != SourceConfig {
		t.Fatalf("tables source = %s", resolved.TablesSource)
	}
	if len(resolved.Tables.ProgramKeywords) != 2 || resolved.Tables.ProgramKeywords[0] != "Accelerator" {
		t.Fatalf("program keywords = %v", resolved.Tables.ProgramKeywords)
	}
	if len(resolved.Tables.NameStopwords) != 1 || resolved.Tables.NameStopwords[0] != "avatar" {
		t.Fatalf("name stopwords = %v", resolved.Tables.NameStopwords)
	}
	// unspecified lists keep their defaults
	if len(resolved.Tables.FunctionWords) == 0 {
		t.Fatal("function words should fall back to defaults")
	}
}

func TestResolveConfig_ExpandsUserDBPath(t *testing.T) {
	resolved, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		CLIDBPath:  "~/data/viewsift.db",
	})
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	want := filepath.Join(home, "data", "viewsift.db")
	if resolved.DBPath.Value != want {
		t.Fatalf("db path = %q, want %q", resolved.DBPath.Value, want)
	}
}

func TestResolveConfig_MalformedYAML(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("db_path: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: cfgPath}); err == nil {
		t.Fatal("expected a parse error")
	}
}
