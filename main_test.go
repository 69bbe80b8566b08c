package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	configx "github.com/jtavares/agentic-support-rag/pkg/config"
)

// Mutates global flag and env state, so no t.Parallel. Flags declared by the
// application must be registered before the config loader runs its single
// flag.Parse, otherwise -q or -env would abort with "flag provided but not
// defined".
func TestConfigLoaderParsesApplicationFlags(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("AGENT_SESSION_ID=from-env-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	query := flag.String("q", "", "answer a single query and exit")

	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
		os.Unsetenv("AGENT_SESSION_ID")
	})
	os.Args = []string{"agent", "-q", "where is my ticket", "-env", envFile}

	appCfg := configx.MustNew[AppConfig]("AGENT")

	if !flag.Parsed() {
		t.Fatal("expected config load to parse command-line flags")
	}
	if *query != "where is my ticket" {
		t.Fatalf("-q = %q, want %q", *query, "where is my ticket")
	}
	if appCfg.SessionID != "from-env-file" {
		t.Fatalf("SessionID = %q, want from-env-file", appCfg.SessionID)
	}
	if appCfg.MaxHandoffs != 4 {
		t.Fatalf("MaxHandoffs = %d, want default 4", appCfg.MaxHandoffs)
	}
}
