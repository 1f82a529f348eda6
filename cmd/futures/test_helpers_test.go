package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"futures/internal/config"
	"futures/internal/domain"
	"futures/internal/testsupport"
	"futures/internal/workitem"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *workitem.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	configPath := filepath.Join(testsupport.BaseDir(cfg), "futures.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) buyer(t *testing.T) int64 {
	t.Helper()
	var id int64
	ctx := context.Background()
	err := e.store.WriteTx(ctx, func(tx *workitem.Tx) error {
		var err error
		id, err = domain.NewTx(tx.SQL(), true).CreateMemberRelationship(ctx, domain.MemberRelationship{MemberID: "1"})
		return err
	})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	return id
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
