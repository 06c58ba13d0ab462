package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func bindAndParse(t *testing.T, args []string) (*Config, error) {
	t.Helper()
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	cfg := Bind(cmd)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return cfg, err
}

func TestValidTransportAndModelDirSucceeds(t *testing.T) {
	cfg, err := bindAndParse(t, []string{"--model-dir", "/models/minilm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("expected default stdio transport, got %q", cfg.Transport)
	}
	if cfg.DataDir == "" {
		t.Fatal("expected default data dir to be resolved")
	}
}

func TestMissingModelDirFails(t *testing.T) {
	_, err := bindAndParse(t, []string{})
	if err == nil {
		t.Fatal("expected error for missing --model-dir")
	}
}

func TestInvalidTransportFails(t *testing.T) {
	_, err := bindAndParse(t, []string{"--model-dir", "/models/minilm", "--transport", "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for invalid --transport")
	}
}

func TestHTTPTransportRequiresValidHookPort(t *testing.T) {
	_, err := bindAndParse(t, []string{"--model-dir", "/models/minilm", "--transport", "http", "--hook-port", "0"})
	if err == nil {
		t.Fatal("expected error for out-of-range --hook-port")
	}
}

func TestExplicitDataDirIsPreserved(t *testing.T) {
	cfg, err := bindAndParse(t, []string{"--model-dir", "/models/minilm", "--data-dir", "/tmp/memorize-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir != "/tmp/memorize-test" {
		t.Fatalf("expected explicit data dir to be preserved, got %q", cfg.DataDir)
	}
	if cfg.DBPath() != "/tmp/memorize-test/memorize.db" {
		t.Fatalf("unexpected db path: %q", cfg.DBPath())
	}
}
