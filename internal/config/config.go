// Package config defines the process-level command-line surface: the
// transport to speak (stdio MCP, the recall HTTP hook, or both), where the
// vector database and snapshot live, and where the local embedding model is
// loaded from.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Transport selects which server loops main() starts.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportBoth  Transport = "both"
)

type Config struct {
	Transport Transport
	HookPort  int
	DataDir   string
	ModelDir  string
	Debug     bool

	transportFlag string
}

// Bind registers the flags on cmd and returns a Config populated once cmd
// runs; read the returned pointer from inside RunE, after cobra has parsed
// and validated the flags in PreRunE.
func Bind(cmd *cobra.Command) *Config {
	cfg := &Config{}

	cmd.Flags().StringVar(&cfg.transportFlag, "transport", string(TransportStdio),
		"server transport: stdio, http, or both")
	cmd.Flags().IntVar(&cfg.HookPort, "hook-port", 8765,
		"port for the GET /api/recall editor-hook surface (http/both transports only)")
	cmd.Flags().StringVar(&cfg.DataDir, "data-dir", "",
		"directory holding the vector database and JSON snapshot (default: ~/.memorize-mcp)")
	cmd.Flags().StringVar(&cfg.ModelDir, "model-dir", "",
		"directory containing the local ONNX sentence-embedding model")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "enable debug-level structured logging")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		cfg.Transport = Transport(cfg.transportFlag)
		return cfg.validate()
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportBoth:
	default:
		return fmt.Errorf("--transport must be one of stdio, http, both (got %q)", c.Transport)
	}
	if c.Transport != TransportStdio && (c.HookPort < 1 || c.HookPort > 65535) {
		return fmt.Errorf("--hook-port must be between 1 and 65535, got %d", c.HookPort)
	}
	if c.ModelDir == "" {
		return fmt.Errorf("--model-dir is required: path to the local sentence-embedding model")
	}
	if c.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return fmt.Errorf("resolving default data dir: %w", err)
		}
		c.DataDir = dir
	}
	return nil
}

// DBPath is the sqlite-vec database file inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "memorize.db")
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".memorize-mcp"), nil
}
