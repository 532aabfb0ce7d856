package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"github.com/thomasdelaet/kad-telemetry/config"
	"github.com/thomasdelaet/kad-telemetry/persistence"
)

var (
	initDataDir  string
	initListen   string
	initBackend  string
	initOverride bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new node",
	Long: `Initialize a new node with a configuration file and a fresh identity.

This command creates:
  - config.toml: Node configuration
  - data/: Data directory for telemetry samples

Example:
  kadtelemetry init --data-dir ./node --backend badger`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", ".", "directory for configuration and data")
	initCmd.Flags().StringVar(&initListen, "listen", "/ip4/127.0.0.1/tcp/4650/ws", "listen multiaddr")
	initCmd.Flags().StringVar(&initBackend, "backend", persistence.SchemeLevelDB, "persistence backend (leveldb, badger, memory)")
	initCmd.Flags().BoolVar(&initOverride, "force", false, "override existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = "."
	}

	configPath := filepath.Join(dataDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !initOverride {
		return fmt.Errorf("config.toml already exists; use --force to override")
	}

	id, err := generatePeerID()
	if err != nil {
		return fmt.Errorf("generating node identity: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Node.ID = id.String()
	cfg.Node.ListenAddr = initListen

	switch initBackend {
	case persistence.SchemeLevelDB, persistence.SchemeBadger:
		cfg.Telemetry.Filename = initBackend + ":" + filepath.Join(dataDir, "data", "telemetry")
	case persistence.SchemeMemory:
		cfg.Telemetry.Filename = persistence.SchemeMemory + ":"
	default:
		return fmt.Errorf("invalid backend: %s (must be one of: leveldb, badger, memory)", initBackend)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dataDir, err)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return err
	}

	if err := config.WriteConfigFile(configPath, cfg); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized kadtelemetry node\n")
	fmt.Fprintf(out, "  Node ID:     %s\n", cfg.Node.ID)
	fmt.Fprintf(out, "  Listen:      %s\n", cfg.Node.ListenAddr)
	fmt.Fprintf(out, "  Persistence: %s\n", cfg.Telemetry.Filename)
	fmt.Fprintf(out, "  Config:      %s\n", configPath)

	return nil
}

// generatePeerID derives a peer ID from a fresh Ed25519 key.
func generatePeerID() (peer.ID, error) {
	_, pub, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return "", err
	}
	return peer.IDFromPublicKey(pub)
}
