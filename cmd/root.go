package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	flagCacheDir  string
	flagProject   string
	flagOllama    string
	flagModel     string
	flagChatModel string
)

var rootCmd = &cobra.Command{
	Use:   "codescope",
	Short: "Cross-file code context from a dependency graph and semantic search",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "cache directory (default ~/.codescope)")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", ".", "project root")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "http://localhost:11434", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "nomic-embed-text", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "qwen3:8b", "generative model for explanations")
}

// cacheDir resolves the cache directory, defaulting to ~/.codescope.
func cacheDir() (string, error) {
	if flagCacheDir != "" {
		return flagCacheDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codescope"), nil
}
