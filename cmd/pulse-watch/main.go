// ABOUTME: Entry point for pulse-watch, the realtime delivery core's ops CLI
// ABOUTME: Wires config, logging, and the cobra command tree

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var version = "dev"

var (
	configPath string
	tokenFlag  string
	roleFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "pulse-watch",
	Short: "Watch the marketplace realtime stream from the terminal",
	Long: `pulse-watch connects the realtime delivery core to a terminal:
it opens the push channel, subscribes the personal notification and chat
inbox topics, and prints everything that arrives.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pulse-watch version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "bearer token (overrides PULSE_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "buyer", "active role: buyer or seller")
	rootCmd.AddCommand(versionCmd, watchCmd)
}

// defaultConfigPath resolves the config file location.
// Priority: --config flag > PULSE_CONFIG env > ~/.config/pulse/client.yaml
func defaultConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("PULSE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "client.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "pulse", "client.yaml")
}

// setupLogger builds the process logger from the logging config section.
func setupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	// A local .env is optional; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
