// Command doctriage ranks the pages of a document set against a persona and
// a job to be done and reports the best section of each document.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/doctriage/internal/config"
)

var (
	configPath string
	logFormat  string
	logLevel   string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:           "doctriage",
	Short:         "Persona-driven document triage",
	Long:          "doctriage picks the most relevant page of every document for a persona and job to be done, and extracts its heading and a snippet.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DOCTRIAGE_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format: json or text")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// loadConfig reads file and environment settings, then applies any flags
// the user set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		cfg.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("workers") {
		cfg.WorkerCount, _ = flags.GetInt("workers")
	}
	if flags.Changed("similarity") {
		cfg.SimilarityBackend, _ = flags.GetString("similarity")
	}
	if flags.Changed("keywords") {
		cfg.KeywordBackend, _ = flags.GetString("keywords")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}
	return cfg, nil
}

// addBackendFlags registers the flags shared by commands that run triage.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().String("similarity", "", "similarity backend: lexical or ollama")
	cmd.Flags().String("keywords", "", "keyword backend: prose, rules or claude")
}
