package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doctriage/internal/descriptor"
	"github.com/dgallion1/doctriage/internal/pipeline"
)

var keywordsJSON bool

var keywordsCmd = &cobra.Command{
	Use:   "keywords [descriptor]",
	Short: "Print the focus keywords extracted from a descriptor",
	Long: `Print the focus keywords the page scorer and heading selector will use for a
descriptor. Defaults to the descriptor in the input directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeywords,
}

func init() {
	keywordsCmd.Flags().String("input", "", "input directory (default /app/input)")
	keywordsCmd.Flags().BoolVar(&keywordsJSON, "json", false, "print keywords as a JSON array")
	addBackendFlags(keywordsCmd)
	rootCmd.AddCommand(keywordsCmd)
}

func runKeywords(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := filepath.Join(cfg.InputDir, cfg.DescriptorFile)
	if len(args) == 1 {
		path = args[0]
	}
	desc, err := descriptor.Load(path)
	if err != nil {
		return err
	}

	b, err := newBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	t := pipeline.NewTriager(nil, b.sim, b.extractor, newLogger(os.Stderr), pipeline.Options{})
	keywords, err := t.Keywords(cmd.Context(), desc.Query())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if keywordsJSON {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		return enc.Encode(keywords)
	}
	for _, kw := range keywords {
		fmt.Fprintln(out, kw)
	}
	return nil
}
