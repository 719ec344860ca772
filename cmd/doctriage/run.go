package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/doctriage/internal/descriptor"
	"github.com/dgallion1/doctriage/internal/document"
	"github.com/dgallion1/doctriage/internal/parser"
	"github.com/dgallion1/doctriage/internal/pipeline"
	"github.com/dgallion1/doctriage/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage the documents named by the descriptor in the input directory",
	Long: `Read the descriptor (persona.json) from the input directory, rank the pages of
every listed document and write output.json to the output directory.`,
	RunE: runTriage,
}

func init() {
	runCmd.Flags().String("input", "", "input directory (default /app/input)")
	runCmd.Flags().String("output", "", "output directory (default /app/output)")
	runCmd.Flags().Int("workers", 1, "documents processed in parallel")
	addBackendFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runTriage(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	desc, err := descriptor.Load(filepath.Join(cfg.InputDir, cfg.DescriptorFile))
	if err != nil {
		return err
	}
	b, err := newBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	bar := newProgressBar(len(desc.Documents))
	opts := pipeline.Options{
		Workers:      cfg.WorkerCount,
		SnippetChars: cfg.SnippetChars,
		OnSkip: func(filename string, reason error) {
			if errors.Is(reason, document.ErrNotFound) {
				color.Yellow("Warning: %s not found in input/", filename)
				return
			}
			color.Yellow("Warning: %s skipped: %v", filename, reason)
		},
		OnDocument: func(string) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	}

	src := source.NewDir(cfg.InputDir, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
	t := pipeline.NewTriager(src, b.sim, b.extractor, log, opts)
	out, err := t.Run(ctx, pipeline.Request{Query: desc.Query(), Documents: desc.Filenames()})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if err := descriptor.ValidateOutput(out); err != nil {
		log.Warn("output does not match schema", "error", err)
	}

	path := filepath.Join(cfg.OutputDir, cfg.OutputFile)
	if err := pipeline.WriteOutput(path, out); err != nil {
		return err
	}
	color.Green("Output written to %s", path)
	return nil
}

// newProgressBar returns nil when progress output is disabled.
func newProgressBar(total int) *progressbar.ProgressBar {
	if quiet || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString("Triaging documents")),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
