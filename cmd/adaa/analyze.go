package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/adaa/pkg/agent"
	"github.com/codeready-toolchain/adaa/pkg/agent/orchestrator"
	"github.com/codeready-toolchain/adaa/pkg/blob"
	"github.com/codeready-toolchain/adaa/pkg/dataset"
	"github.com/codeready-toolchain/adaa/pkg/models"
)

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Run the analysis pipeline on a local CSV file and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	cmd.Flags().String("charts-dir", "", "Write chart payloads under this directory (default: keep in memory)")
	cmd.Flags().Bool("events", false, "Print activity events to stderr as they happen")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("invalid CSV: %w", err)
	}

	var store blob.Store = blob.NewMemoryStore()
	if dir, _ := cmd.Flags().GetString("charts-dir"); dir != "" {
		fs, err := blob.NewFileStore(dir)
		if err != nil {
			return fmt.Errorf("failed to open charts directory: %w", err)
		}
		store = fs
	}

	var onEvent agent.EventCallback
	if printEvents, _ := cmd.Flags().GetBool("events"); printEvents {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		onEvent = func(e models.ActivityEvent) {
			_ = enc.Encode(e)
		}
	}

	o := orchestrator.New(orchestrator.Deps{
		Config:  cfg.Analysis,
		Store:   store,
		OnEvent: onEvent,
	})
	res := o.Run(cmd.Context(), uuid.New().String(), ds)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if res.Status == models.AnalysisFailed {
		return fmt.Errorf("analysis failed")
	}
	return nil
}
