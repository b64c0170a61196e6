package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sin-text/backend/internal/app"
	"github.com/sin-text/backend/internal/config"
	"github.com/sin-text/backend/internal/observability"
	"github.com/sin-text/backend/internal/progress"
	"github.com/spf13/cobra"
)

var (
	summarizeMode   string
	summarizeOutput string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <pdf>",
	Short: "Run the summary pipeline on one PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeMode, "mode", "m", "", "pipeline mode: single or segmented (default from config)")
	summarizeCmd.Flags().StringVarP(&summarizeOutput, "out", "o", "", "copy the generated document to this path")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if summarizeMode != "" {
		cfg.Pipeline.Mode = summarizeMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Advanced.LogLevel
	if verbose {
		level = "debug"
	}
	log := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      cmd.ErrOrStderr(),
		ServiceName: "sintext",
	})

	components, err := app.Build(cfg, log)
	if err != nil {
		return err
	}

	src, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	upload, err := components.Uploads.Save(filepath.Base(args[0]), src)
	src.Close()
	if err != nil {
		return err
	}

	sink := progress.NewLogSink(log)
	defer sink.Close()

	result, err := components.Runner.Process(cmd.Context(), upload, sink)
	if err != nil {
		return err
	}

	path := filepath.Join(components.Artifacts.Dir(), result.FileName)
	if summarizeOutput != "" {
		if err := copyFile(path, summarizeOutput); err != nil {
			return err
		}
		path = summarizeOutput
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func copyFile(src, dst string) error {
	if !strings.HasSuffix(strings.ToLower(dst), ".docx") {
		dst += ".docx"
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return out.Close()
}
