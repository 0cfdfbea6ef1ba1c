package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/ai-content-optimizer-go/internal/services/analysis"
	"github.com/spf13/cobra"
)

var (
	analyzeFile   string
	analyzeItemID int64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze content from a file or stdin and print the suggestions as HTML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// keep stdout for the result
		if cfg.Logging.Output == "stdout" {
			log.SetOutput(os.Stderr)
		}

		input := cmd.InOrStdin()
		if analyzeFile != "" {
			f, err := os.Open(analyzeFile)
			if err != nil {
				return fmt.Errorf("failed to open content file: %w", err)
			}
			defer f.Close()
			input = f
		}

		content, err := io.ReadAll(input)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		suggestion, err := a.analysis.Analyze(cmd.Context(), analyzeItemID, string(content))
		if errors.Is(err, analysis.ErrNoContent) {
			fmt.Fprintf(cmd.OutOrStdout(), "<p>%s</p>\n", a.localizer.Default(i18n.MsgNoContent, nil))
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), suggestion.HTML)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read content from file instead of stdin")
	analyzeCmd.Flags().Int64Var(&analyzeItemID, "item-id", 0, "content item the suggestion is stored under")
}
