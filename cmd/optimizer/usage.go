package main

import (
	"fmt"

	"github.com/ai-content-optimizer-go/internal/i18n"
	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print the request counter against the daily limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		usage, err := a.settings.Usage(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), a.localizer.Default(i18n.MsgUsage, map[string]interface{}{
			"Used":  usage.UsedRequests,
			"Limit": usage.DailyRequestLimit,
		}))
		return nil
	},
}

var usageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the request counter to zero",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.settings.ResetUsage(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Usage counter reset.")
		return nil
	},
}

func init() {
	usageCmd.AddCommand(usageResetCmd)
}
