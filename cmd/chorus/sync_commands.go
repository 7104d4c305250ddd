package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chorus/internal/ipc"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Trigger a sync cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sync()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Triggered {
					fmt.Fprintln(out, "Sync cycle triggered")
					return nil
				}
				if strings.TrimSpace(resp.Message) != "" {
					fmt.Fprintln(out, resp.Message)
					return nil
				}
				fmt.Fprintln(out, "Sync already in progress")
				return nil
			})
		},
	}
}

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Run a cycle that deletes orphaned tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Prune(purge)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				summary := resp.Summary
				fmt.Fprintf(out, "Prune cycle #%d %s: %d succeeded, %d failed in %s\n",
					summary.CycleID, summary.Outcome, summary.Succeeded, summary.Failed,
					formatCycleDuration(summary.DurationS))
				if purge {
					fmt.Fprintf(out, "Purged %d removed records\n", resp.Purged)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Drop records for already-deleted tracks from the database")
	return cmd
}

func formatCycleDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(time.Millisecond).String()
}
