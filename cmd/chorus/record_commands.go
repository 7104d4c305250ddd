package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chorus/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordList(listStatuses)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintln(out, "No tracked records")
					return nil
				}
				table := renderTable(
					[]string{"Item ID", "Title", "Uploader", "Status", "Playlists", "Attempts"},
					buildRecordListRows(resp.Records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by record status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show details for one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := strings.TrimSpace(args[0])
			if itemID == "" {
				return errors.New("item id is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordDescribe(itemID)
				if err != nil {
					return err
				}
				printRecordDetails(cmd, resp.Record)
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [item-id]",
		Short: "Reset failed records for another attempt",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID := ""
			if len(args) == 1 {
				itemID = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(itemID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case itemID != "" && resp.Updated > 0:
					fmt.Fprintf(out, "Record %s reset for retry\n", itemID)
				case itemID != "":
					fmt.Fprintf(out, "Record %s is not in failed state\n", itemID)
				default:
					fmt.Fprintf(out, "Reset %d failed records\n", resp.Updated)
				}
				return nil
			})
		},
	}
}

func newCyclesCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Show recent sync cycle history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cycles(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Cycles) == 0 {
					fmt.Fprintln(out, "No cycle history")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Trigger", "Outcome", "Started", "Finished", "Error"},
					buildCycleRows(resp.Cycles),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of cycles to show")
	return cmd
}

func newDBHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Short: "Show state database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Database", boolKind(resp.DatabaseExists), resp.DBPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Readable", boolKind(resp.DatabaseReadable), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Schema", boolKind(resp.TableExists), fmt.Sprintf("version %s", resp.SchemaVersion), colorize))
				fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(resp.IntegrityCheck), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Records", statusInfo, fmt.Sprintf("%d", resp.TotalRecords), colorize))
				if strings.TrimSpace(resp.Error) != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, resp.Error, colorize))
				}
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
