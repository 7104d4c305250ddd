package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chorus/internal/ipc"
)

// statsOrder fixes the display order of lifecycle buckets.
var statsOrder = []string{"discovered", "processing", "completed", "failed", "removed"}

func buildStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 || stats["total"] == 0 {
		return nil
	}
	rows := make([][]string, 0, len(statsOrder)+1)
	for _, key := range statsOrder {
		count, ok := stats[key]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats["total"])})
	return rows
}

func buildRecordListRows(records []ipc.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		status := formatStatusLabel(record.Status)
		if record.Status == "failed" && record.FailedStage != "" {
			status = fmt.Sprintf("%s (%s)", status, record.FailedStage)
		}
		rows = append(rows, []string{
			record.ItemID,
			truncate(record.Title, 40),
			truncate(record.Uploader, 24),
			status,
			strings.Join(record.Playlists, ","),
			strconv.Itoa(record.AttemptCount),
		})
	}
	return rows
}

func buildCycleRows(cycles []ipc.Cycle) [][]string {
	rows := make([][]string, 0, len(cycles))
	for _, cycle := range cycles {
		rows = append(rows, []string{
			strconv.FormatInt(cycle.ID, 10),
			cycle.Trigger,
			cycle.Outcome,
			formatTimestamp(cycle.StartedAt),
			formatTimestamp(cycle.FinishedAt),
			truncate(cycle.Error, 48),
		})
	}
	return rows
}

func printRecordDetails(cmd *cobra.Command, record ipc.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item ID:    %s\n", record.ItemID)
	fmt.Fprintf(out, "Title:      %s\n", record.Title)
	fmt.Fprintf(out, "Uploader:   %s\n", record.Uploader)
	fmt.Fprintf(out, "Status:     %s\n", formatStatusLabel(record.Status))
	if record.FailedStage != "" {
		fmt.Fprintf(out, "Failed at:  %s\n", record.FailedStage)
	}
	if record.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", record.LastError)
	}
	if record.DurationSeconds > 0 {
		fmt.Fprintf(out, "Duration:   %s\n", (time.Duration(record.DurationSeconds) * time.Second).String())
	}
	fmt.Fprintf(out, "Playlists:  %s\n", strings.Join(record.Playlists, ", "))
	if record.LocalPath != "" {
		fmt.Fprintf(out, "Audio:      %s\n", record.LocalPath)
	}
	if record.LyricsPath != "" {
		fmt.Fprintf(out, "Lyrics:     %s\n", record.LyricsPath)
	}
	if record.ContentHash != "" {
		fmt.Fprintf(out, "Hash:       %s\n", record.ContentHash)
	}
	fmt.Fprintf(out, "Attempts:   %d\n", record.AttemptCount)
	if record.LastHeartbeat != "" {
		fmt.Fprintf(out, "Heartbeat:  %s\n", formatTimestamp(record.LastHeartbeat))
	}
	fmt.Fprintf(out, "Created:    %s\n", formatTimestamp(record.CreatedAt))
	fmt.Fprintf(out, "Updated:    %s\n", formatTimestamp(record.UpdatedAt))
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return strings.ToUpper(status[:1]) + status[1:]
}

func formatTimestamp(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
