package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent invocations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var (
	historyTool  string
	historyLimit int
	historyJSON  bool
)

func init() {
	historyCmd.Flags().StringVar(&historyTool, "tool", "", "Only show invocations of this tool")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	invocations, err := e.service.History(cmd.Context(), historyTool, historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		return writeJSON(out, invocations)
	}
	if len(invocations) == 0 {
		fmt.Fprintln(out, "No invocations yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTOOL\tSTATUS\tDURATION\tRESULT")
	for _, inv := range invocations {
		status := "✓"
		result := inv.Output
		if !inv.Success {
			status = "✗"
			result = inv.Error
		}
		if inv.EndedAt.IsZero() {
			status = "…"
		}
		duration := (time.Duration(inv.DurationMS) * time.Millisecond).String()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(inv.StartedAt), inv.Identifier, status, duration, firstLine(result, 50))
	}
	w.Flush()
	return nil
}
