package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fentz26/toolbench/internal/controlplane"
	"github.com/fentz26/toolbench/internal/output"
	"github.com/fentz26/toolbench/internal/schema"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List, inspect, select and invoke tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools grouped by server",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsShowCmd = &cobra.Command{
	Use:   "show <tool-id>",
	Short: "Show a tool and its parameters",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsShow,
}

var toolsInvokeCmd = &cobra.Command{
	Use:   "invoke <tool-id>",
	Short: "Invoke a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsInvoke,
}

var toolsSelectCmd = &cobra.Command{
	Use:   "select <tool-id>",
	Short: "Select a tool; the selection is remembered across sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsSelect,
}

var toolsSelectedCmd = &cobra.Command{
	Use:   "selected",
	Short: "Show the selected tool",
	Args:  cobra.NoArgs,
	RunE:  runToolsSelected,
}

var toolsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the selection",
	Args:  cobra.NoArgs,
	RunE:  runToolsClear,
}

var (
	listFilter   string
	asJSON       bool
	invokeParams string
	invokePrompt bool
)

// errInvokeFailed is returned after a failed result has been printed.
var errInvokeFailed = errors.New("invocation failed")

func init() {
	toolsCmd.AddCommand(toolsListCmd, toolsShowCmd, toolsInvokeCmd, toolsSelectCmd, toolsSelectedCmd, toolsClearCmd)

	toolsListCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "Only show tools matching this text")
	for _, c := range []*cobra.Command{toolsListCmd, toolsShowCmd, toolsInvokeCmd, toolsSelectedCmd} {
		c.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	}

	toolsInvokeCmd.Flags().StringVarP(&invokeParams, "params", "p", "", `Parameters as a JSON object, e.g. '{"sql":"select 1"}'`)
	toolsInvokeCmd.Flags().BoolVar(&invokePrompt, "prompt", false, "Prompt for each parameter")
	toolsInvokeCmd.MarkFlagsMutuallyExclusive("params", "prompt")
}

func runToolsList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	e.refresh(cmd.Context())

	views := e.service.Tools(listFilter)
	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, views)
	}

	if len(views) == 0 {
		if listFilter != "" {
			fmt.Fprintf(out, "No tools match %q.\n", listFilter)
		} else {
			fmt.Fprintln(out, "No tools found. Add providers to the config file.")
		}
		return nil
	}

	selected := ""
	if sel := e.service.Selected(); sel != nil {
		selected = sel.FullIdentifier
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	total := 0
	for _, v := range views {
		fmt.Fprintf(w, "%s (%d)\n", v.Server, len(v.Tools))
		for _, t := range v.Tools {
			mark := " "
			if t.FullIdentifier == selected {
				mark = "●"
			}
			fmt.Fprintf(w, "  %s %s\t%s\t%s\n", mark, t.Name, t.FullIdentifier, firstLine(t.Description, 60))
		}
		total += len(v.Tools)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d servers, %d tools\n", len(views), total)
	return nil
}

func runToolsShow(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	e.refresh(cmd.Context())

	detail, err := e.service.Tool(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, detail)
	}
	printToolDetail(out, detail)
	return nil
}

func printToolDetail(out io.Writer, d *controlplane.ToolDetail) {
	t := d.Tool
	fmt.Fprintf(out, "Name:        %s\n", t.Name)
	fmt.Fprintf(out, "Server:      %s\n", t.Server)
	fmt.Fprintf(out, "Identifier:  %s\n", t.FullIdentifier)
	if len(t.Tags) > 0 {
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(t.Tags, ", "))
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", t.Description)
	}

	fmt.Fprintln(out, "\nParameters:")
	if len(d.Params) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tTYPE\tREQUIRED\tDESCRIPTION")
	for _, p := range d.Params {
		req := ""
		if p.Required {
			req = "yes"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", p.Name, p.Type, req, firstLine(p.Description, 60))
	}
	w.Flush()

	if skeleton, err := json.Marshal(schema.Skeleton(t.InputSchema)); err == nil {
		fmt.Fprintf(out, "\nExample: toolbench tools invoke %s --params '%s'\n", t.FullIdentifier, skeleton)
	}
}

func runToolsInvoke(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	e.refresh(cmd.Context())

	var params map[string]any
	switch {
	case invokeParams != "":
		if err := json.Unmarshal([]byte(invokeParams), &params); err != nil {
			return fmt.Errorf("invalid --params: %w", err)
		}
	case invokePrompt:
		detail, err := e.service.Tool(args[0])
		if err != nil {
			return err
		}
		params, err = promptParams(detail)
		if err != nil {
			return err
		}
	}

	res, err := e.service.Invoke(cmd.Context(), args[0], params)
	if err != nil {
		return err
	}
	if err := output.Write(cmd.OutOrStdout(), res, asJSON); err != nil {
		return err
	}
	if !res.Success {
		return errInvokeFailed
	}
	return nil
}

func runToolsSelect(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	e.refresh(cmd.Context())

	tool, err := e.service.Select(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Selected %s (%s on %s)\n", tool.FullIdentifier, tool.Name, tool.Server)
	return nil
}

func runToolsSelected(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	sel := e.service.Selected()
	if asJSON {
		return writeJSON(out, sel)
	}
	if sel == nil {
		fmt.Fprintln(out, "No tool selected.")
		return nil
	}
	fmt.Fprintf(out, "%s (%s on %s)\n", sel.FullIdentifier, sel.Name, sel.Server)
	if sel.Description != "" {
		fmt.Fprintln(out, sel.Description)
	}
	return nil
}

func runToolsClear(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	e.service.ClearSelection(cmd.Context())
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Selection cleared")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// firstLine returns the first line of s, cut to limit runes.
func firstLine(s string, limit int) string {
	s, _, _ = strings.Cut(s, "\n")
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
