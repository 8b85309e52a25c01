package main

import (
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/fentz26/toolbench/internal/agents"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers and the outcome of their last listing",
	Args:  cobra.NoArgs,
	RunE:  runConfigProviders,
}

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import MCP servers configured in installed agents",
	Long: `Scan the configuration of installed agents (Claude Desktop, Claude CLI,
Cursor, Windsurf, Gemini CLI) for MCP servers. Without --write the servers
are only listed.`,
	Args: cobra.NoArgs,
	RunE: runConfigImport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of toolbench",
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

var (
	forceInit   bool
	importWrite bool
	importHome  string
)

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd, configProvidersCmd, configImportCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	configImportCmd.Flags().BoolVar(&importWrite, "write", false, "Add the servers to the config file")
	configImportCmd.Flags().StringVar(&importHome, "home", "", "Home directory to scan (default: current user)")
	_ = configImportCmd.Flags().MarkHidden("home")
}

func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return catalog.DefaultConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", effectiveConfigPath())
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := effectiveConfigPath()
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := catalog.SaveConfig(path, catalog.DefaultConfig()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}

func runConfigProviders(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	e.refresh(cmd.Context())

	statuses := e.service.Providers()
	out := cmd.OutOrStdout()
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOOLS\tSTATUS")
	for _, s := range statuses {
		status := "✓"
		if s.Error != "" {
			status = "✗ " + s.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.ToolCount, status)
	}
	return w.Flush()
}

func runConfigImport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	servers, err := agents.NewDetector(importHome).Scan()
	if err != nil {
		logger.WithError(err).Warn("some agent configs could not be read")
	}
	if len(servers) == 0 {
		fmt.Fprintln(out, "No MCP servers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tAGENT\tCOMMAND")
	for _, s := range servers {
		command := s.Command
		if !s.Stdio() {
			command = "(remote, skipped) " + s.URL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Agent, command)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !importWrite {
		fmt.Fprintln(out, "\nRun with --write to add them to the configuration.")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	added := agents.Merge(cfg, servers)
	if len(added) == 0 {
		fmt.Fprintln(out, "\nNothing to add.")
		return nil
	}
	path := effectiveConfigPath()
	if err := catalog.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n✓ Added %d provider(s) to %s\n", len(added), path)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "toolbench version %s\n", Version)
	fmt.Fprintf(out, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
}
