package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"concord/internal/discord"
	"concord/internal/logging"
	"concord/internal/ratelimit"
	"concord/internal/transport"
)

const version = "1.0.0"

var cfgFile string

var (
	green = color.New(color.FgGreen).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func errorText(msg string) string {
	return red("error: " + msg)
}

// isTTY checks if the current environment has a TTY available.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concord",
		Short: "Discord tool gateway",
		Long: fmt.Sprintf(`%s exposes Discord's REST API as a JSON-RPC tool surface
for agent callers, with schema validation, rate-limit aware retries,
response caching and an append-only audit log.

%s
  concord serve                 # Run the gateway
  concord tools                 # List the tool catalogue
  concord version               # Show version`,
			bold("Concord "+version),
			bold("EXAMPLES:")),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default concord-config.yaml in . or $HOME)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newToolsCommand())
	rootCmd.AddCommand(newVersionCommand())

	viper.SetConfigName("concord-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	return rootCmd
}

// resolveConfigPath prefers the --config flag, then whatever file viper
// discovers in the search path. An empty result means defaults plus env.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if err := viper.ReadInConfig(); err == nil {
		return viper.ConfigFileUsed()
	}
	return ""
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The catalogue is static; no token or upstream call needed.
			tracker := ratelimit.NewTracker(logging.Nop())
			client := discord.NewClient(transport.New(transport.DefaultConfig(), tracker, logging.Nop()))
			catalog := discord.Catalog(client)

			descriptors := catalog.List()
			fmt.Printf("%s (%d tools)\n\n", bold("Tool catalogue"), len(descriptors))
			for _, desc := range descriptors {
				fmt.Printf("  %s %s\n", cyan(desc.Name), gray("v"+desc.Version+" "+desc.Class.String()))
				fmt.Printf("    %s\n", desc.Description)
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("concord " + version)
		},
	}
}
