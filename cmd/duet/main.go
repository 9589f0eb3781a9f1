package main

import (
	"fmt"
	"os"

	"github.com/duet-cli/duet/internal/cli"
	"github.com/duet-cli/duet/internal/config"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "duet",
		Short: "Duet - pair programming in your terminal",
		Long: `Duet is an interactive coding assistant for your terminal.

It can:
  - Answer questions about the code in the current directory
  - Read, create and edit files on request
  - Search and navigate the project tree
  - Chain tool calls to carry out multi-step tasks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return cli.Run(cfg)
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Println(cfg.String())

			path, _ := config.ConfigPath()
			fmt.Printf("\nConfig file path: %s\n", path)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Duet v%s\n", version)
		},
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
