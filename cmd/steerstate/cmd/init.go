package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  "Write a commented .steerstate.yaml with the default configuration to the current directory.",
	RunE:  runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
}

func runInit(_ *cobra.Command, _ []string) error {
	const path = ".steerstate.yaml"

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(config.DefaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if !quiet {
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}
