package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crewline/crewline/internal/logging"
)

const version = "0.3.0"

var (
	projectFlag string
	debug       bool
	rootCmd     = &cobra.Command{
		Use:           "crewline",
		Short:         "crewline drives a team of coding agents through a feature backlog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project root (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	if err := viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project")); err != nil {
		return fmt.Errorf("bind project flag: %w", err)
	}
	if err := viper.BindEnv("project", "FRAMEWORK_PROJECT_ROOT"); err != nil {
		return fmt.Errorf("bind project env: %w", err)
	}
	if err := viper.BindEnv("port", "FRAMEWORK_PORT"); err != nil {
		return fmt.Errorf("bind port env: %w", err)
	}
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.Init(debug)
	}
	rootCmd.AddCommand(featureCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(guidedCmd())
	rootCmd.AddCommand(autoplayCmd())
	rootCmd.AddCommand(archCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(openspecCmd())
	rootCmd.AddCommand(configCmd())
	return rootCmd.Execute()
}

// resolveRoot picks the project root: -p flag, FRAMEWORK_PROJECT_ROOT, or
// the current directory.
func resolveRoot() (string, error) {
	root := viper.GetString("project")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	return abs, nil
}
