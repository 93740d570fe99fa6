package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/forgeloop/internal/config"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project bool
	force   bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create forgeloop configuration file",
	Long: `Create a forgeloop configuration file with sensible defaults.

By default, creates a global config at ~/.config/forgeloop/forgeloop.yml.
Use --project to create a project-local config in the current directory.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := &config.Config{
		ProjectName:      "forgeloop-app",
		ProjectsDir:      "projects",
		DataDir:          ".forgeloop",
		MaxIterations:    50,
		IterationPause:   2 * time.Second,
		InstallTimeout:   300 * time.Second,
		BuildTimeout:     300 * time.Second,
		TypecheckTimeout: 30 * time.Second,
		LogLevel:         "info",
		Events:           true,
	}

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Config written to: %s\n\n", targetPath)
	fmt.Println("Run 'forgeloop build --goal \"...\" \"<spec>\"' to get started.")
	return nil
}

// fileExists checks if a file exists (helper for setup command).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
