package main

import (
	"fmt"

	"github.com/mark3labs/forgeloop/internal/config"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage service API keys",
	Long: `Manage the API keys generated projects are wired to (stripe, openai,
github, ...). Keys are stored in ./forgeloop.yml; the environment variables
STRIPE_API_KEY, OPENAI_API_KEY and GITHUB_TOKEN take precedence.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <service> <value>",
	Short: "Store an API key for a service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.SetCredential(cfg, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored credential for %s in %s\n", args[0], config.ProjectPath())
		return nil
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured services with masked keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		services := cfg.ConfiguredServices()
		if len(services) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No credentials configured")
			return nil
		}
		redacted := cfg.Redacted()
		for _, name := range services {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, redacted.APIKeys[name])
		}
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
}
