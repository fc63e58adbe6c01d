package commands

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const secretMask = "***"

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage nexum CLI profiles and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigProfilesCommand())
	cmd.AddCommand(newConfigUseCommand())
	cmd.AddCommand(newConfigDeleteCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			profile := currentProfile(config)
			if profile == nil {
				fmt.Fprintln(os.Stdout, "No profile configured, run 'nexum login' first")

				return nil
			}

			shown := *profile
			if shown.ClientSecret != "" {
				shown.ClientSecret = secretMask
			}

			if shown.Token != "" {
				shown.Token = secretMask
			}

			output := viper.GetString("output")
			if output == OutputFormatJSON || output == OutputFormatYAML {
				return renderResult(shown)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Setting", "Value")
			_ = table.Append("Profile", config.CurrentProfile)
			_ = table.Append("Base URL", shown.BaseURL)
			_ = table.Append("Client ID", shown.ClientID)
			_ = table.Append("Service account", shown.ServiceAccountFile)
			_ = table.Append("Subject", shown.Subject)

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newConfigProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			names := make([]string, 0, len(config.Profiles))
			for name := range config.Profiles {
				names = append(names, name)
			}

			sort.Strings(names)

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Profile", "Base URL", "Current")

			for _, name := range names {
				current := ""
				if name == config.CurrentProfile {
					current = "*"
				}

				_ = table.Append(name, config.Profiles[name].BaseURL, current)
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newConfigUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if _, ok := config.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}

			config.CurrentProfile = args[0]

			err := saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Switched to profile %q\n", args[0])

			return nil
		},
	}
}

func newConfigDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <profile>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if _, ok := config.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q not found", args[0])
			}

			delete(config.Profiles, args[0])

			if config.CurrentProfile == args[0] {
				config.CurrentProfile = ""
			}

			err := saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Deleted profile %q\n", args[0])

			return nil
		},
	}
}
