package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// NewEndpointsCommand creates the endpoints command group.
func NewEndpointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"eps"},
		Short:   "Explore the API surface",
		Long:    "List and describe the operations published in the discovery document",
	}

	cmd.AddCommand(newEndpointsListCommand())
	cmd.AddCommand(newEndpointsHelpCommand())

	return cmd
}

func newEndpointsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List operations",
		Long:  "List all operations, or those matching a name prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(false)
			if err != nil {
				return err
			}

			registry, err := client.Endpoints(cmd.Context())
			if err != nil {
				return err
			}

			names := registry.Names()

			if len(args) == 1 {
				names = registry.Matching(nexum.SplitName(args[0]))
			}

			output := viper.GetString("output")
			if output == OutputFormatJSON || output == OutputFormatYAML {
				joined := make([]string, 0, len(names))
				for _, name := range names {
					joined = append(joined, nexum.JoinName(name))
				}

				return renderResult(joined)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Operation", "Verb", "Path")

			for _, name := range names {
				spec, err := registry.Resolve(name...)
				if err != nil {
					continue
				}

				_ = table.Append(nexum.JoinName(name), spec.HTTPMethod, spec.Path)
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

func newEndpointsHelpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "help <operation>",
		Short: "Describe one operation",
		Long:  "Show the verb, description and parameters of an operation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(false)
			if err != nil {
				return err
			}

			help, err := client.Help(cmd.Context(), strings.Join(args, "/"))
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, help)

			return nil
		},
	}
}
