package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and acquire access tokens",
	}

	cmd.AddCommand(newTokenGetCommand())
	cmd.AddCommand(newTokenClaimsCommand())

	return cmd
}

func newTokenGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Acquire an access token",
		Long:  "Acquire an access token with the configured credentials and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := buildClient(false)
			if err != nil {
				return err
			}

			token, err := client.GetToken(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, token)

			return nil
		},
	}
}

func newTokenClaimsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "claims [token]",
		Short: "Show the claims of a JWT access token",
		Long: `Decode a JWT access token and show its claims without verifying the
signature. With no argument, the configured credentials are used to
acquire a token first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string

			if len(args) == 1 {
				token = args[0]
			} else {
				client, err := buildClient(false)
				if err != nil {
					return err
				}

				token, err = client.GetToken(cmd.Context())
				if err != nil {
					return err
				}
			}

			claims, err := nexum.TokenClaims(token)
			if err != nil {
				return err
			}

			output := viper.GetString("output")
			if output == OutputFormatJSON || output == OutputFormatYAML {
				return renderResult(claims)
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Claim", "Value")

			for name, value := range claims {
				if name == "exp" || name == "iat" || name == "nbf" {
					if n, ok := value.(float64); ok {
						value = time.Unix(int64(n), 0).UTC().Format(time.RFC3339)
					}
				}

				_ = table.Append(name, fmt.Sprint(value))
			}

			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}
