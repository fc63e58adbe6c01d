package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/nexum-io/nexum-client/pkg/nexum"
	"github.com/nexum-io/nexum-client/pkg/nexumclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		baseURL            string
		token              string
		clientID           string
		clientSecret       string
		serviceAccountFile string
		subject            string
		profileName        string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against an API endpoint",
		Long: `Authenticate against a Nexum API endpoint and save the credentials
as a named profile. Credentials are verified by fetching the discovery
document before they are saved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = viper.GetString("api")
			}

			if baseURL == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API base URL: ")
				baseURL, _ = reader.ReadString('\n')
				baseURL = strings.TrimSpace(baseURL)
			}

			if baseURL == "" {
				return ErrAPIRequired
			}

			profile := &Profile{
				BaseURL:           baseURL,
				SkipSSLValidation: viper.GetBool("skip_ssl_validation"),
			}

			switch {
			case token != "":
				profile.Token = token

			case serviceAccountFile != "":
				profile.ServiceAccountFile = serviceAccountFile
				profile.Subject = subject

			default:
				if clientID == "" {
					reader := bufio.NewReader(os.Stdin)
					fmt.Print("Client ID: ")
					clientID, _ = reader.ReadString('\n')
					clientID = strings.TrimSpace(clientID)
				}

				if clientSecret == "" {
					fmt.Print("Client secret: ")

					byteSecret, err := term.ReadPassword(int(syscall.Stdin))
					if err != nil {
						return fmt.Errorf("failed to read client secret: %w", err)
					}

					clientSecret = string(byteSecret)

					fmt.Println()
				}

				profile.ClientID = clientID
				profile.ClientSecret = clientSecret
			}

			err := verifyProfile(cmd, profile)
			if err != nil {
				return fmt.Errorf("failed to connect to API: %w", err)
			}

			if profileName == "" {
				profileName = profileKey(baseURL)
			}

			config := loadConfig()
			config.Profiles[profileName] = profile
			config.CurrentProfile = profileName

			err = saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Printf("Logged in to %s (profile %q)\n", baseURL, profileName)

			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "api", "", "API base URL")
	cmd.Flags().StringVar(&token, "token", "", "existing bearer token")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&serviceAccountFile, "service-account", "", "service account JSON key file")
	cmd.Flags().StringVar(&subject, "subject", "", "user to impersonate with the service account")
	cmd.Flags().StringVar(&profileName, "profile", "", "profile name (default is the API host)")

	return cmd
}

func verifyProfile(cmd *cobra.Command, profile *Profile) error {
	clientConfig := &nexum.Config{
		BaseURL:       profile.BaseURL,
		Token:         profile.Token,
		ClientID:      profile.ClientID,
		ClientSecret:  profile.ClientSecret,
		SkipTLSVerify: profile.SkipSSLValidation,
	}

	if profile.ServiceAccountFile != "" {
		account, err := loadServiceAccount(profile.ServiceAccountFile)
		if err != nil {
			return err
		}

		clientConfig.ServiceAccount = account
		clientConfig.Subject = profile.Subject
	}

	client, err := nexumclient.New(clientConfig)
	if err != nil {
		return err
	}

	_, err = client.Discovery(cmd.Context())

	return err
}

// profileKey derives a profile name from a base URL: the host.
func profileKey(baseURL string) string {
	key := strings.TrimPrefix(baseURL, "https://")
	key = strings.TrimPrefix(key, "http://")

	if idx := strings.IndexByte(key, '/'); idx >= 0 {
		key = key[:idx]
	}

	return key
}
