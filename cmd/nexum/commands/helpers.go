// Package commands implements the nexum CLI subcommands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
	"github.com/nexum-io/nexum-client/pkg/nexumclient"
)

// Output formats.
const (
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Common static errors used throughout the commands package.
var (
	ErrAPIRequired    = errors.New("API base URL is required (flag --api, env NEXUM_API, or config)")
	ErrNoCredentials  = errors.New("no credentials configured, run 'nexum login' first")
	ErrMalformedParam = errors.New("parameters must be key=value pairs")
)

// Config is the CLI configuration persisted under ~/.nexum/config.yml.
// Profiles keep per-API credentials so one CLI can talk to several cells.
type Config struct {
	Profiles       map[string]*Profile `json:"profiles,omitempty"        yaml:"profiles,omitempty"`
	CurrentProfile string              `json:"current_profile,omitempty" yaml:"current_profile,omitempty"`
	Output         string              `json:"output,omitempty"          yaml:"output,omitempty"`
}

// Profile is the configuration of one API endpoint.
type Profile struct {
	BaseURL            string `json:"base_url"                       yaml:"base_url"`
	Token              string `json:"token,omitempty"                yaml:"token,omitempty"`
	ClientID           string `json:"client_id,omitempty"            yaml:"client_id,omitempty"`
	ClientSecret       string `json:"client_secret,omitempty"        yaml:"client_secret,omitempty"`
	ServiceAccountFile string `json:"service_account_file,omitempty" yaml:"service_account_file,omitempty"`
	Subject            string `json:"subject,omitempty"              yaml:"subject,omitempty"`
	SkipSSLValidation  bool   `json:"skip_ssl_validation,omitempty"  yaml:"skip_ssl_validation,omitempty"`
}

func configPath() string {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		return cfgFile
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".nexum", "config.yml")
}

// loadConfig reads the CLI config, returning an empty one when the file
// does not exist or cannot be parsed.
func loadConfig() *Config {
	config := &Config{Profiles: map[string]*Profile{}}

	path := configPath()
	if path == "" {
		return config
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config
	}

	_ = yaml.Unmarshal(data, config)

	if config.Profiles == nil {
		config.Profiles = map[string]*Profile{}
	}

	return config
}

func saveConfig(config *Config) error {
	path := configPath()
	if path == "" {
		return errors.New("cannot determine config file location")
	}

	err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// currentProfile resolves the active profile: --api overrides, then the
// configured current profile.
func currentProfile(config *Config) *Profile {
	if api := viper.GetString("api"); api != "" {
		for _, profile := range config.Profiles {
			if profile.BaseURL == api {
				return profile
			}
		}

		return &Profile{BaseURL: api}
	}

	if profile, ok := config.Profiles[config.CurrentProfile]; ok {
		return profile
	}

	return nil
}

// buildClient creates an API client from flags, environment and the saved
// profile.
func buildClient(prune bool) (nexum.Client, error) {
	config := loadConfig()
	profile := currentProfile(config)

	if profile == nil {
		profile = &Profile{}
	}

	baseURL := profile.BaseURL
	if baseURL == "" {
		return nil, ErrAPIRequired
	}

	clientConfig := &nexum.Config{
		BaseURL:       baseURL,
		SkipTLSVerify: profile.SkipSSLValidation || viper.GetBool("skip_ssl_validation"),
		Debug:         viper.GetBool("verbose"),
		Prune:         prune,
	}

	switch {
	case viper.GetString("token") != "":
		clientConfig.Token = viper.GetString("token")

	case profile.Token != "":
		clientConfig.Token = profile.Token

	case profile.ServiceAccountFile != "":
		account, err := loadServiceAccount(profile.ServiceAccountFile)
		if err != nil {
			return nil, err
		}

		clientConfig.ServiceAccount = account
		clientConfig.Subject = profile.Subject

	case profile.ClientID != "" && profile.ClientSecret != "":
		clientConfig.ClientID = profile.ClientID
		clientConfig.ClientSecret = profile.ClientSecret

	default:
		return nil, ErrNoCredentials
	}

	return nexumclient.New(clientConfig)
}

// loadServiceAccount reads a service-account JSON key file.
func loadServiceAccount(path string) (*nexum.ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service account file: %w", err)
	}

	var account nexum.ServiceAccount

	err = json.Unmarshal(data, &account)
	if err != nil {
		return nil, fmt.Errorf("parsing service account file: %w", err)
	}

	return &account, nil
}

// parseParams turns key=value command arguments into call parameters.
// Values that parse as JSON (objects, arrays, numbers, booleans) are
// passed through typed; everything else stays a string. A value of
// @path reads the value from a file.
func parseParams(args []string) (nexum.Params, error) {
	params := nexum.Params{}

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedParam, arg)
		}

		if strings.HasPrefix(value, "@") {
			data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
			if err != nil {
				return nil, fmt.Errorf("reading parameter file: %w", err)
			}

			value = string(data)
		}

		params[key] = parseValue(value)
	}

	return params, nil
}

func parseValue(value string) interface{} {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}

	if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
		var parsed interface{}
		if json.Unmarshal([]byte(value), &parsed) == nil {
			return parsed
		}
	}

	return value
}

// renderResult writes a call result in the selected output format. Tables
// only suit lists of flat objects; anything else falls back to JSON.
func renderResult(result interface{}) error {
	output := viper.GetString("output")

	switch output {
	case OutputFormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		return encoder.Encode(result)
	case OutputFormatJSON:
		fallthrough
	default:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		return encoder.Encode(result)
	}
}
