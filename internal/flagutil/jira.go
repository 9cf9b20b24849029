// Package flagutil holds reusable option structs bound to pflag flag sets
package flagutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andygrunwald/go-jira"
	"github.com/spf13/pflag"

	"github.com/atelierbr/jiragate/internal/config"
)

const tokenFileName string = "jira-token"

// JiraOptions configures the connection to a Jira instance
type JiraOptions struct {
	Endpoint  string
	Email     string
	TokenFile string
}

// AddPFlags injects Jira options into the given pflag.FlagSet. Flag values
// default to the JIRA_URL and JIRA_ACCOUNT_EMAIL environment variables.
func (o *JiraOptions) AddPFlags(fs *pflag.FlagSet) {
	configDir := config.MustJiragateConfigDir()
	defaultTokenPath := filepath.Join(configDir, tokenFileName)

	fs.StringVar(&o.Endpoint, "jira.endpoint", os.Getenv("JIRA_URL"), "Jira endpoint URL")
	fs.StringVar(&o.Email, "jira.email", os.Getenv("JIRA_ACCOUNT_EMAIL"), "Email of the Jira account used for authentication")
	fs.StringVar(&o.TokenFile, "jira.token-file", defaultTokenPath, "Path to the file containing the Jira API token")
}

func (o *JiraOptions) Validate() error {
	if o.Endpoint == "" {
		return fmt.Errorf("jira endpoint must be set (--jira.endpoint or JIRA_URL)")
	}
	if o.Email == "" {
		return fmt.Errorf("jira account email must be set (--jira.email or JIRA_ACCOUNT_EMAIL)")
	}
	return nil
}

// token reads the API token from the token file, falling back to the
// JIRA_API_TOKEN environment variable when the file does not exist
func (o *JiraOptions) token() (string, error) {
	raw, err := os.ReadFile(o.TokenFile)
	if err == nil {
		return strings.TrimSpace(string(raw)), nil
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		return token, nil
	}
	return "", fmt.Errorf("cannot read Jira API token from %s and JIRA_API_TOKEN is not set: %w", o.TokenFile, err)
}

// Client builds an authenticated go-jira client from the options
func (o *JiraOptions) Client() (*jira.Client, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	token, err := o.token()
	if err != nil {
		return nil, err
	}

	transport := jira.BasicAuthTransport{
		Username: o.Email,
		Password: token,
	}
	client, err := jira.NewClient(transport.Client(), o.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("cannot create Jira client: %w", err)
	}
	return client, nil
}
