package flagutil

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/atelierbr/jiragate/internal/jiragate/tempo"
)

// TempoOptions configures the connection to the Tempo time-tracking API
type TempoOptions struct {
	Endpoint string
	APIToken string
}

// AddPFlags injects Tempo options into the given pflag.FlagSet. The token
// defaults to the TEMPO_API_KEY environment variable.
func (o *TempoOptions) AddPFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Endpoint, "tempo.endpoint", "", "Tempo endpoint URL (empty selects the public Tempo cloud)")
	fs.StringVar(&o.APIToken, "tempo.api-token", os.Getenv("TEMPO_API_KEY"), "Tempo API token")
}

func (o *TempoOptions) Validate() error {
	if o.APIToken == "" {
		return fmt.Errorf("tempo API token must be set (--tempo.api-token or TEMPO_API_KEY)")
	}
	return nil
}

// Client builds a Tempo client from the options. Credentials are not
// validated here; commands that talk to Tempo call Validate first.
func (o *TempoOptions) Client() *tempo.Client {
	return tempo.NewClient(o.Endpoint, o.APIToken)
}
