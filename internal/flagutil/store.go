package flagutil

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/atelierbr/jiragate/internal/jiragate/tracking"
)

// StoreOptions configures the local issue tracking database
type StoreOptions struct {
	Location string
}

// AddPFlags injects store options into the given pflag.FlagSet. The location
// defaults to the DB_LOCATION environment variable, then to the current
// directory.
func (o *StoreOptions) AddPFlags(fs *pflag.FlagSet) {
	location := os.Getenv("DB_LOCATION")
	if location == "" {
		location = "."
	}
	fs.StringVar(&o.Location, "db.location", location, "Directory holding the local issue tracking database")
}

// Open opens the tracking store at the configured location
func (o *StoreOptions) Open(ctx context.Context) (*tracking.Store, error) {
	store, err := tracking.Open(ctx, o.Location)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("using issue tracking database at %s", store.Path())
	return store, nil
}
