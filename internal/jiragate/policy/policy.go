package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/atelierbr/jiragate/internal/config"
)

const (
	fieldsFileName = "fields.yaml"
)

// Policy holds the field visibility rules: which schema fields are hidden
// from callers, per issue type and globally.
type Policy struct {
	// TypeBlacklist maps issue type names to field ids suppressed for that type
	TypeBlacklist map[string][]string `yaml:"fieldBlacklist"`
	// GlobalBlacklist lists field ids suppressed for every issue type
	GlobalBlacklist []string `yaml:"globalBlacklist"`
}

// Default returns the built-in field visibility policy
func Default() *Policy {
	return &Policy{
		TypeBlacklist: map[string][]string{
			"Subtarefa": {
				"customfield_10073",
				"customfield_10175",
				"customfield_10274",
				"customfield_10176",
				"customfield_10286",
				"customfield_10000",
				"customfield_10155",
				"customfield_10002",
				"customfield_10019",
				"customfield_11265",
				"customfield_10136",
			},
		},
		GlobalBlacklist: []string{
			"rankBeforeIssue",
			"rankAfterIssue",
			"io.tempo.jira__account",
			"customfield_10014", // Epic link
			"customfield_10020", // Sprint
		},
	}
}

// Load loads the policy from the default location, returns the built-in
// defaults if the file doesn't exist
func Load() (*Policy, error) {
	fieldsPath := filepath.Join(config.MustJiragateConfigDir(), fieldsFileName)

	if _, err := os.Stat(fieldsPath); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(fieldsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse fields file: %w", err)
	}

	if policy.TypeBlacklist == nil {
		policy.TypeBlacklist = make(map[string][]string)
	}

	return &policy, nil
}

// EffectiveBlacklist returns the union of the type-specific blacklist (empty
// when the type is unknown) and the global blacklist
func (p *Policy) EffectiveBlacklist(issueType string) sets.Set[string] {
	blacklist := sets.New[string](p.GlobalBlacklist...)
	blacklist.Insert(p.TypeBlacklist[issueType]...)
	return blacklist
}
