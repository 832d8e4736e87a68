package rules

import (
	"fmt"
	"regexp"

	"github.com/gobwas/glob"
)

// Action is what the console guard does with a matching path.
type Action string

const (
	ActionAllow Action = "allow" // serve without a session
	ActionAuth  Action = "auth"  // require a console session
	ActionDeny  Action = "deny"  // always 403
)

// RuleConfig is one access rule. Exactly one matcher must be set.
type RuleConfig struct {
	Exact     string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Regex     string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Minimatch string `yaml:"minimatch,omitempty" json:"minimatch,omitempty"`
	All       *bool  `yaml:"all,omitempty" json:"all,omitempty"`

	Action      Action `yaml:"action" json:"action"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config is the ordered rule list; the first match wins.
type Config struct {
	Rules []RuleConfig `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Validate checks every rule.
func (c *Config) Validate() error {
	for i := range c.Rules {
		if err := c.Rules[i].Validate(); err != nil {
			return fmt.Errorf("rule[%d]: %w", i, err)
		}
	}
	return nil
}

// Validate checks a single rule.
func (r *RuleConfig) Validate() error {
	if r.All != nil && !*r.All {
		return fmt.Errorf("all: false is not allowed (omit the field or use all: true)")
	}

	matchers := 0
	for _, set := range []bool{r.Exact != "", r.Prefix != "", r.Regex != "", r.Minimatch != "", r.All != nil} {
		if set {
			matchers++
		}
	}
	switch {
	case matchers == 0:
		return fmt.Errorf("no matcher specified (must specify one of: exact, prefix, regex, minimatch, all)")
	case matchers > 1:
		return fmt.Errorf("multiple matchers specified (only one of exact, prefix, regex, minimatch, all is allowed)")
	}

	switch r.Action {
	case ActionAllow, ActionAuth, ActionDeny:
	default:
		return fmt.Errorf("invalid action %q (must be one of: allow, auth, deny)", r.Action)
	}

	if r.Regex != "" {
		if _, err := regexp.Compile(r.Regex); err != nil {
			return fmt.Errorf("invalid regex pattern %q: %w", r.Regex, err)
		}
	}
	if r.Minimatch != "" {
		if _, err := glob.Compile(r.Minimatch, '/'); err != nil {
			return fmt.Errorf("invalid minimatch pattern %q: %w", r.Minimatch, err)
		}
	}
	return nil
}

// DefaultConfig leaves the read-only catalog and health routes public and
// requires a session for everything else, including every admin proxy route.
func DefaultConfig() *Config {
	allTrue := true
	return &Config{
		Rules: []RuleConfig{
			{Exact: "/api/hub/catalog", Action: ActionAllow, Description: "catalog browsing"},
			{Exact: "/api/hub/search", Action: ActionAllow, Description: "catalog search"},
			{Prefix: "/api/hub/entities/", Action: ActionAllow, Description: "entity detail"},
			{Exact: "/api/hub/health", Action: ActionAllow},
			{Exact: "/api/gateway/health", Action: ActionAllow},
			{Exact: "/api/health", Action: ActionAllow},
			{All: &allTrue, Action: ActionAuth, Description: "everything else needs a session"},
		},
	}
}
