// Package rules decides, per request path, whether the console guard lets a
// request through, requires a session, or refuses it.
package rules

import "fmt"

type rule struct {
	matcher Matcher
	action  Action
}

// Evaluator holds compiled rules in configuration order.
type Evaluator struct {
	rules []rule
}

// NewEvaluator compiles cfg. A nil or empty cfg uses DefaultConfig.
func NewEvaluator(cfg *Config) (*Evaluator, error) {
	if cfg == nil || len(cfg.Rules) == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules configuration: %w", err)
	}

	e := &Evaluator{rules: make([]rule, 0, len(cfg.Rules))}
	for i := range cfg.Rules {
		m, err := newMatcher(&cfg.Rules[i])
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule[%d]: %w", i, err)
		}
		e.rules = append(e.rules, rule{matcher: m, action: cfg.Rules[i].Action})
	}
	return e, nil
}

// Evaluate returns the action of the first matching rule, or ActionAuth.
func (e *Evaluator) Evaluate(path string) Action {
	for _, r := range e.rules {
		if r.matcher.Match(path) {
			return r.action
		}
	}
	return ActionAuth
}
