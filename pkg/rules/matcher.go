package rules

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher reports whether a request path matches.
type Matcher interface {
	Match(path string) bool
}

type exactMatcher string

func (m exactMatcher) Match(path string) bool { return path == string(m) }

type prefixMatcher string

func (m prefixMatcher) Match(path string) bool { return strings.HasPrefix(path, string(m)) }

type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) Match(path string) bool { return m.re.MatchString(path) }

// globMatcher uses '/' as separator, so "*" stays within one path segment
// and "**" crosses segments.
type globMatcher struct{ g glob.Glob }

func (m globMatcher) Match(path string) bool { return m.g.Match(path) }

type allMatcher struct{}

func (allMatcher) Match(string) bool { return true }

func newMatcher(c *RuleConfig) (Matcher, error) {
	switch {
	case c.Exact != "":
		return exactMatcher(c.Exact), nil
	case c.Prefix != "":
		return prefixMatcher(c.Prefix), nil
	case c.Regex != "":
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return nil, err
		}
		return regexMatcher{re: re}, nil
	case c.Minimatch != "":
		g, err := glob.Compile(c.Minimatch, '/')
		if err != nil {
			return nil, err
		}
		return globMatcher{g: g}, nil
	default:
		return allMatcher{}, nil
	}
}
