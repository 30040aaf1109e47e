package auth

import (
	"path"
	"strings"
)

// Access is what a rule demands of a request.
type Access int

const (
	// AccessAuthenticated requires a valid session.
	AccessAuthenticated Access = iota
	// AccessPermit lets the request through with or without a session.
	AccessPermit
)

func (a Access) String() string {
	if a == AccessPermit {
		return "permit"
	}
	return "authenticated"
}

// Rule maps a path pattern to an access level.
//
// Patterns are slash separated. A segment may use path.Match globs ("*"
// matches within one segment). A final "**" segment matches the preceding
// prefix itself and anything below it, so "/actuator/**" covers "/actuator"
// and "/actuator/health" but not "/actuatorx".
type Rule struct {
	Pattern string
	Access  Access
}

// Rules are evaluated in order; the first match wins. A path no rule
// matches requires authentication.
type Rules []Rule

// RulesFromPatterns permits every pattern in order and requires
// authentication for everything else.
func RulesFromPatterns(permit []string) Rules {
	rules := make(Rules, 0, len(permit)+1)
	for _, p := range permit {
		if p = strings.TrimSpace(p); p != "" {
			rules = append(rules, Rule{Pattern: p, Access: AccessPermit})
		}
	}
	return append(rules, Rule{Pattern: "/**", Access: AccessAuthenticated})
}

// Match returns the access level for urlPath.
func (rs Rules) Match(urlPath string) Access {
	for _, r := range rs {
		if MatchPattern(r.Pattern, urlPath) {
			return r.Access
		}
	}
	return AccessAuthenticated
}

// MatchPattern reports whether urlPath matches pattern. urlPath is cleaned
// first so dot segments cannot step out of a permitted prefix.
func MatchPattern(pattern, urlPath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}
	urlPath = path.Clean("/" + urlPath)

	patternSegs := segments(pattern)
	pathSegs := segments(urlPath)

	if n := len(patternSegs); n > 0 && patternSegs[n-1] == "**" {
		prefix := patternSegs[:n-1]
		if len(pathSegs) == 1 && pathSegs[0] == "" {
			pathSegs = nil
		}
		if len(pathSegs) < len(prefix) {
			return false
		}
		return matchSegments(prefix, pathSegs[:len(prefix)])
	}

	if len(patternSegs) != len(pathSegs) {
		return false
	}
	return matchSegments(patternSegs, pathSegs)
}

func segments(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func matchSegments(pattern, segs []string) bool {
	for i := range pattern {
		ok, err := path.Match(pattern[i], segs[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}
