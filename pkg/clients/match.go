package clients

import "strings"

// MatchDomain reports whether domain is covered by one authorizedDomains entry.
//
// Entries are exact origins ("localhost:5173", "https://app.example.com") or
// wildcard-subdomain patterns ("*.netlify.app"). A wildcard only matches on a
// label boundary: "foo.netlify.app" matches "*.netlify.app", "foo.evil-netlify.app"
// and "netlify.app" itself do not.
//
// An entry without a scheme matches the host[:port] part of a scheme-bearing
// domain, so "localhost:5173" covers both "localhost:5173" and
// "http://localhost:5173". An entry with a scheme requires the same scheme.
// Comparison is case-sensitive and ports are not normalised.
func MatchDomain(pattern, domain string) bool {
	if pattern == "" || domain == "" {
		return false
	}
	if pattern == domain {
		return true
	}
	pScheme, pHost := splitOrigin(pattern)
	dScheme, dHost := splitOrigin(domain)
	if pScheme != "" && pScheme != dScheme {
		return false
	}
	if base, ok := strings.CutPrefix(pHost, "*."); ok {
		if base == "" {
			return false
		}
		return len(dHost) > len(base)+1 && strings.HasSuffix(dHost, "."+base)
	}
	return pHost != "" && pHost == dHost
}

// MatchAny reports whether any pattern covers domain.
func MatchAny(patterns []string, domain string) bool {
	for _, p := range patterns {
		if MatchDomain(p, domain) {
			return true
		}
	}
	return false
}

// splitOrigin separates "scheme://host[:port][/...]" into scheme and host[:port].
func splitOrigin(s string) (scheme, host string) {
	if i := strings.Index(s, "://"); i >= 0 {
		scheme, s = s[:i], s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return scheme, s
}
