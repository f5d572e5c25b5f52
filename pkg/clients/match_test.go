package clients_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"vestiva/pkg/clients"
)

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		domain  string
		want    bool
	}{
		{"exact host:port", "localhost:5173", "localhost:5173", true},
		{"exact origin", "https://app.example.com", "https://app.example.com", true},
		{"bare pattern covers http origin", "localhost:5173", "http://localhost:5173", true},
		{"port differs", "localhost:5173", "localhost:5174", false},
		{"scheme pattern rejects bare domain", "https://app.example.com", "app.example.com", false},
		{"scheme mismatch", "https://app.example.com", "http://app.example.com", false},
		{"wildcard subdomain", "*.netlify.app", "foo.netlify.app", true},
		{"wildcard nested subdomain", "*.netlify.app", "a.b.netlify.app", true},
		{"wildcard with scheme-bearing domain", "*.netlify.app", "https://foo.netlify.app", true},
		{"wildcard scheme pattern", "https://*.netlify.app", "https://foo.netlify.app", true},
		{"wildcard scheme pattern mismatch", "https://*.netlify.app", "http://foo.netlify.app", false},
		{"wildcard sibling suffix", "*.netlify.app", "foo.evil-netlify.app", false},
		{"wildcard unanchored suffix", "*.netlify.app", "evilnetlify.app", false},
		{"wildcard base itself", "*.netlify.app", "netlify.app", false},
		{"wildcard empty label", "*.netlify.app", ".netlify.app", false},
		{"wildcard port not normalised", "*.netlify.app", "foo.netlify.app:8443", false},
		{"case sensitive", "Example.com", "example.com", false},
		{"empty pattern", "", "example.com", false},
		{"empty domain", "example.com", "", false},
		{"bare star base", "*.", "foo.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clients.MatchDomain(tt.pattern, tt.domain))
		})
	}
}

func TestMatchDomainProperties(t *testing.T) {
	label := rapid.StringMatching(`[a-z][a-z0-9-]{0,12}`)
	rapid.Check(t, func(rt *rapid.T) {
		sub := label.Draw(rt, "sub")
		base := label.Draw(rt, "base") + ".app"
		prefix := label.Draw(rt, "prefix")

		pattern := "*." + base
		if !clients.MatchDomain(pattern, sub+"."+base) {
			rt.Fatalf("subdomain %q not matched by %q", sub+"."+base, pattern)
		}
		if !clients.MatchDomain(pattern, "https://"+sub+"."+base) {
			rt.Fatalf("origin https://%s.%s not matched by %q", sub, base, pattern)
		}
		// Gluing a prefix onto the base without a dot never crosses the label boundary.
		if clients.MatchDomain(pattern, sub+"."+prefix+base) {
			rt.Fatalf("sibling %q matched by %q", sub+"."+prefix+base, pattern)
		}
		if clients.MatchDomain(pattern, base) {
			rt.Fatalf("bare base %q matched by %q", base, pattern)
		}
		// Exact entries always match themselves.
		if !clients.MatchDomain(sub+"."+base, sub+"."+base) {
			rt.Fatalf("exact entry did not match itself")
		}
	})
}

func TestMatchAny(t *testing.T) {
	domains := []string{"localhost:5173", "*.netlify.app"}
	assert.True(t, clients.MatchAny(domains, "localhost:5173"))
	assert.True(t, clients.MatchAny(domains, "foo.netlify.app"))
	assert.False(t, clients.MatchAny(domains, "example.com"))
	assert.False(t, clients.MatchAny(nil, "example.com"))
}
