package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{"already canonical", "https://www.usda.gov", "", "https://www.usda.gov"},
		{"trims whitespace", "  https://www.usda.gov  ", "", "https://www.usda.gov"},
		{"resolves relative", "/agencies/usda", "https://www.usa.gov", "https://www.usa.gov/agencies/usda"},
		{"strips fragment", "https://www.usda.gov/about#staff", "", "https://www.usda.gov/about"},
		{"strips tracking params", "https://www.usda.gov/?utm_source=x&utm_campaign=y", "", "https://www.usda.gov"},
		{"keeps other params", "https://www.usda.gov/search?q=corn&utm_medium=email", "", "https://www.usda.gov/search?q=corn"},
		{"strips trailing slash", "https://www.usda.gov/about/", "", "https://www.usda.gov/about"},
		{"bare host with slash", "https://www.usda.gov/", "", "https://www.usda.gov"},
		{"lowercases host", "https://WWW.USDA.GOV/About", "", "https://www.usda.gov/About"},
		{"no scheme upgrade", "http://ca.gov", "", "http://ca.gov"},
		{"empty input", "", "https://www.usa.gov", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URL(tt.raw, tt.base))
		})
	}
}

func TestURL_Idempotent(t *testing.T) {
	inputs := []string{
		"https://www.usda.gov/about/",
		"  http://dmv.ca.gov/renew?utm_source=mail&id=7#top ",
		"/relative/path",
		"https://example.gov/a/b?z=1&a=2",
		"not a url at all",
	}
	for _, in := range inputs {
		once := URL(in, "https://www.usa.gov")
		twice := URL(once, "https://www.usa.gov")
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.usda.gov/about", "usda.gov"},
		{"https://dmv.ca.gov", "dmv.ca.gov"},
		{"WWW.Example.US", "example.us"},
		{"https://example.gov:8443/x", "example.gov"},
		{"example.gov/path", "example.gov"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.raw), "Domain(%q)", tt.raw)
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "Agriculture Department", Name("  Agriculture \n  Department "))
	assert.Equal(t, "", Name("   "))
}
