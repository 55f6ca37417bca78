package projects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteURLLocalhostUsesPathForm(t *testing.T) {
	got := SiteURL("http://localhost:4000", "alice", "blog", "index.html")
	assert.Equal(t, "http://localhost:4000/sites/alice/blog", got)
}

func TestSiteURLIPUsesPathForm(t *testing.T) {
	got := SiteURL("http://192.168.1.10:4000/", "alice", "blog", "")
	assert.Equal(t, "http://192.168.1.10:4000/sites/alice/blog", got)
}

func TestSiteURLDomainUsesSubdomain(t *testing.T) {
	got := SiteURL("https://sitehive.example.com", "alice", "blog", "index.html")
	assert.Equal(t, "https://alice.example.com/blog", got)
}

func TestSiteURLSubdomainKeepsLastTwoLabels(t *testing.T) {
	got := SiteURL("https://app.eu.hosting.dev", "bob", "docs", "")
	assert.Equal(t, "https://bob.hosting.dev/docs", got)
}

func TestSiteURLAppendsNonDefaultEntry(t *testing.T) {
	got := SiteURL("https://hosting.dev", "bob", "docs", "app/main.html")
	assert.Equal(t, "https://bob.hosting.dev/docs/app/main.html", got)

	got = SiteURL("http://localhost:4000", "bob", "docs", "app/main.html")
	assert.Equal(t, "http://localhost:4000/sites/bob/docs/app/main.html", got)
}

func TestSiteURLEscapesSegments(t *testing.T) {
	got := SiteURL("http://localhost:4000", "alice", "blog", "my page.html")
	assert.Equal(t, "http://localhost:4000/sites/alice/blog/my%20page.html", got)
}

func TestSiteURLSingleLabelHostFallsBack(t *testing.T) {
	got := SiteURL("http://intranet", "alice", "blog", "")
	assert.Equal(t, "http://intranet/sites/alice/blog", got)
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"blog", "my-site", "a1", "x"} {
		assert.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", "My-Site", "-blog", "blog-", "a_b", "a b", "名字"} {
		assert.False(t, ValidName(bad), bad)
	}
}
