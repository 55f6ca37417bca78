package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAPIWins(t *testing.T) {
	r := Classify("alice.example.com", "/api/projects")
	assert.Equal(t, KindAPI, r.Kind)

	r = Classify("example.com", "/api")
	assert.Equal(t, KindAPI, r.Kind)

	// Not the API prefix, just a lookalike.
	r = Classify("example.com", "/apiary")
	assert.Equal(t, KindFrontend, r.Kind)
}

func TestClassifyPathSite(t *testing.T) {
	r := Classify("example.com", "/sites/alice/blog/post.html")
	assert.Equal(t, KindPathSite, r.Kind)
	assert.Equal(t, "alice", r.Owner)
	assert.Equal(t, "blog", r.Project)
	assert.Equal(t, "/post.html", r.Rest)

	r = Classify("example.com", "/sites/alice/blog")
	assert.Equal(t, KindPathSite, r.Kind)
	assert.Equal(t, "", r.Rest)

	r = Classify("example.com", "/sites/alice/blog/")
	assert.Equal(t, "/", r.Rest)
}

func TestClassifyIncompleteSitePrefixFallsThrough(t *testing.T) {
	for _, p := range []string{"/sites", "/sites/", "/sites/alice", "/sites/alice/"} {
		r := Classify("example.com", p)
		assert.Equal(t, KindFrontend, r.Kind, "path %q", p)
	}
}

func TestClassifySubdomain(t *testing.T) {
	r := Classify("alice.example.com", "/blog/post.html")
	assert.Equal(t, KindSubdomainSite, r.Kind)
	assert.Equal(t, "alice", r.Owner)
	assert.Equal(t, "blog", r.Project)
	assert.Equal(t, "/post.html", r.Rest)

	// Port is stripped before label counting.
	r = Classify("alice.example.com:8080", "/blog")
	assert.Equal(t, KindSubdomainSite, r.Kind)
	assert.Equal(t, "alice", r.Owner)
}

func TestClassifyTwoLabelHostIsNotASite(t *testing.T) {
	r := Classify("example.com", "/blog/post.html")
	assert.Equal(t, KindFrontend, r.Kind)
}

func TestClassifySubdomainReservedSegments(t *testing.T) {
	// First path segment matching a reserved name never reads as a project.
	r := Classify("alice.example.com", "/sites/x/y")
	assert.Equal(t, KindPathSite, r.Kind) // explicit form takes precedence
	r = Classify("alice.example.com", "/")
	assert.Equal(t, KindFrontend, r.Kind)
}

func TestReservedPath(t *testing.T) {
	assert.True(t, ReservedPath("/api/nope"))
	assert.True(t, ReservedPath("/sites"))
	assert.True(t, ReservedPath("/sites/alice"))
	assert.False(t, ReservedPath("/dashboard"))
	assert.False(t, ReservedPath("/"))
}
