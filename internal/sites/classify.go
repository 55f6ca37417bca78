// Package sites serves uploaded static sites back out: it classifies inbound
// requests into site traffic vs everything else, resolves files under a
// project's storage root with traversal protection, rewrites HTML responses
// and keeps visit counters.
package sites

import (
	"net"
	"strings"
)

type RouteKind int

const (
	// KindAPI: path lives under the API prefix; never reaches site serving.
	KindAPI RouteKind = iota
	// KindPathSite: explicit /sites/{user}/{project}/... form.
	KindPathSite
	// KindSubdomainSite: {user}.{domain}/{project}/... form.
	KindSubdomainSite
	// KindFrontend: falls through to the dashboard SPA.
	KindFrontend
)

const (
	apiPrefix  = "/api"
	sitePrefix = "/sites"
)

// Reserved first path segments that keep a subdomain request from being
// read as {project}.
var reservedSegments = map[string]bool{"api": true, "sites": true}

// Route is the outcome of classifying one request.
type Route struct {
	Kind    RouteKind
	Owner   string
	Project string
	// Rest is the path remainder after the project segment, keeping its
	// leading slash when present ("" means the project segment was the last,
	// with no trailing slash).
	Rest string
}

// Classify decides how a request routes, from the Host header and the
// (already percent-decoded) URL path alone. It is a pure function; project
// and user existence are checked later, by the serving path.
func Classify(host, path string) Route {
	if path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/") {
		return Route{Kind: KindAPI}
	}

	if strings.HasPrefix(path, sitePrefix+"/") {
		owner, rest := splitSegment(path[len(sitePrefix)+1:])
		project, rest := splitSegment(strings.TrimPrefix(rest, "/"))
		if owner != "" && project != "" {
			return Route{Kind: KindPathSite, Owner: owner, Project: project, Rest: rest}
		}
		// Under the site prefix but incomplete: the SPA fallback will 404 it.
		return Route{Kind: KindFrontend}
	}

	if owner := subdomainOwner(host); owner != "" {
		project, rest := splitSegment(strings.TrimPrefix(path, "/"))
		if project != "" && !reservedSegments[project] {
			return Route{Kind: KindSubdomainSite, Owner: owner, Project: project, Rest: rest}
		}
	}

	return Route{Kind: KindFrontend}
}

// ReservedPath reports whether a path may never receive the SPA document:
// an API or site-prefix typo must 404, not render the dashboard.
func ReservedPath(path string) bool {
	return path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/") ||
		path == sitePrefix || strings.HasPrefix(path, sitePrefix+"/")
}

// subdomainOwner extracts the owning username from a host like
// "alice.example.com"; hosts with fewer than three labels are not site hosts.
func subdomainOwner(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return labels[0]
}

// splitSegment cuts the first path segment off s, returning the remainder
// with its leading slash intact.
func splitSegment(s string) (string, string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
