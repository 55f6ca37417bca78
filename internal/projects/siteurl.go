package projects

import (
	"net"
	"net/url"
	"strings"
)

// SiteURL builds the public URL of a project. Hosts without a usable domain
// (localhost, raw IPs, fewer than two labels) get the path-based form
//
//	{base}/sites/{user}/{project}[/{entry}]
//
// everything else gets a subdomain on the base host's last two labels
//
//	{scheme}://{user}.{root-domain}/{project}[/{entry}]
//
// The entry suffix is only appended when the entry file is not the default
// index.html. All path segments are percent-encoded.
func SiteURL(baseURL, username, projectName, entryFile string) string {
	base := strings.TrimRight(baseURL, "/")

	suffix := ""
	if entryFile != "" && entryFile != "index.html" {
		segs := strings.Split(entryFile, "/")
		for i, s := range segs {
			segs[i] = url.PathEscape(s)
		}
		suffix = "/" + strings.Join(segs, "/")
	}

	pathForm := base + "/sites/" + url.PathEscape(username) + "/" + url.PathEscape(projectName) + suffix

	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return pathForm
	}

	host := u.Hostname()
	if host == "localhost" || net.ParseIP(host) != nil {
		return pathForm
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return pathForm
	}

	rootDomain := strings.Join(labels[len(labels)-2:], ".")
	return u.Scheme + "://" + url.PathEscape(username) + "." + rootDomain + "/" + url.PathEscape(projectName) + suffix
}
