// Package canon turns URL strings into the canonical identity used for the
// visited set, page lookup and child link matching.
package canon

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"ftp":    "21",
	"ftps":   "990",
	"ssh":    "22",
	"telnet": "23",
	"smtp":   "25",
	"pop3":   "110",
	"imap":   "143",
	"ldap":   "389",
	"ldaps":  "636",
}

// Query parameters that only carry tracking information.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"ref":          true,
}

type queryParam struct {
	name  string
	value string
}

// Canonicalize normalizes rawURL. A relative rawURL, including a
// scheme-relative //host/path, is first resolved against base when base is
// not empty. The result is idempotent:
// Canonicalize(Canonicalize(u, "")) == Canonicalize(u, "").
func Canonicalize(rawURL, base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("canon: parse %q: %w", rawURL, err)
	}

	if base != "" && u.Scheme == "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("canon: parse base %q: %w", base, err)
		}
		u = baseURL.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if u.Opaque != "" {
		return scheme + ":" + u.Opaque, nil
	}

	var b strings.Builder
	host := canonicalHost(scheme, u)
	if scheme != "" {
		b.WriteString(scheme)
		b.WriteString(":")
	}
	if scheme != "" || host != "" {
		b.WriteString("//")
		if u.User != nil {
			b.WriteString(u.User.String())
			b.WriteString("@")
		}
		b.WriteString(host)
	}
	b.WriteString(canonicalPath(u.Path, host != ""))

	if q := canonicalQuery(u.RawQuery); q != "" {
		b.WriteString("?")
		b.WriteString(q)
	}
	return b.String(), nil
}

// Resolve canonicalizes href found on the page at base.
func Resolve(base, href string) (string, error) {
	return Canonicalize(href, base)
}

// Crawlable reports whether a canonical URL can be handed to a page fetcher.
func Crawlable(canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func canonicalHost(scheme string, u *url.URL) string {
	if u.Host == "" {
		return ""
	}
	port := u.Port()
	if port == "" || defaultPorts[scheme] != port {
		return strings.ToLower(u.Host)
	}
	hostname := strings.ToLower(u.Hostname())
	if strings.Contains(hostname, ":") {
		return "[" + hostname + "]"
	}
	return hostname
}

// canonicalPath collapses repeated slashes, drops a trailing slash and
// percent-encodes each segment. An empty path on a URL with a host becomes "/".
func canonicalPath(p string, hasHost bool) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	if p == "" && hasHost {
		return "/"
	}

	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// canonicalQuery drops tracking parameters and stable-sorts the rest by name.
func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var params []queryParam
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name := unescapeQuery(rawName)
		if trackingParams[strings.ToLower(name)] {
			continue
		}
		params = append(params, queryParam{name: name, value: unescapeQuery(rawValue)})
	}
	if len(params) == 0 {
		return ""
	}

	sort.SliceStable(params, func(i, j int) bool {
		return params[i].name < params[j].name
	})

	encoded := make([]string, len(params))
	for i, p := range params {
		encoded[i] = url.QueryEscape(p.name) + "=" + url.QueryEscape(p.value)
	}
	return strings.Join(encoded, "&")
}

func unescapeQuery(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
