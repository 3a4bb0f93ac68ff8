// Package surt converts canonical URLs into SURT keys and expands a key
// into the ordered prefix terms used for whitelist lookups.
//
// Keys use the CDX layout: reversed host labels joined by ',', an optional
// ":port" and "@userinfo", then ')' and the path with query, e.g.
//
//	com,example,www:8080)/a/b.html?x=1
package surt

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/haukened/wb-access/internal/access/domain"
)

// FromURL converts an absolute or scheme-less URL into its SURT key.
// The fragment is dropped; an empty path becomes "/".
func FromURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrMalformedURL)
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedURL, err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: missing host in %q", domain.ErrMalformedURL, raw)
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteString(reverseHost(host))
	if port := u.Port(); port != "" {
		b.WriteByte(':')
		b.WriteString(port)
	}
	if u.User != nil {
		b.WriteByte('@')
		b.WriteString(u.User.String())
	}
	b.WriteByte(')')
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String(), nil
}

// reverseHost reverses dotted host labels into comma order. IP literals keep
// their natural order; IPv6 literals are bracketed so their colons are not
// mistaken for a port separator.
func reverseHost(host string) string {
	if ip := net.ParseIP(host); ip != nil {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	labels := strings.Split(host, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ",")
}

// IsKey reports whether s already looks like a SURT key rather than a URL:
// no scheme, and a ')' closing a host part that holds no '/' and is either
// comma-ordered or an IP literal.
func IsKey(s string) bool {
	if strings.Contains(s, "://") {
		return false
	}
	end := strings.IndexByte(s, ')')
	if end <= 0 {
		return false
	}
	host := s[:end]
	if strings.ContainsAny(host, "/?#") {
		return false
	}
	if strings.Contains(host, ",") || strings.HasPrefix(host, "[") {
		return true
	}
	if i := strings.IndexAny(host, ":@"); i >= 0 {
		host = host[:i]
	}
	return net.ParseIP(host) != nil
}

// PrefixKey converts a canonical, non-SURT URL into the whitelist entry that
// covers it. A bare host becomes its host term without ')', so it matches
// the host and every subdomain. A directory path loses its trailing '/'.
func PrefixKey(raw string) (string, error) {
	key, err := FromURL(raw)
	if err != nil {
		return "", err
	}
	end := strings.IndexByte(key, ')')
	path := key[end+1:]
	switch {
	case path == "/":
		return key[:end], nil
	case strings.HasSuffix(path, "/") && !strings.Contains(path, "?"):
		return key[:len(key)-1], nil
	default:
		return key, nil
	}
}

// keyFor returns the SURT key for a canonical url. Keys that are already
// SURT-ordered only lose their fragment.
func keyFor(raw string, surtOrdered bool) (string, error) {
	s := strings.TrimSpace(raw)
	if surtOrdered || IsKey(s) {
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		if strings.IndexByte(s, ')') <= 0 {
			return "", fmt.Errorf("%w: %q is not a SURT key", domain.ErrMalformedURL, raw)
		}
		return s, nil
	}
	return FromURL(s)
}
