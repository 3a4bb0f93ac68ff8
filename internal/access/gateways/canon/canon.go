// Package canon provides the URL canonicalizers used to key capture records
// and whitelist lines. Aggressive is the default; SURT produces keys that
// are already SURT-ordered.
package canon

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/haukened/wb-access/internal/access/common/surt"
	"github.com/haukened/wb-access/internal/access/domain"
)

const (
	NameAggressive = "aggressive"
	NameSURT       = "surt"
)

var (
	wwwPrefix    = regexp.MustCompile(`^www\d*\.`)
	wwwLabel     = regexp.MustCompile(`^www\d*$`)
	pathSession  = regexp.MustCompile(`;(jsessionid|phpsessid|sid)=[^/?]*`)
	sessionParam = map[string]struct{}{
		"jsessionid": {},
		"phpsessid":  {},
		"sid":        {},
		"cfid":       {},
		"cftoken":    {},
	}
)

// Aggressive lowercases the URL and strips the scheme, userinfo, "www"
// prefixes, default ports, session identifiers and the fragment. Its keys
// look like "example.com/path?q=1".
type Aggressive struct{}

// ToKey implements domain.Canonicalizer. Input that is already a SURT key
// is returned lowercased, without its fragment or a leading "www" label.
func (Aggressive) ToKey(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrMalformedURL)
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	if surt.IsKey(s) {
		return stripSURTWWW(s), nil
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedURL, err)
	}
	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(s))
	if strings.Contains(host, ":") {
		b.WriteString("[" + host + "]")
	} else {
		b.WriteString(host)
	}
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		b.WriteByte(':')
		b.WriteString(port)
	}

	path := pathSession.ReplaceAllString(u.EscapedPath(), "")
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	if q := stripSessionParams(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String(), nil
}

// SURTOrdered implements domain.Canonicalizer.
func (Aggressive) SURTOrdered() bool { return false }

// SURT applies Aggressive and then reorders the result into a SURT key,
// e.g. "com,example)/path?q=1".
type SURT struct{}

// ToKey implements domain.Canonicalizer.
func (SURT) ToKey(raw string) (string, error) {
	key, err := Aggressive{}.ToKey(raw)
	if err != nil {
		return "", err
	}
	if surt.IsKey(key) {
		return key, nil
	}
	return surt.FromURL(key)
}

// SURTOrdered implements domain.Canonicalizer.
func (SURT) SURTOrdered() bool { return true }

// ByName returns the canonicalizer registered under name.
func ByName(name string) (domain.Canonicalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameAggressive, "":
		return Aggressive{}, nil
	case NameSURT:
		return SURT{}, nil
	default:
		return nil, fmt.Errorf("unknown canonicalizer %q", name)
	}
}

// canonicalHost lowercases, converts IDN labels to punycode and removes
// "www" prefixes and trailing dots.
func canonicalHost(host string) (string, error) {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrMalformedURL)
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedURL, err)
	}
	ascii = strings.ToLower(ascii)
	if stripped := wwwPrefix.ReplaceAllString(ascii, ""); stripped != "" && strings.Contains(stripped, ".") {
		ascii = stripped
	}
	return ascii, nil
}

// stripSURTWWW removes a trailing "www" label from the host of a SURT key so
// "com,example,www)/" keys the same records as "www.example.com/".
func stripSURTWWW(key string) string {
	hostEnd := strings.IndexByte(key, ')')
	if hostEnd <= 0 || strings.HasPrefix(key, "[") {
		return key
	}
	labelsEnd := hostEnd
	if i := strings.IndexAny(key[:hostEnd], ":@"); i >= 0 {
		labelsEnd = i
	}
	i := strings.LastIndexByte(key[:labelsEnd], ',')
	if i <= 0 || !wwwLabel.MatchString(key[i+1:labelsEnd]) || !strings.Contains(key[:i], ",") {
		return key
	}
	return key[:i] + key[labelsEnd:]
}

func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "http":
		return port == "80"
	case "https":
		return port == "443"
	}
	return false
}

// stripSessionParams drops session-id parameters, keeping the order of the rest.
func stripSessionParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		name := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			name = p[:i]
		}
		if _, drop := sessionParam[name]; drop || strings.HasPrefix(name, "aspsessionid") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

var (
	_ domain.Canonicalizer = Aggressive{}
	_ domain.Canonicalizer = SURT{}
)
