package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrEmptyTarget       = errors.New("utils: empty target")
	ErrMissingHost       = errors.New("utils: target has no host")
	ErrUnsupportedScheme = errors.New("utils: unsupported scheme")
)

// trackingParams are dropped from canonical targets.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "mc_cid": {}, "mc_eid": {},
}

// CanonicalTarget normalizes a user supplied audit target so that equivalent
// spellings map to the same string. Schemeless input is assumed to be https.
//
//	"Example.COM:443/a/../b/?b=2&a=1#top" -> "https://example.com/b/?a=1&b=2"
//	"http://例え.テスト"                   -> "http://xn--r8jz45g.xn--zckzah/"
func CanonicalTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyTarget
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("utils: parse target %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrMissingHost
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	switch port := u.Port(); {
	case port == "", u.Scheme == "http" && port == "80", u.Scheme == "https" && port == "443":
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	default:
		u.Host = net.JoinHostPort(host, port)
	}

	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""

	p := path.Clean(u.Path)
	if p == "." {
		p = "/"
	}
	// A trailing slash names a different resource on most servers.
	if strings.HasSuffix(u.Path, "/") && p != "/" {
		p += "/"
	}
	u.Path = p
	u.RawPath = ""

	u.RawQuery = canonicalQuery(u.Query())
	return u.String(), nil
}

// canonicalQuery drops tracking parameters and encodes the rest with keys and
// values sorted.
func canonicalQuery(q url.Values) string {
	for k := range q {
		if _, ok := trackingParams[strings.ToLower(k)]; ok {
			delete(q, k)
		}
	}
	for _, vs := range q {
		sort.Strings(vs)
	}
	// Encode sorts by key.
	return q.Encode()
}
