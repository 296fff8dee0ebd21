package layman

import (
	"net/http"
	"regexp"
)

// DefaultHostPattern extracts the host name from a Host header value; the
// first capture group drops any trailing ":port".
var DefaultHostPattern = regexp.MustCompile(`(\w+[^:,]*):?`)

// target is what a request is matched on. path keeps percent-escapes as
// sent, so "/a%2Fb" stays distinct from "/a/b".
type target struct {
	path    string
	method  string
	host    string
	hasHost bool
}

func deriveTarget(r *http.Request, hostPattern *regexp.Regexp) target {
	t := target{method: r.Method}
	if r.URL != nil {
		t.path = trimSlash(r.URL.EscapedPath())
	}
	if r.Host != "" && hostPattern != nil {
		if m := hostPattern.FindStringSubmatch(r.Host); len(m) > 1 {
			t.host, t.hasHost = m[1], true
		}
	}
	return t
}

// Matches reports whether the layer applies to the given request values.
// hasHost is false when the request had no usable Host header.
func (l Layer) Matches(path, method, host string, hasHost bool) bool {
	return l.Route.Allows(path, true) &&
		l.Method.Allows(method, true) &&
		l.Host.Allows(host, hasHost)
}

func (l Layer) matches(t target) bool {
	return l.Matches(t.path, t.method, t.host, t.hasHost)
}
