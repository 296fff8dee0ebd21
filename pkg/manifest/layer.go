package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Layer describes one dispatcher layer. Empty route, method or host leave
// that dimension open.
type Layer struct {
	Route   string   `toml:"route"`
	Method  string   `toml:"method"`
	Host    string   `toml:"host"`
	Async   bool     `toml:"async"`
	Guard   Guard    `toml:"guard"`
	Policy  Policy   `toml:"policy"`
	Handler HSpec    `toml:"handler"`
	Tags    []string `toml:"tags"`
}

type Guard struct {
	Roles       []string `toml:"roles"`
	Users       []string `toml:"users"`
	RequireAuth bool     `toml:"require_auth"`
}

// Active reports whether the guard restricts anything.
func (g Guard) Active() bool {
	return g.RequireAuth || len(g.Users) > 0 || len(g.Roles) > 0
}

type Policy struct {
	TimeoutMS int       `toml:"timeout_ms"`
	DownAuth  *DownAuth `toml:"down_auth"` // credentials forwarded by relay and proxy layers
}

// DownAuth selects how downstream credentials are issued.
type DownAuth struct {
	Type     string `toml:"type"` // none | passthrough-cookie | static-bearer | token-exchange
	Audience string `toml:"audience"`
}

type HSpec struct {
	Type    HandlerType  `toml:"type"`
	Name    string       `toml:"name"`
	Respond *RespondSpec `toml:"respond"`
	Proxy   *ProxySpec   `toml:"proxy"`
	Relay   *RelaySpec   `toml:"relay"`
}

type RespondSpec struct {
	Status      int               `toml:"status"`
	Body        string            `toml:"body"`
	JSON        map[string]any    `toml:"json"`
	ContentType string            `toml:"content_type"`
	Headers     map[string]string `toml:"headers"`
	Stop        bool              `toml:"stop"` // end the chain after responding
}

type ProxySpec struct {
	URL         string   `toml:"url"`
	PassHeaders []string `toml:"pass_headers"`
}

type RelaySpec struct {
	Topic      string `toml:"topic"`
	DeadlineMS int    `toml:"deadline_ms"`
}

// normalize route/method/host
func (l *Layer) normalize() {
	l.Route = strings.TrimSpace(l.Route)
	if l.Route != "" && !strings.HasPrefix(l.Route, "/") {
		l.Route = "/" + l.Route
	}
	l.Method = strings.ToUpper(strings.TrimSpace(l.Method))
	l.Host = strings.TrimSpace(l.Host)
	l.Handler.Name = strings.TrimSpace(l.Handler.Name)
}

// validate fields that are independent of global state.
func (l *Layer) validate() error {
	switch l.Handler.Type {
	case HandlerInproc:
		if l.Handler.Name == "" {
			return errors.New("handler.name required for inproc")
		}
	case HandlerRespond:
		if rs := l.Handler.Respond; rs != nil && rs.Status != 0 && (rs.Status < 100 || rs.Status > 599) {
			return fmt.Errorf("handler.respond.status %d out of range", rs.Status)
		}
	case HandlerRelay:
		if l.Handler.Relay == nil || strings.TrimSpace(l.Handler.Relay.Topic) == "" {
			return errors.New("handler.relay.topic required for relay")
		}
		if l.Handler.Relay.DeadlineMS < 0 {
			return errors.New("handler.relay.deadline_ms must be >= 0")
		}
	case HandlerProxy:
		if l.Handler.Proxy == nil || strings.TrimSpace(l.Handler.Proxy.URL) == "" {
			return errors.New("handler.proxy.url required for proxy")
		}
		u, err := url.Parse(l.Handler.Proxy.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("handler.proxy.url %q is not absolute", l.Handler.Proxy.URL)
		}
	case HandlerGroup:
		if l.Handler.Name == "" {
			return errors.New("handler.name required for group")
		}
	default:
		return fmt.Errorf("unknown handler type %q", l.Handler.Type)
	}

	if l.Policy.TimeoutMS < 0 {
		return errors.New("policy.timeout_ms must be >= 0")
	}
	if da := l.Policy.DownAuth; da != nil {
		switch da.Type {
		case "", "none", "passthrough-cookie", "static-bearer", "token-exchange":
		default:
			return fmt.Errorf("policy.down_auth.type %q not supported", da.Type)
		}
	}
	return nil
}
