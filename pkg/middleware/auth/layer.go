package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/joeydtaylor/layman/pkg/layman"
	"go.uber.org/zap"
)

// Layer resolves the caller and attaches it to the request seen by later
// layers. Sources, in order: dev headers (bypass only), assertion cookie or
// bearer token, session cookie checked against the session API. A session
// cookie the API rejects answers 401 and stops the chain; no credentials at
// all continues unauthenticated.
func (m *Middleware) Layer() layman.Handler {
	return layman.HandlerFunc(func(w layman.ResponseWriter, r *http.Request, next *layman.Next) layman.Result {
		attach := func(u User) layman.Result {
			next.SetRequest(r.WithContext(WithUser(r.Context(), u)))
			return layman.Continue
		}

		if m.opts.DevBypass {
			if u := devUserFromHeaders(r); u.Username != "" {
				return attach(u)
			}
		}

		if raw := m.assertionToken(r); raw != "" && m.key() != nil {
			u, err := m.validateAssertion(raw)
			if err == nil {
				return attach(u)
			}
			m.log.Debug("assertion rejected", zap.Error(err))
		}

		if m.opts.CookieName != "" {
			if c, err := r.Cookie(m.opts.CookieName); err == nil && c.Value != "" {
				u, err := m.validateSession(r.Context(), c)
				if err == nil && u.Username != "" {
					return attach(u)
				}
				m.log.Debug("session rejected", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return layman.Stop
			}
		}

		return layman.Continue
	})
}

func (m *Middleware) assertionToken(r *http.Request) string {
	if c, err := r.Cookie(m.opts.AssertCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if m.opts.AcceptBearer {
		if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return ""
}

func (m *Middleware) validateSession(ctx context.Context, c *http.Cookie) (User, error) {
	if m.opts.SessionAPI == "" {
		return User{}, errors.New("SESSION_STATE_API not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.opts.SessionAPI, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.AddCookie(c)

	res, err := m.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("session api status %d", res.StatusCode)
	}

	var u User
	if err := json.NewDecoder(res.Body).Decode(&u); err != nil {
		return User{}, err
	}
	return u, nil
}
