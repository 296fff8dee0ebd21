package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	manifest "github.com/joeydtaylor/layman/pkg/manifest"
	"github.com/joeydtaylor/layman/pkg/middleware/auth"
)

type DownstreamCredentials struct {
	HeaderName  string
	HeaderValue string
	Extra       map[string]string
}

func (c DownstreamCredentials) apply(h map[string]string) {
	if c.HeaderName == "" || c.HeaderValue == "" {
		return
	}
	h[c.HeaderName] = c.HeaderValue
	for k, v := range c.Extra {
		h[k] = v
	}
}

// CredentialsProvider issues the credentials a relay or proxy layer forwards.
type CredentialsProvider interface {
	Issue(ctx context.Context, r *http.Request, l manifest.Layer) (DownstreamCredentials, error)
}

type NoAuthProvider struct{}

func (NoAuthProvider) Issue(context.Context, *http.Request, manifest.Layer) (DownstreamCredentials, error) {
	return DownstreamCredentials{}, nil
}

type PassthroughCookieProvider struct {
	CookieName string
	HeaderName string // default: "Cookie"
}

func (p PassthroughCookieProvider) Issue(_ context.Context, r *http.Request, _ manifest.Layer) (DownstreamCredentials, error) {
	if p.CookieName == "" {
		return DownstreamCredentials{}, nil
	}
	h := p.HeaderName
	if h == "" {
		h = "Cookie"
	}
	c, err := r.Cookie(p.CookieName)
	if err != nil || c.Value == "" {
		return DownstreamCredentials{}, nil
	}
	return DownstreamCredentials{HeaderName: h, HeaderValue: fmt.Sprintf("%s=%s", p.CookieName, c.Value)}, nil
}

type StaticBearerProvider struct {
	HeaderName string
	Token      string
}

func (p StaticBearerProvider) Issue(context.Context, *http.Request, manifest.Layer) (DownstreamCredentials, error) {
	if p.Token == "" {
		return DownstreamCredentials{}, nil
	}
	h := p.HeaderName
	if h == "" {
		h = "Authorization"
	}
	val := p.Token
	if !strings.HasPrefix(val, "Bearer ") {
		val = "Bearer " + val
	}
	return DownstreamCredentials{HeaderName: h, HeaderValue: val}, nil
}

// TokenExchangeProvider mints a placeholder token for the authenticated user
// scoped to the layer's audience.
type TokenExchangeProvider struct {
	Auth *auth.Middleware
}

func (p TokenExchangeProvider) Issue(_ context.Context, r *http.Request, l manifest.Layer) (DownstreamCredentials, error) {
	if p.Auth == nil {
		return DownstreamCredentials{}, nil
	}
	u := p.Auth.GetUser(r.Context())
	if u.Username == "" {
		return DownstreamCredentials{}, nil
	}
	aud := ""
	if l.Policy.DownAuth != nil {
		aud = l.Policy.DownAuth.Audience
	}
	// TODO: call the exchange service at TOKEN_EXCHANGE_URL instead of minting a dev token.
	token := fmt.Sprintf("dev.%s.%s", u.Username, aud)
	return DownstreamCredentials{HeaderName: "Authorization", HeaderValue: "Bearer " + token}, nil
}

// policyProvider picks a provider from each layer's policy.down_auth.
type policyProvider struct {
	cookieName string
	bearer     string
	auth       *auth.Middleware
}

// NewPolicyProvider reads SESSION_COOKIE_NAME and ELECTRICIAN_STATIC_BEARER
// once and dispatches on each layer's policy.
func NewPolicyProvider(a *auth.Middleware) CredentialsProvider {
	return policyProvider{
		cookieName: strings.TrimSpace(os.Getenv("SESSION_COOKIE_NAME")),
		bearer:     strings.TrimSpace(os.Getenv("ELECTRICIAN_STATIC_BEARER")),
		auth:       a,
	}
}

func (p policyProvider) Issue(ctx context.Context, r *http.Request, l manifest.Layer) (DownstreamCredentials, error) {
	if l.Policy.DownAuth == nil {
		return DownstreamCredentials{}, nil
	}
	switch l.Policy.DownAuth.Type {
	case "passthrough-cookie":
		return PassthroughCookieProvider{CookieName: p.cookieName}.Issue(ctx, r, l)
	case "static-bearer":
		return StaticBearerProvider{Token: p.bearer}.Issue(ctx, r, l)
	case "token-exchange":
		return TokenExchangeProvider{Auth: p.auth}.Issue(ctx, r, l)
	}
	return NoAuthProvider{}.Issue(ctx, r, l)
}
