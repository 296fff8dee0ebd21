package auth

import (
	"crypto/rsa"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Options is the auth layer configuration. OptionsFromEnv fills it from the
// process environment.
type Options struct {
	SessionAPI       string // SESSION_STATE_API
	CookieName       string // SESSION_COOKIE_NAME
	AdminRole        string // ADMIN_ROLE_NAME
	DevBypass        bool   // AUTH_DEV_BYPASS
	AssertCookieName string // ASSERTION_COOKIE_NAME (default "assert")
	AcceptBearer     bool   // ASSERTION_ACCEPT_BEARER: also read "Authorization: Bearer <jwt>"
	KeyURL           string // ASSERTION_KEY_URL: JWKS or PEM endpoint
	KeyKID           string // ASSERTION_KEY_KID
	Issuer           string // ASSERTION_ISSUER
	Audience         string // ASSERTION_AUDIENCE
	Leeway           time.Duration
}

func OptionsFromEnv() Options {
	leeway := 60 * time.Second
	if v := strings.TrimSpace(os.Getenv("ASSERTION_LEEWAY_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			leeway = time.Duration(n) * time.Second
		}
	}
	return Options{
		SessionAPI:       os.Getenv("SESSION_STATE_API"),
		CookieName:       os.Getenv("SESSION_COOKIE_NAME"),
		AdminRole:        os.Getenv("ADMIN_ROLE_NAME"),
		DevBypass:        os.Getenv("AUTH_DEV_BYPASS") == "true",
		AssertCookieName: strings.TrimSpace(os.Getenv("ASSERTION_COOKIE_NAME")),
		AcceptBearer:     os.Getenv("ASSERTION_ACCEPT_BEARER") == "true",
		KeyURL:           strings.TrimSpace(os.Getenv("ASSERTION_KEY_URL")),
		KeyKID:           strings.TrimSpace(os.Getenv("ASSERTION_KEY_KID")),
		Issuer:           strings.TrimSpace(os.Getenv("ASSERTION_ISSUER")),
		Audience:         strings.TrimSpace(os.Getenv("ASSERTION_AUDIENCE")),
		Leeway:           leeway,
	}
}

type Middleware struct {
	opts       Options
	httpClient HTTPDoer
	log        *zap.Logger

	// guarded by mu
	mu         sync.RWMutex
	assertKey  *rsa.PublicKey
	assertETag string
	cacheTTL   time.Duration
	lastFetch  time.Time
}

// New builds the auth layer. client and log may be nil.
func New(opts Options, client HTTPDoer, log *zap.Logger) *Middleware {
	if opts.AssertCookieName == "" {
		opts.AssertCookieName = "assert"
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
			Timeout: 8 * time.Second,
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{
		opts:       opts,
		httpClient: client,
		log:        log,
		cacheTTL:   1 * time.Hour, // default; overridable by Cache-Control
	}
}
