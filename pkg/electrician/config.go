package electrician

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config describes the forward relay. LoadConfigFromEnv fills it.
//
//	ELECTRICIAN_TARGET          = "host:port[,host2:port2]"   (required for a real relay)
//	ELECTRICIAN_TLS_ENABLE      = "true" | "false"
//	ELECTRICIAN_TLS_CLIENT_CRT  = path (default: keys/tls/client.crt)
//	ELECTRICIAN_TLS_CLIENT_KEY  = path (default: keys/tls/client.key)
//	ELECTRICIAN_TLS_CA          = path (default: keys/tls/ca.crt)
//	ELECTRICIAN_TLS_INSECURE    = "true" | "false"  (dev only; OAuth HTTP client)
//	ELECTRICIAN_COMPRESS        = "snappy" | ""
//	ELECTRICIAN_ENCRYPT         = "aesgcm" | ""
//	ELECTRICIAN_AES256_KEY_HEX  = 64 hex chars (32 bytes)
//	ELECTRICIAN_STATIC_HEADERS  = "k=v,k2=v2"
//
// OAuth2 client credentials are enabled when issuer, id and secret are all set:
//
//	OAUTH_ISSUER_BASE, OAUTH_JWKS_URL, OAUTH_CLIENT_ID, OAUTH_CLIENT_SECRET,
//	OAUTH_SCOPES ("s1,s2"), OAUTH_REFRESH_LEEWAY (default 20s)
type Config struct {
	Targets []string

	TLS         bool
	TLSCert     string
	TLSKey      string
	TLSCA       string
	TLSInsecure bool

	Snappy bool
	AESKey string // raw 32 bytes; empty disables AES-GCM

	StaticHeaders map[string]string

	OAuth OAuthConfig
}

type OAuthConfig struct {
	Issuer       string
	JWKSURL      string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Leeway       time.Duration
}

func (o OAuthConfig) Enabled() bool {
	return o.Issuer != "" && o.ClientID != "" && o.ClientSecret != ""
}

func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Targets:       splitCSV(os.Getenv("ELECTRICIAN_TARGET")),
		TLS:           strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_ENABLE"), "true"),
		TLSCert:       envOr("ELECTRICIAN_TLS_CLIENT_CRT", "keys/tls/client.crt"),
		TLSKey:        envOr("ELECTRICIAN_TLS_CLIENT_KEY", "keys/tls/client.key"),
		TLSCA:         envOr("ELECTRICIAN_TLS_CA", "keys/tls/ca.crt"),
		TLSInsecure:   strings.EqualFold(os.Getenv("ELECTRICIAN_TLS_INSECURE"), "true"),
		Snappy:        strings.EqualFold(os.Getenv("ELECTRICIAN_COMPRESS"), "snappy"),
		StaticHeaders: parseKV(os.Getenv("ELECTRICIAN_STATIC_HEADERS")),
		OAuth: OAuthConfig{
			Issuer:       strings.TrimSpace(os.Getenv("OAUTH_ISSUER_BASE")),
			JWKSURL:      strings.TrimSpace(os.Getenv("OAUTH_JWKS_URL")),
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET")),
			Scopes:       splitCSV(os.Getenv("OAUTH_SCOPES")),
			Leeway:       parseDur(envOr("OAUTH_REFRESH_LEEWAY", "20s")),
		},
	}
	if strings.EqualFold(os.Getenv("ELECTRICIAN_ENCRYPT"), "aesgcm") {
		raw, err := hex.DecodeString(strings.TrimSpace(os.Getenv("ELECTRICIAN_AES256_KEY_HEX")))
		if err != nil || len(raw) != 32 {
			return Config{}, fmt.Errorf("ELECTRICIAN_AES256_KEY_HEX must be 64 hex chars (32 bytes): %v", err)
		}
		cfg.AESKey = string(raw)
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func parseKV(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func parseDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	if d == 0 {
		d = 20 * time.Second
	}
	return d
}
