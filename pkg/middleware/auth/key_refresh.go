package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const minKeyTTL = 5 * time.Second

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// refreshLoop refetches the assertion key every cache TTL until ctx is done.
func (m *Middleware) refreshLoop(ctx context.Context) {
	for {
		wait := m.keyTTL()
		if wait < minKeyTTL {
			wait = minKeyTTL
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if err := m.RefreshKey(ctx); err != nil && ctx.Err() == nil {
			m.log.Warn("assertion key refresh failed", zap.String("url", m.opts.KeyURL), zap.Error(err))
		}
	}
}

// RefreshKey fetches the assertion key from the configured JWKS or PEM URL.
// A 304 keeps the current key.
func (m *Middleware) RefreshKey(ctx context.Context) error {
	if m.opts.KeyURL == "" {
		return errors.New("ASSERTION_KEY_URL not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.opts.KeyURL, nil)
	if err != nil {
		return err
	}
	if etag := m.etag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	req.Header.Set("Accept", "*/*")

	res, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified && m.key() != nil {
		m.mu.Lock()
		m.applyCacheControl(res.Header.Get("Cache-Control"))
		m.lastFetch = time.Now()
		m.mu.Unlock()
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("key fetch %s: %s", m.opts.KeyURL, res.Status)
	}

	var pub *rsa.PublicKey
	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") || strings.HasSuffix(strings.ToLower(m.opts.KeyURL), ".json") {
		pub, err = m.decodeJWKS(res.Body)
	} else {
		pub, err = decodePEM(res.Body)
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.assertKey = pub
	m.assertETag = res.Header.Get("ETag")
	m.applyCacheControl(res.Header.Get("Cache-Control"))
	m.lastFetch = time.Now()
	m.mu.Unlock()
	m.log.Debug("assertion key loaded", zap.String("url", m.opts.KeyURL))
	return nil
}

// decodeJWKS picks the key with the configured kid, or the first RSA signing key.
func (m *Middleware) decodeJWKS(r io.Reader) (*rsa.PublicKey, error) {
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, err
	}

	var sel *jwk
	for i := range set.Keys {
		k := &set.Keys[i]
		if k.Kty != "RSA" {
			continue
		}
		if m.opts.KeyKID != "" {
			if k.Kid == m.opts.KeyKID {
				sel = k
				break
			}
			continue
		}
		if (k.Use == "" || k.Use == "sig") && (k.Alg == "" || strings.EqualFold(k.Alg, "RS256")) {
			sel = k
			break
		}
	}
	if sel == nil {
		return nil, errors.New("no suitable RSA key in JWKS")
	}

	n, err := base64.RawURLEncoding.DecodeString(sel.N)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.n: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(sel.E)
	if err != nil {
		return nil, fmt.Errorf("bad jwks.e: %w", err)
	}
	exp := 0
	for _, b := range e {
		exp = exp<<8 | int(b)
	}
	if exp == 0 {
		exp = 65537
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}, nil
}

func decodePEM(r io.Reader) (*rsa.PublicKey, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block in response")
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM is not RSA public key")
	}
	return pub, nil
}

// applyCacheControl expects m.mu held.
func (m *Middleware) applyCacheControl(cc string) {
	for _, p := range strings.Split(cc, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if v, ok := strings.CutPrefix(p, "max-age="); ok {
			if s, err := strconv.Atoi(v); err == nil && time.Duration(s)*time.Second >= minKeyTTL {
				m.cacheTTL = time.Duration(s) * time.Second
				return
			}
		}
	}
}

func (m *Middleware) key() *rsa.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertKey
}

func (m *Middleware) etag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assertETag
}

func (m *Middleware) keyTTL() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cacheTTL
}
