package electrician

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// preflightOAuthToken makes client-credentials token calls with backoff until
// one succeeds or the budget is spent.
func preflightOAuthToken(ctx context.Context, hc *http.Client, o OAuthConfig, total time.Duration) error {
	if !o.Enabled() {
		return nil
	}
	tokenURL := strings.TrimRight(o.Issuer, "/") + "/api/auth/oauth/token"
	if _, err := url.Parse(tokenURL); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(o.Scopes) > 0 {
		form.Set("scope", strings.Join(o.Scopes, " "))
	}
	form.Set("client_id", o.ClientID)
	form.Set("client_secret", o.ClientSecret)

	ctx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	// 250ms -> 500ms -> 1s -> 2s ...
	sleep := 250 * time.Millisecond
	var last error
	for {
		last = tokenCall(ctx, hc, tokenURL, form)
		if last == nil {
			return nil
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("token endpoint not ready: %w", last)
		case <-t.C:
		}
		if sleep < 2*time.Second {
			sleep *= 2
		}
	}
}

func tokenCall(ctx context.Context, hc *http.Client, tokenURL string, form url.Values) error {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("token status %s", resp.Status)
	}
	return nil
}
