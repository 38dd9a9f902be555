package zoho

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mbd888/distrokit/internal/config"
	"github.com/mbd888/distrokit/internal/retry"
)

const (
	// tokenRefreshMargin is how long before expiry a cached token is replaced.
	tokenRefreshMargin = 5 * time.Minute
	// defaultTokenLifetime applies to static tokens and to token responses
	// without expires_in.
	defaultTokenLifetime = time.Hour
)

// tokenCache hands out Zoho access tokens, exchanging the refresh token only
// when the cached one is within tokenRefreshMargin of expiring.
type tokenCache struct {
	cfg        config.ZohoConfig
	httpClient *http.Client
	policy     retry.Policy
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func (tc *tokenCache) usesRefreshToken() bool {
	return tc.cfg.RefreshToken != "" && tc.cfg.ClientID != "" && tc.cfg.ClientSecret != ""
}

// Token returns a valid access token. Concurrent callers share one exchange.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := tc.now()
	if tc.token != "" && now.Before(tc.expiresAt.Add(-tokenRefreshMargin)) {
		return tc.token, nil
	}

	if !tc.usesRefreshToken() {
		if tc.cfg.AccessToken == "" {
			return "", fmt.Errorf("%w: no Zoho access token or refresh credentials", ErrConfiguration)
		}
		tc.token = tc.cfg.AccessToken
		tc.expiresAt = now.Add(defaultTokenLifetime)
		return tc.token, nil
	}

	tok, err := tc.exchange(ctx)
	if err != nil {
		return "", err
	}

	tc.token = tok.AccessToken
	tc.expiresAt = tok.Expiry
	if tc.expiresAt.IsZero() {
		tc.expiresAt = now.Add(defaultTokenLifetime)
	}
	return tc.token, nil
}

// invalidate drops the cached token if it is still the one Zoho refused, so
// the next call exchanges again instead of waiting out the local expiry.
func (tc *tokenCache) invalidate(token string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.token == token {
		tc.token = ""
		tc.expiresAt = time.Time{}
	}
}

// exchange runs the refresh_token grant. A fresh oauth2 source is built per
// exchange so its own reuse layer never serves a token this cache considers
// stale.
func (tc *tokenCache) exchange(ctx context.Context) (*oauth2.Token, error) {
	oc := &oauth2.Config{
		ClientID:     tc.cfg.ClientID,
		ClientSecret: tc.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tc.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tc.httpClient)

	var tok *oauth2.Token
	err := retry.Do(ctx, tc.policy, func(ctx context.Context) error {
		t, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: tc.cfg.RefreshToken}).Token()
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && (re.Response == nil || re.Response.StatusCode < 500) {
				return retry.Permanent(err)
			}
			return err
		}
		tok = t
		return nil
	})
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && (re.Response == nil || re.Response.StatusCode < 500) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, &APIError{HTTPStatus: status, Message: "token exchange: " + re.Error()}
		}
		return nil, fmt.Errorf("%w: token exchange: %w", ErrProviderUnavailable, err)
	}
	if tok.AccessToken == "" {
		return nil, &APIError{Message: "token exchange: empty access token"}
	}
	return tok, nil
}
