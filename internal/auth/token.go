// Package auth handles the client-credentials exchange against the Marketo
// identity endpoint and caches the resulting bearer token for the lifetime
// of the process.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// RefreshSkew is how long before the provider-reported expiry a token is
// treated as stale. Marketo tokens live 3600s; refreshing 5 minutes early
// keeps a token from expiring in the middle of a page of requests.
const RefreshSkew = 5 * time.Minute

// Credential identifies an API-only Marketo user. Immutable once constructed.
type Credential struct {
	ClientID     string
	ClientSecret string
	IdentityURL  string // e.g. https://123-ABC-456.mktorest.com/identity
}

// AuthError reports a failed token exchange. Authentication failures are
// fatal to the whole run, unlike per-item export failures.
type AuthError struct {
	Status int // HTTP status, 0 for transport or decode failures
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// token is the cached credential. Replaced wholesale on refresh, never mutated.
type token struct {
	value     string
	expiresAt time.Time
}

func (t *token) usable(now time.Time) bool {
	return t != nil && now.Before(t.expiresAt.Add(-RefreshSkew))
}

// TokenStore owns the bearer token and refreshes it transparently.
// It implements oauth2.TokenSource, so an authenticated *http.Client is
// obtained with oauth2.NewClient(ctx, store).
//
// The mutex is held across the refresh network call: a second caller that
// observes a stale token blocks until the first caller's in-flight exchange
// completes, then reuses its result. Exactly one identity call happens per
// refresh regardless of caller concurrency.
type TokenStore struct {
	cred Credential
	hc   *http.Client
	ctx  context.Context

	now func() time.Time

	mu  sync.Mutex
	tok *token
}

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithHTTPClient sets the client used for identity calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *TokenStore) { s.hc = hc }
}

// WithClock sets the time source. Used by tests to pin the skew boundary.
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) { s.now = now }
}

// NewTokenStore creates a TokenStore for the given credential. The context
// bounds all identity calls issued by the store.
func NewTokenStore(ctx context.Context, cred Credential, opts ...Option) *TokenStore {
	s := &TokenStore{
		cred: cred,
		hc:   &http.Client{Timeout: 30 * time.Second},
		ctx:  ctx,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a valid bearer token, refreshing it first when absent or
// within RefreshSkew of expiry. It satisfies oauth2.TokenSource.
//
// The returned Expiry is already skew-adjusted so that any caching layer
// wrapped around this store (oauth2.NewClient adds a ReuseTokenSource)
// comes back to the store at the same staleness boundary the store enforces.
func (s *TokenStore) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.tok.usable(now) {
		tok, err := s.exchange(s.ctx)
		if err != nil {
			return nil, err
		}
		s.tok = tok
	}

	return &oauth2.Token{
		AccessToken: s.tok.value,
		TokenType:   "Bearer",
		Expiry:      s.tok.expiresAt.Add(-RefreshSkew),
	}, nil
}

// Bearer returns just the token string. Convenience for callers that set
// the Authorization header themselves.
func (s *TokenStore) Bearer() (string, error) {
	tok, err := s.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// identityResponse is the body returned by GET {identity}/oauth/token.
type identityResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// exchange performs the client-credentials grant. Called with s.mu held.
func (s *TokenStore) exchange(ctx context.Context) (*token, error) {
	q := url.Values{}
	q.Set("grant_type", "client_credentials")
	q.Set("client_id", s.cred.ClientID)
	q.Set("client_secret", s.cred.ClientSecret)
	endpoint := s.cred.IdentityURL + "/oauth/token?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("build identity request: %w", err)}
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, &AuthError{Err: fmt.Errorf("identity request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("read identity response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("identity endpoint returned %s", resp.Status)}
	}

	var ir identityResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("decode identity response: %w", err)}
	}
	if ir.AccessToken == "" || ir.ExpiresIn <= 0 {
		return nil, &AuthError{Status: resp.StatusCode, Err: fmt.Errorf("identity response missing access_token or expires_in")}
	}

	return &token{
		value:     ir.AccessToken,
		expiresAt: s.now().Add(time.Duration(ir.ExpiresIn) * time.Second),
	}, nil
}
