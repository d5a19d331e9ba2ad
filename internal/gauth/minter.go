// Package gauth mints OAuth2 bearer tokens from a signed service-account
// assertion (JWT-bearer grant). It is used only by the REST fallback tiers;
// the primary SDK clients handle their own auth.
package gauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"institute-lms/backend/internal/credentials"
)

const (
	// DefaultTokenURL is the Google OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	grantType      = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL   = time.Hour
	defaultTimeout = 10 * time.Second
)

// ErrTokenExchange is returned when the token endpoint rejects the assertion
// or the response carries no access token. Carries the response body for
// diagnostics; never carries key material.
var ErrTokenExchange = errors.New("gauth: token exchange failed")

// TokenSource mints a bearer access token for the given scope.
type TokenSource interface {
	Mint(ctx context.Context, scope string) (string, error)
}

// Minter implements TokenSource with the JWT-bearer grant: it signs a
// short-lived RS256 assertion with the service-account key and exchanges it
// at the token endpoint. One attempt per call; retry policy belongs to the
// caller.
type Minter struct {
	Credentials *credentials.Store
	TokenURL    string
	HTTPClient  *http.Client

	now func() time.Time
}

// NewMinter returns a Minter using the given credential store. tokenURL may
// be empty to use DefaultTokenURL.
func NewMinter(creds *credentials.Store, tokenURL string) *Minter {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &Minter{
		Credentials: creds,
		TokenURL:    tokenURL,
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
		now:         time.Now,
	}
}

type assertionClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// Mint builds and signs the assertion, exchanges it, and returns the access
// token. Idempotent and side-effect-free beyond the single HTTP request.
func (m *Minter) Mint(ctx context.Context, scope string) (string, error) {
	cred, err := m.Credentials.Load()
	if err != nil {
		return "", err
	}

	assertion, err := m.assertion(cred, scope)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {grantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrTokenExchange, resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrTokenExchange, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: response has no access_token", ErrTokenExchange)
	}
	return payload.AccessToken, nil
}

// assertion builds the self-issued RS256 JWT: iss/sub are the service-account
// identity, aud is the token endpoint, exp is one hour out.
func (m *Minter) assertion(cred *credentials.Credential, scope string) (string, error) {
	now := m.now().UTC()
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cred.ClientEmail,
			Subject:   cred.ClientEmail,
			Audience:  jwt.ClaimStrings{m.TokenURL},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
		},
		Scope: scope,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(cred.Key)
}
