package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultSignupURL is the identity-service REST sign-up endpoint.
const DefaultSignupURL = "https://identitytoolkit.googleapis.com/v1/accounts:signUp"

const signupTimeout = 10 * time.Second

// SignupAPI is the fallback sign-up call. Implemented by SignupClient;
// narrowed to an interface so tests can count attempts.
type SignupAPI interface {
	SignUp(ctx context.Context, email, password string) (uid string, err error)
}

// SignupClient creates users via the identity-service REST endpoint,
// authenticated by the public web API key only. No bearer token is needed on
// this endpoint.
type SignupClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewSignupClient returns a SignupClient. baseURL may be empty to use
// DefaultSignupURL.
func NewSignupClient(apiKey, baseURL string) *SignupClient {
	if baseURL == "" {
		baseURL = DefaultSignupURL
	}
	return &SignupClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: signupTimeout},
	}
}

// SignUp creates the user and returns the new uid (localId). The account is
// created without a secure token; the user signs in later through the normal
// login flow.
func (c *SignupClient) SignUp(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": false,
	})
	if err != nil {
		return "", err
	}
	endpoint := c.BaseURL + "?key=" + url.QueryEscape(c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("identity: sign-up rejected: %s", apiErr.Error.Message)
		}
		return "", fmt.Errorf("identity: sign-up failed status=%d", resp.StatusCode)
	}

	var result struct {
		LocalID string `json:"localId"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("identity: decoding sign-up response: %w", err)
	}
	if result.LocalID == "" {
		return "", fmt.Errorf("identity: sign-up response has no localId")
	}
	return result.LocalID, nil
}
