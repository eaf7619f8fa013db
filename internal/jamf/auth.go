package jamf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPClient is the subset of *http.Client used by this package.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider obtains a bearer token for the Jamf Pro API.
type TokenProvider interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// TokenInvalidator is implemented by providers whose tokens can be revoked
// before they expire.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, token string) error
}

// BasicAuthProvider exchanges a Jamf Pro username and password for a
// bearer token.
type BasicAuthProvider struct {
	baseURL    string
	username   string
	password   string
	httpClient HTTPClient
}

// NewBasicAuthProvider creates a provider for the Jamf Pro instance at baseURL.
func NewBasicAuthProvider(baseURL, username, password string, httpClient HTTPClient) *BasicAuthProvider {
	return &BasicAuthProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		httpClient: httpClient,
	}
}

// GetAccessToken requests a new token from /api/v1/auth/token.
func (p *BasicAuthProvider) GetAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/auth/token", http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(p.username, p.password)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %d, response: %s", errUnexpectedStatusCode, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tokenResp.Token == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, errEmptyToken)
	}

	return tokenResp.Token, nil
}

// InvalidateToken revokes token via /api/v1/auth/invalidate-token.
func (p *BasicAuthProvider) InvalidateToken(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/auth/invalidate-token", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invalidate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", errUnexpectedStatusCode, resp.StatusCode)
	}
	return nil
}

// ClientCredentialsProvider obtains tokens for a Jamf Pro API client using
// the OAuth2 client credentials grant.
type ClientCredentialsProvider struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentialsProvider creates a provider for an API client
// registered on the Jamf Pro instance at baseURL.
func NewClientCredentialsProvider(baseURL, clientID, clientSecret string, httpClient *http.Client) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     strings.TrimRight(baseURL, "/") + "/api/oauth/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
	}
}

// GetAccessToken requests a new token from /api/oauth/token.
func (p *ClientCredentialsProvider) GetAccessToken(ctx context.Context) (string, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	tok, err := p.config.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", fmt.Errorf("%w: HTTP %d", ErrAuthFailed, rerr.Response.StatusCode)
		}
		return "", fmt.Errorf("token request: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, errEmptyToken)
	}

	return tok.AccessToken, nil
}
