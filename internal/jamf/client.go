// Package jamf talks to the Jamf Pro API: authentication, computer
// enumeration and per-computer inventory records.
package jamf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/escape-velocity-ventures/jamf-uptime/internal/inventory"
)

// Client is an inventory.Source backed by the Jamf Pro Classic API.
//
// The token is obtained once by Authenticate and reused for every request
// of the run; it is not refreshed if it expires mid-run.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	tokens     TokenProvider
	token      string
	log        *slog.Logger
}

var _ inventory.Source = (*Client)(nil)

// NewClient creates a client for the Jamf Pro instance at baseURL.
func NewClient(baseURL string, tokens TokenProvider, httpClient HTTPClient) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		log:        slog.Default().With("component", "jamf"),
	}
}

// Authenticate fetches the bearer token used by subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	c.token = token
	c.log.Debug("authenticated", "url", c.baseURL)
	return nil
}

// Close revokes the token when the provider supports it. Errors are logged.
func (c *Client) Close(ctx context.Context) {
	inv, ok := c.tokens.(TokenInvalidator)
	if !ok || c.token == "" {
		return
	}
	if err := inv.InvalidateToken(ctx, c.token); err != nil {
		c.log.Debug("token invalidation failed", "error", err)
	}
	c.token = ""
}

// ListDevices returns every computer known to Jamf.
func (c *Client) ListDevices(ctx context.Context) ([]inventory.Summary, error) {
	var body computersResponse
	if err := c.get(ctx, "/JSSResource/computers/subset/basic", &body); err != nil {
		return nil, fmt.Errorf("list computers: %w", err)
	}

	summaries := make([]inventory.Summary, 0, len(body.Computers))
	for _, comp := range body.Computers {
		summaries = append(summaries, inventory.Summary{
			ID:     strconv.Itoa(comp.ID),
			Name:   comp.Name,
			Serial: comp.SerialNumber,
		})
	}

	c.log.Info("computers enumerated", "count", len(summaries))
	return summaries, nil
}

// Device returns the inventory record for the computer with the given id.
func (c *Client) Device(ctx context.Context, id string) (*inventory.Device, error) {
	var body computerResponse
	if err := c.get(ctx, "/JSSResource/computers/id/"+url.PathEscape(id), &body); err != nil {
		return nil, fmt.Errorf("computer %s: %w", id, err)
	}
	if body.Computer == nil {
		return nil, fmt.Errorf("computer %s: %w", id, ErrNotFound)
	}

	comp := body.Computer
	dev := &inventory.Device{
		ID:       strconv.Itoa(comp.General.ID),
		Name:     comp.General.Name,
		Serial:   comp.General.SerialNumber,
		Username: comp.Location.Username,
		Email:    comp.Location.EmailAddress,
	}
	if comp.General.ID == 0 {
		dev.ID = id
	}
	for _, ea := range comp.ExtensionAttributes {
		if !ea.Value.Valid {
			continue
		}
		dev.Attributes = append(dev.Attributes, inventory.Attribute{Name: ea.Name, Value: ea.Value.Text})
	}

	return dev, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.token == "" {
		return errNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %d, response: %s", errUnexpectedStatusCode, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
