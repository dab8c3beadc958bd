// Package identity talks to the external account provisioning service.
// User creation delegates credential handling to it and links the
// returned user id into school data afterwards.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edunik/edunik-api/pkg/config"
)

// ProvisionRequest asks the identity service to create an account.
type ProvisionRequest struct {
	SchoolID  string `json:"schoolId"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password,omitempty"`
}

// AccountDetails carries the credentials the service generated or
// accepted.
type AccountDetails struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Account is the provisioning response. UserID becomes the document id
// of the school-side user record.
type Account struct {
	UserID         string         `json:"userId"`
	AccountDetails AccountDetails `json:"accountDetails"`
}

// Client is an HTTP client for the identity service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client from configuration.
func NewClient(cfg config.IdentityConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Provision creates an account and returns its id and credentials.
func (c *Client) Provision(ctx context.Context, req ProvisionRequest) (*Account, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("identity: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/accounts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("identity: provision account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("identity: provision returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var account Account
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	if account.UserID == "" {
		return nil, fmt.Errorf("identity: response missing userId")
	}
	return &account, nil
}

// FetchPassword reads an account's current plaintext password from the
// credential endpoint. Only roster exports call this; the school side
// never stores the value.
func (c *Client) FetchPassword(ctx context.Context, userID string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/accounts/"+userID+"/password", nil)
	if err != nil {
		return "", fmt.Errorf("identity: build request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("identity: fetch password: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("identity: password fetch returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var details AccountDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return "", fmt.Errorf("identity: decode response: %w", err)
	}
	return details.Password, nil
}

// Deactivate disables an account after the school-side user is deleted.
func (c *Client) Deactivate(ctx context.Context, userID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/accounts/"+userID, nil)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("identity: deactivate account: %w", err)
	}
	defer resp.Body.Close()

	// A missing account counts as deactivated.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("identity: deactivate returned %d", resp.StatusCode)
	}
	return nil
}
