package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/pkg/config"
)

func TestClientProvision(t *testing.T) {
	var got ProvisionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/accounts", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Account{
			UserID:         "u-123",
			AccountDetails: AccountDetails{Email: got.Email, Password: "generated"},
		})
	}))
	defer server.Close()

	client := NewClient(config.IdentityConfig{BaseURL: server.URL, APIKey: "test-key", Timeout: time.Second})
	account, err := client.Provision(context.Background(), ProvisionRequest{
		SchoolID:  "school-1",
		Role:      "STUDENT",
		FirstName: "Ivan",
		LastName:  "Ivanov",
		Email:     "ii1234@school-1.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "u-123", account.UserID)
	assert.Equal(t, "generated", account.AccountDetails.Password)
	assert.Equal(t, "school-1", got.SchoolID)
}

func TestClientProvisionErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "duplicate email", http.StatusConflict)
	}))
	defer server.Close()

	client := NewClient(config.IdentityConfig{BaseURL: server.URL})
	_, err := client.Provision(context.Background(), ProvisionRequest{Email: "x@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}

func TestClientFetchPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/accounts/u-123/password", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(AccountDetails{Email: "ii1234@school-1.example", Password: "parola123"})
	}))
	defer server.Close()

	client := NewClient(config.IdentityConfig{BaseURL: server.URL, APIKey: "test-key"})
	password, err := client.FetchPassword(context.Background(), "u-123")
	require.NoError(t, err)
	assert.Equal(t, "parola123", password)
}

func TestClientDeactivateTreatsMissingAsGone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(config.IdentityConfig{BaseURL: server.URL})
	require.NoError(t, client.Deactivate(context.Background(), "u-123"))
}
