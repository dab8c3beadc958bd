package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("school-1", "users/roster.xlsx")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	tenantID, path, parsedExpiry, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "school-1", tenantID)
	require.Equal(t, "users/roster.xlsx", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignerRejectsExpired(t *testing.T) {
	signer := NewSigner("secret", time.Millisecond*10)
	token, _, err := signer.Sign("school-1", "users/roster.xlsx")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Verify(token)
	require.Error(t, err)
}

func TestSignerRejectsTampering(t *testing.T) {
	signer := NewSigner("secret", time.Hour)
	token, _, err := signer.Sign("school-1", "users/roster.xlsx")
	require.NoError(t, err)

	_, _, _, err = signer.Verify(token + "x")
	require.Error(t, err)

	other := NewSigner("different", time.Hour)
	_, _, _, err = other.Verify(token)
	require.Error(t, err)
}
