package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	manager, err := NewTokenManager("test-signing-key", time.Hour)
	require.NoError(t, err)

	token, err := manager.Issue("user-1", []string{"customer", "admin"})
	require.NoError(t, err)

	principal, err := manager.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", principal.UserID)
	require.True(t, principal.HasRole(RoleAdmin))
	require.False(t, principal.HasRole("auditor"))
}

func TestVerify_RejectsTamperedAndExpired(t *testing.T) {
	manager, err := NewTokenManager("test-signing-key", time.Hour)
	require.NoError(t, err)

	_, err = manager.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenManager("another-key", time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("user-1", nil)
	require.NoError(t, err)
	_, err = manager.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	shortLived, err := NewTokenManager("test-signing-key", time.Nanosecond)
	require.NoError(t, err)
	expired, err := shortLived.Issue("user-1", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = shortLived.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenManager_RequiresKey(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	require.ErrorIs(t, err, ErrMissingKey)
}
