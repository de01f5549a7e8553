package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

func TestConnectionsCmd_Structure(t *testing.T) {
	assert.Equal(t, "connections", connectionsCmd.Use)
	assert.Equal(t, "reset [integration]", connectionsResetCmd.Use)

	names := make([]string, 0)
	for _, c := range connectionsCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "reset"}, names)
}

func TestConnectionsList(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		setupTestServices(t, &Services{})
		_, err := execute(t, "connections", "list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection service not configured")
	})

	t.Run("empty", func(t *testing.T) {
		setupTestServices(t, &Services{Connections: &mockConnectionService{}})
		out, err := execute(t, "connections", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "No connections cached.")
	})

	t.Run("lists with pending consent url", func(t *testing.T) {
		svc := &mockConnectionService{conns: []domain.Connection{
			{IntegrationID: domain.IntegrationFiles, UserID: "user-1", Status: domain.ConnectionActive},
			{IntegrationID: domain.IntegrationDatabase, UserID: "user-1", Status: domain.ConnectionPending, RedirectURL: "https://consent.example.com/x"},
		}}
		setupTestServices(t, &Services{Connections: svc})

		out, err := execute(t, "connections", "list")

		require.NoError(t, err)
		assert.Contains(t, out, "google_drive")
		assert.Contains(t, out, "active")
		assert.Contains(t, out, "pending")
		assert.Contains(t, out, "https://consent.example.com/x")
	})

	t.Run("flags expired oauth tokens", func(t *testing.T) {
		svc := &mockConnectionService{conns: []domain.Connection{{
			IntegrationID: domain.IntegrationCalendar,
			UserID:        "user-1",
			Status:        domain.ConnectionActive,
			OAuth:         &domain.OAuthToken{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)},
		}}}
		setupTestServices(t, &Services{Connections: svc})

		out, err := execute(t, "connections", "list")

		require.NoError(t, err)
		assert.Contains(t, out, "(access token expired)")
	})

	t.Run("list error", func(t *testing.T) {
		setupTestServices(t, &Services{Connections: &mockConnectionService{err: errors.New("disk")}})
		_, err := execute(t, "connections", "list")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing connections")
	})
}

func TestConnectionsReset(t *testing.T) {
	t.Run("single integration", func(t *testing.T) {
		svc := &mockConnectionService{}
		setupTestServices(t, &Services{Connections: svc})

		out, err := execute(t, "connections", "reset", "notion")

		require.NoError(t, err)
		assert.Equal(t, []domain.IntegrationID{domain.IntegrationDatabase}, svc.reset)
		assert.Contains(t, out, "Connection notion reset.")
	})

	t.Run("all", func(t *testing.T) {
		svc := &mockConnectionService{}
		setupTestServices(t, &Services{Connections: svc})

		out, err := execute(t, "connections", "reset")

		require.NoError(t, err)
		assert.Equal(t, []domain.IntegrationID{""}, svc.reset)
		assert.Contains(t, out, "All connections reset.")
	})

	t.Run("too many args", func(t *testing.T) {
		setupTestServices(t, &Services{Connections: &mockConnectionService{}})
		_, err := execute(t, "connections", "reset", "a", "b")
		assert.Error(t, err)
	})
}
