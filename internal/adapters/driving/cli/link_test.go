package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

func TestLinkCmd_Use(t *testing.T) {
	assert.Equal(t, "link", linkCmd.Use)
}

func TestLinkCmd_NotConfigured(t *testing.T) {
	setupTestServices(t, &Services{})

	_, err := execute(t, "link")

	assert.Error(t, err)
}

func TestLinkCmd_PrintsLinked(t *testing.T) {
	pipeline := &mockPipeline{conns: []domain.Connection{
		{IntegrationID: domain.IntegrationFiles, Status: domain.ConnectionActive},
		{IntegrationID: domain.IntegrationDatabase, Status: domain.ConnectionActive},
	}}
	setupTestServices(t, &Services{Pipeline: pipeline})

	out, err := execute(t, "link")

	require.NoError(t, err)
	assert.Contains(t, out, "linked Google Drive")
	assert.Contains(t, out, "linked Notion")
}

func TestLinkCmd_ReturnsLinkError(t *testing.T) {
	pipeline := &mockPipeline{
		conns: []domain.Connection{{IntegrationID: domain.IntegrationFiles, Status: domain.ConnectionActive}},
		err:   domain.ErrAuthorizationTimeout,
	}
	setupTestServices(t, &Services{Pipeline: pipeline})

	out, err := execute(t, "link")

	assert.ErrorIs(t, err, domain.ErrAuthorizationTimeout)
	assert.Contains(t, out, "linked Google Drive")
}
