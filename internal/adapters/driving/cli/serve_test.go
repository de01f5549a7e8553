package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Use(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.Equal(t, "Start the MCP server", serveCmd.Short)
}

func TestServeCmd_PortFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestServeCmd_NotConfigured(t *testing.T) {
	setupTestServices(t, &Services{})

	_, err := execute(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline not configured")
}

func TestServeCmd_MissingExtractor(t *testing.T) {
	setupTestServices(t, &Services{Pipeline: &mockPipeline{}})

	_, err := execute(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lesson extractor is required")
}
