//nolint:noctx // Test file uses http.Get for convenience; context not required in tests
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, state string) *CallbackServer {
	t.Helper()
	server := NewCallbackServer(0, state)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func get(t *testing.T, server *CallbackServer, query string) string {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?%s", server.Port(), query))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func wait(t *testing.T, server *CallbackServer) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.WaitForCode(ctx)
}

func TestNewCallbackServer(t *testing.T) {
	server := NewCallbackServer(8080, "test-state-123")

	require.NotNil(t, server)
	assert.Equal(t, 8080, server.Port())
	assert.Equal(t, "http://localhost:8080/callback", server.RedirectURI())
	assert.Nil(t, server.server)
}

func TestCallbackServer_Start_PicksPort(t *testing.T) {
	server := startServer(t, "state")
	assert.NotZero(t, server.Port())
}

func TestCallbackServer_Start_PortInUse(t *testing.T) {
	first := startServer(t, "state")

	second := NewCallbackServer(first.Port(), "state")
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestCallbackServer_Stop_NotStarted(t *testing.T) {
	assert.NoError(t, NewCallbackServer(0, "state").Stop())
}

func TestCallbackServer_Success(t *testing.T) {
	server := startServer(t, "state-abc")

	body := get(t, server, "code=auth-code-xyz&state=state-abc")
	assert.Contains(t, body, "Authorization successful")

	code, err := wait(t, server)
	require.NoError(t, err)
	assert.Equal(t, "auth-code-xyz", code)
}

func TestCallbackServer_Failures(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"state mismatch", "code=c&state=wrong", "state mismatch"},
		{"empty state", "code=c&state=", "state mismatch"},
		{"missing code", "state=expected", "no authorization code received"},
		{"provider error", "error=access_denied&error_description=" + url.QueryEscape("User denied access"), "User denied access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, "expected")

			body := get(t, server, tt.query)
			assert.Contains(t, body, "Authorization failed")

			_, err := wait(t, server)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCallbackServer_ProviderErrorType(t *testing.T) {
	server := startServer(t, "expected")
	get(t, server, "error=access_denied")

	_, err := wait(t, server)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "access_denied", perr.Code)
	assert.Equal(t, "oauth error: access_denied", perr.Error())
}

func TestCallbackServer_EscapesDescription(t *testing.T) {
	server := startServer(t, "expected")
	body := get(t, server, "error=x&error_description="+url.QueryEscape("<script>"))
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestCallbackServer_WaitForCode_ContextDone(t *testing.T) {
	server := NewCallbackServer(0, "state")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	code, err := server.WaitForCode(ctx)
	assert.Empty(t, code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackServer_OnlyFirstCodeKept(t *testing.T) {
	server := startServer(t, "s")
	get(t, server, "code=first&state=s")
	get(t, server, "code=second&state=s")

	code, err := wait(t, server)
	require.NoError(t, err)
	assert.Equal(t, "first", code)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = server.WaitForCode(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFindAvailablePort(t *testing.T) {
	port, err := FindAvailablePort(18080, 18180)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, port, 18080)
	assert.LessOrEqual(t, port, 18180)
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	require.NoError(t, err)
	b, err := GenerateState()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
