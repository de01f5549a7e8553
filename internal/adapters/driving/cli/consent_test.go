package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

func TestConsentPrompt_NonInteractive(t *testing.T) {
	buf := new(bytes.Buffer)
	p := NewConsentPrompt(buf)
	opened := false
	p.openBrowser = func(string) error { opened = true; return nil }

	err := p.PresentConsent(context.Background(), domain.Integration{ID: domain.IntegrationCalendar}, "https://consent.example.com/cal")

	require.NoError(t, err)
	assert.False(t, opened, "browser is only opened on a terminal")
	assert.Contains(t, buf.String(), "Authorise Google Calendar:")
	assert.Contains(t, buf.String(), "https://consent.example.com/cal")
}

func TestConsentPrompt_Interactive(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		want    string
	}{
		{"opens browser", nil, "Opened in your browser"},
		{"browser failure falls back to link", errors.New("no xdg-open"), "Open the link above"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			var openedURL string
			p := &ConsentPrompt{
				out:         buf,
				interactive: true,
				openBrowser: func(u string) error { openedURL = u; return tt.openErr },
			}

			err := p.PresentConsent(context.Background(), domain.Integration{ID: domain.IntegrationDatabase}, "https://consent.example.com/n")

			require.NoError(t, err)
			assert.Equal(t, "https://consent.example.com/n", openedURL)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}
