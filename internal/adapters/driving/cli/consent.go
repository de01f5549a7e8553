package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/custodia-labs/coursesync/internal/adapters/driving/oauth"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// ConsentPrompt prints consent URLs for the operator and opens them in a
// browser when running in a terminal.
type ConsentPrompt struct {
	out         io.Writer
	openBrowser func(string) error
	interactive bool
}

// NewConsentPrompt creates a prompt writing to out. The browser is only
// opened when both out and stdin are terminals.
func NewConsentPrompt(out io.Writer) *ConsentPrompt {
	return &ConsentPrompt{
		out:         out,
		openBrowser: oauth.OpenBrowser,
		interactive: isTerminal(out) && isTerminal(os.Stdin),
	}
}

// PresentConsent shows the consent URL for an integration.
func (p *ConsentPrompt) PresentConsent(_ context.Context, integration domain.Integration, url string) error {
	st := newStyles(p.out)
	fmt.Fprintf(p.out, "%s\n  %s\n",
		st.title.Render(fmt.Sprintf("Authorise %s:", integration.ID.DisplayName())),
		url)

	if !p.interactive {
		return nil
	}
	if err := p.openBrowser(url); err != nil {
		logger.Warn("could not open browser: %v", err)
		fmt.Fprintln(p.out, st.muted.Render("  Open the link above in your browser to continue."))
		return nil
	}
	fmt.Fprintln(p.out, st.muted.Render("  Opened in your browser. Waiting for consent..."))
	return nil
}
