package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage cached connections",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached connections",
	RunE:  runConnectionsList,
}

var connectionsResetCmd = &cobra.Command{
	Use:   "reset [integration]",
	Short: "Forget cached connections",
	Long: `Forgets the cached connection for an integration, or every connection when
no integration is given. The next run links the integration again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnectionsReset,
}

func init() {
	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsResetCmd)
	rootCmd.AddCommand(connectionsCmd)
}

func runConnectionsList(cmd *cobra.Command, _ []string) error {
	if connectionService == nil {
		return errors.New("connection service not configured")
	}

	conns, err := connectionService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing connections: %w", err)
	}
	if len(conns) == 0 {
		cmd.Println("No connections cached.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	for _, c := range conns {
		status := string(c.Status)
		switch c.Status {
		case domain.ConnectionActive:
			status = st.success.Render(status)
		case domain.ConnectionFailed:
			status = st.failure.Render(status)
		default:
			status = st.warning.Render(status)
		}
		note := ""
		if c.OAuth != nil && c.OAuth.IsExpired() {
			note = st.muted.Render(" (access token expired)")
		}
		cmd.Printf("%-18s %-10s %s%s\n", c.IntegrationID, status, c.UserID, note)
		if c.Status == domain.ConnectionPending && c.RedirectURL != "" {
			cmd.Printf("  %s\n", st.muted.Render(c.RedirectURL))
		}
	}
	return nil
}

func runConnectionsReset(cmd *cobra.Command, args []string) error {
	if connectionService == nil {
		return errors.New("connection service not configured")
	}

	var integration domain.IntegrationID
	if len(args) > 0 {
		integration = domain.IntegrationID(args[0])
	}
	if err := connectionService.Reset(cmd.Context(), integration); err != nil {
		return fmt.Errorf("resetting connections: %w", err)
	}

	if integration == "" {
		cmd.Println("All connections reset.")
	} else {
		cmd.Printf("Connection %s reset.\n", integration)
	}
	return nil
}
