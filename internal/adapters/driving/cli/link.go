package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link the file store, database and calendar accounts",
	Long: `Links every integration for the local user, prompting for consent where an
integration is not yet connected. Connections are cached, so later runs
skip consent.`,
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, _ []string) error {
	if coursePipeline == nil {
		return errors.New("pipeline not configured")
	}

	conns, err := coursePipeline.LinkAccounts(cmd.Context())
	st := newStyles(cmd.OutOrStdout())
	for _, c := range conns {
		cmd.Printf("%s %s\n", st.success.Render("linked"), c.IntegrationID.DisplayName())
	}
	return err
}
