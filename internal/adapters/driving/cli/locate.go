package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

var (
	locateExt     string
	locatePayload string
)

var locateCmd = &cobra.Command{
	Use:   "locate [directory]",
	Short: "Show which downloaded file the pipeline would use",
	Long: `Runs artifact discovery against a download directory and an optional fetch
payload, printing the file found and the strategy that found it.

Examples:
  coursesync locate ./downloads
  coursesync locate --payload '{"data":{"file_path":"/tmp/syllabus.pdf"}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLocate,
}

func init() {
	locateCmd.Flags().StringVar(&locateExt, "ext", ".pdf", "file extension to look for")
	locateCmd.Flags().StringVar(&locatePayload, "payload", "", "fetch result payload as JSON")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	if artifactLocator == nil {
		return errors.New("artifact locator not configured")
	}

	dir := downloadDir
	if len(args) > 0 {
		dir = args[0]
	}

	payload := domain.Null()
	if locatePayload != "" {
		v, err := domain.ParseJSON([]byte(locatePayload))
		if err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		payload = v
	}

	handle, err := artifactLocator.Locate(cmd.Context(), locateExt, dir, payload)
	if err != nil {
		return err
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("%s\n", handle.Path)
	cmd.Printf("  %s\n", st.muted.Render(fmt.Sprintf("strategy=%s verified=%t", handle.Strategy, handle.Verified)))
	return nil
}
