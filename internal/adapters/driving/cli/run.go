package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full course pipeline",
	Long: `Links every integration, downloads the syllabus, extracts the lessons and
writes one database row and one calendar event per lesson.

The command exits non-zero unless every stage completes and every lesson
was written.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if coursePipeline == nil {
		return errors.New("pipeline not configured")
	}

	report, err := coursePipeline.Run(cmd.Context())
	printReport(cmd.OutOrStdout(), report)
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("pipeline ended in state %s", report.State)
	}
	return nil
}

// printReport writes a run summary.
func printReport(w io.Writer, r *domain.RunReport) {
	if r == nil {
		return
	}
	st := newStyles(w)

	status := st.success.Render("done")
	if !r.OK() {
		status = st.failure.Render(fmt.Sprintf("failed at %s", r.FailedStage))
	}
	fmt.Fprintf(w, "%s %s\n", st.title.Render("Course pipeline:"), status)

	if r.UserID != "" {
		fmt.Fprintf(w, "  User:      %s\n", r.UserID)
	}
	for _, c := range r.Connections {
		fmt.Fprintf(w, "  Linked:    %s (%s)\n", c.IntegrationID.DisplayName(), c.Status)
	}
	if r.Artifact != nil {
		fmt.Fprintf(w, "  Document:  %s %s\n", r.Artifact.Path, st.muted.Render("via "+r.Artifact.Strategy))
	}
	if len(r.Records) > 0 {
		fmt.Fprintf(w, "  Lessons:   %d\n", len(r.Records))
	}
	if r.Succeeded > 0 || r.Failed > 0 {
		written := st.success.Render(fmt.Sprintf("%d written", r.Succeeded))
		if r.Failed > 0 {
			written += ", " + st.warning.Render(fmt.Sprintf("%d failed", r.Failed))
		}
		fmt.Fprintf(w, "  Records:   %s\n", written)
	}
	for _, we := range r.WriteErrors {
		fmt.Fprintf(w, "    - %s\n", we.Error())
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  %s %v\n", st.failure.Render("Error:"), r.Err)
	}
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(w, "  %s\n", st.muted.Render("Took "+d.Round(time.Millisecond).String()))
	}
}
