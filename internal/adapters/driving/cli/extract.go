package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract lessons from a local document",
	Long: `Extracts lesson records from a local PDF or text file without touching any
integration. Useful for checking how a syllabus will be split.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	if lessonExtractor == nil {
		return errors.New("lesson extractor not configured")
	}

	records, err := lessonExtractor.ExtractFile(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extracting %s: %w", args[0], err)
	}

	if extractJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		cmd.Println("No lessons found.")
		return nil
	}
	st := newStyles(cmd.OutOrStdout())
	for _, r := range records {
		cmd.Printf("%s %s\n", st.title.Render(fmt.Sprintf("%2d.", r.Sequence+1)), r.Name)
		if r.Description != "" {
			cmd.Printf("    %s\n", st.muted.Render(r.Description))
		}
	}
	return nil
}
