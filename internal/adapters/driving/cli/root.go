// Package cli provides the coursesync command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services configured by the composition root.
var (
	connectionService driving.ConnectionService
	coursePipeline    driving.Pipeline
	lessonExtractor   driving.LessonExtractor
	artifactLocator   driving.ArtifactLocator
	downloadDir       string
)

// Global flags.
var (
	verboseFlag   bool
	configDirFlag string
	logFormatFlag string
)

// skipSetup marks commands that run without services.
const skipSetup = "skip-setup"

// Options are the global flag values handed to the setup function.
type Options struct {
	ConfigDir string
	Verbose   bool
	// LogFormat is set only when --log-format was given explicitly.
	LogFormat string
}

// Services are the driving ports the commands use.
type Services struct {
	Connections driving.ConnectionService
	Pipeline    driving.Pipeline
	Extractor   driving.LessonExtractor
	Locator     driving.ArtifactLocator
	DownloadDir string
	// Close releases resources held by the services. Optional.
	Close func() error
}

// SetupFunc builds services once flags are parsed.
type SetupFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	setup   SetupFunc
	closeFn func() error
)

var rootCmd = &cobra.Command{
	Use:   "coursesync",
	Short: "Turn a course syllabus into database rows and calendar events",
	Long: `coursesync links your file store, database and calendar accounts, downloads
the course syllabus, extracts one record per lesson and writes each lesson as
a database row and a calendar event.`,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "settings directory (default ~/.coursesync)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", logger.FormatConsole, "log format: console or json")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetSetup registers the function that wires services before a command runs.
func SetSetup(fn SetupFunc) {
	setup = fn
}

// SetServices installs services directly, bypassing setup.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	connectionService = s.Connections
	coursePipeline = s.Pipeline
	lessonExtractor = s.Extractor
	artifactLocator = s.Locator
	downloadDir = s.DownloadDir
	closeFn = s.Close
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeFn != nil {
		if cerr := closeFn(); cerr != nil {
			logger.Warn("closing services: %v", cerr)
		}
		closeFn = nil
	}
	return err
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag)
	if err := logger.SetFormat(logFormatFlag); err != nil {
		return err
	}

	if setup == nil || cmd.Annotations[skipSetup] == "true" {
		return nil
	}
	opts := Options{ConfigDir: configDirFlag, Verbose: verboseFlag}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		opts.LogFormat = logFormatFlag
	}
	services, err := setup(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if services == nil {
		return errors.New("setup returned no services")
	}
	SetServices(services)
	return nil
}
