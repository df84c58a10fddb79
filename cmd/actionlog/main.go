package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const appName = "actionlog"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Record the focused window with a screenshot every few seconds",
	Long: `actionlog records which application has focus on an X11 desktop.

Every poll interval it saves a screenshot of the focused window below
$PERSONAL_LOGS/<day>/<hour>/ and adds a row to the daily HTML report
$PERSONAL_LOGS/<day>/report_<day>.html.

Run without a command to record in the foreground until interrupted.

Environment Variables:
  PERSONAL_LOGS                    Output root (default: working directory)
  ACTIONLOG_CONFIG                 YAML config file
  ACTIONLOG_TRACKER_POLL_INTERVAL  Sleep between passes (default: 10s)
  ACTIONLOG_TRACKER_ALIGNMENT      Bucket width (default: 10s)
  ACTIONLOG_REPORT_TEMPLATE_DIR    Report template directory (default: templates)
  ACTIONLOG_INDEX_ENABLED          Keep the SQLite capture index (default: true)
  ACTIONLOG_DAEMON_PID_FILE        PID file path`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecorder()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", appName, version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(onceCmd, statusCmd, stopCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
