package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the dayplan application
var rootCmd = &cobra.Command{
	Use:   "dayplan",
	Short: "Aggregates tasks and meetings into a daily plan",
	Long: `dayplan keeps a local mirror of your tasks and meetings across
providers (Todoist, Google, Microsoft) and turns them into a daily
schedule.

It can run as:
  - An HTTP API server (serve)
  - A one-shot sync for a single user (sync)
  - A one-shot schedule generator (schedule)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dayplan version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dayplan version %s\n", version)
		},
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("db", defaultDBPath(), "Path to the SQLite database file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newVersionCmd())
}
