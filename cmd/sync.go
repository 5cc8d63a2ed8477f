package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync <user>",
		Short: "Sync all accounts of a user once",
		Long: `Fetch tasks from every connected account of the given user and
reconcile them into the local database. The per-account outcomes are
printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(cmd)

			application, err := newApp(cmd, nil, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			outcomes, err := application.orchestrator.SyncUser(ctx, args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(outcomes)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute,
		"Overall timeout for the sync run")

	return cmd
}
