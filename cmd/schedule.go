package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/dayplan/internal/ai"
	"github.com/teemow/dayplan/internal/store"
)

func newScheduleCmd() *cobra.Command {
	var (
		date         string
		instructions string
		slotMinutes  int
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "schedule <user>",
		Short: "Generate a daily schedule for a user",
		Long: `Build a schedule prompt from the user's prioritized tasks and
upcoming meetings and send it to the configured AI backend. Requires
OPENAI_API_KEY or XAI_API_KEY to be set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogging(cmd)

			application, err := newApp(cmd, nil, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			day := time.Now()
			if date != "" {
				day, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			userID := args[0]
			tasks, err := application.store.Tasks.ListActiveByList(ctx, userID, store.ListPrioritized)
			if err != nil {
				return err
			}
			meetings, err := application.aggregator.ListUserMeetings(ctx, userID)
			if err != nil {
				return err
			}

			prompt := ai.BuildSchedulePrompt(day, tasks, meetings, ai.PromptOptions{
				CustomInstructions: instructions,
				SlotMinutes:        slotMinutes,
			})
			text, err := application.aiManager.GenerateText(ctx, prompt)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Day to plan (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Extra instructions for the planner")
	cmd.Flags().IntVar(&slotMinutes, "slot-minutes", 0, "Length of a schedule slot in minutes")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute,
		"Overall timeout for schedule generation")

	return cmd
}
