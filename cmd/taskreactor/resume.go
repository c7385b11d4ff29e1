package main

import (
	"github.com/spf13/cobra"

	"github.com/rudi77/taskreactor/event"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id> <answer>",
		Short: "Answer a pending question and continue a suspended session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newScheduler(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			sessionID, answer := args[0], args[1]
			sink := &event.Collector{}
			outcome, err := eng.scheduler.ResumeWithAnswer(ctx, sessionID, answer, sink)
			if err != nil {
				return err
			}
			return printOutcome(sessionID, outcome, sink)
		},
	}
}
