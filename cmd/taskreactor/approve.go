package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rudi77/taskreactor/event"
)

func newApproveCmd() *cobra.Command {
	var remember bool

	cmd := &cobra.Command{
		Use:   "approve <session-id> <yes|no>",
		Short: "Record a human approval decision for a suspended session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			approved, err := parseApproval(args[1])
			if err != nil {
				return err
			}

			eng, err := newScheduler(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			sink := &event.Collector{}
			outcome, err := eng.scheduler.ResumeWithApproval(ctx, sessionID, approved, remember, sink)
			if err != nil {
				return err
			}
			return printOutcome(sessionID, outcome, sink)
		},
	}
	cmd.Flags().BoolVar(&remember, "remember", false, "cache this decision for future calls to the same tool")
	return cmd
}

func parseApproval(s string) (bool, error) {
	switch s {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid approval value %q, want yes or no", s)
	}
}
