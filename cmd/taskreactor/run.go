package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rudi77/taskreactor/event"
	"github.com/rudi77/taskreactor/scheduler"
)

func newRunCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run <mission>",
		Short: "Start a new mission under a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			eng, err := newScheduler(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			sink := &event.Collector{}
			outcome, err := eng.scheduler.Execute(ctx, sessionID, args[0], sink)
			if err != nil {
				return err
			}
			return printOutcome(sessionID, outcome, sink)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to run under (generated if omitted)")
	return cmd
}

func printOutcome(sessionID string, outcome scheduler.Outcome, sink *event.Collector) error {
	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"session_id": sessionID,
			"outcome":    outcome,
			"events":     sink.Events,
		})
	}

	fmt.Printf("session:  %s\n", sessionID)
	fmt.Printf("status:   %s\n", outcome.Status)
	if outcome.FinalMessage != "" {
		fmt.Printf("message:  %s\n", outcome.FinalMessage)
	}
	if outcome.FailureReason != "" {
		fmt.Printf("failure:  %s\n", outcome.FailureReason)
	}
	if pq := outcome.PendingQuestion; pq != nil {
		fmt.Printf("pending:  [%s] %s (tool=%s step=%d)\n", pq.Kind, pq.Prompt, pq.ToolName, pq.StepPos)
		switch pq.Kind {
		case "question":
			fmt.Printf("resume with: taskreactor resume %s \"<answer>\"\n", sessionID)
		case "approval":
			fmt.Printf("resume with: taskreactor approve %s yes|no\n", sessionID)
		}
	}
	for _, h := range outcome.ExecutionHistory {
		status := "ok"
		if !h.Success {
			status = "FAILED: " + h.Error
		}
		fmt.Printf("  step %d [%s] attempt %d -> %s\n", h.StepPosition, h.Tool, h.Attempt, status)
	}
	return nil
}
