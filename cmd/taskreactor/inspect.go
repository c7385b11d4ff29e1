package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rudi77/taskreactor/plan"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Print a session's durable session, state, and bound plan records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			eng, err := newScheduler(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			sess, err := eng.scheduler.Sessions.LoadSession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			state, err := eng.scheduler.States.Load(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			var p *plan.Plan
			if state.BoundPlanID != "" {
				p, err = eng.scheduler.Plans.Load(ctx, state.BoundPlanID)
				if err != nil {
					return fmt.Errorf("load plan: %w", err)
				}
			}

			if flagJSON {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"session": sess,
					"state":   state,
					"plan":    p,
				})
			}

			fmt.Printf("session: %s status=%s created=%s\n", sess.ID, sess.Status, sess.CreatedAt)
			fmt.Printf("state:   version=%d bound_plan=%s trust_mode=%v\n", state.Version, state.BoundPlanID, state.TrustMode)
			if p == nil {
				fmt.Println("plan:    none")
				return nil
			}
			fmt.Printf("plan:    %s mission=%q complete=%v\n", p.ID, p.Mission, p.Complete())
			for _, s := range p.Steps {
				fmt.Printf("  step %d [%s] %s\n", s.Position, s.Status, s.Description)
			}
			return nil
		},
	}
}
