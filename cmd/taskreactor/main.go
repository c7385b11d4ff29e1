// Command taskreactor runs the ReAct task-execution engine from the command
// line: start a mission, resume a suspended session with an answer or an
// approval decision, or inspect a session's durable state.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
