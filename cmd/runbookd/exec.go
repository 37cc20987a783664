package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/runbookd/runbookd/internal/gate"
	"github.com/runbookd/runbookd/internal/runstore"
	"github.com/runbookd/runbookd/internal/stepexec"
)

// execCmd compiles a source file and executes it against a stub executor,
// retrying on gate.LockContention with exponential backoff+jitter instead
// of surfacing the first contention immediately — the same idiom the
// teacher's workflow engine uses for node retries, expressed here with
// the pack's own backoff library rather than hand-rolled jitter math.
func execCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "exec <file.dsl>",
		Short: "Compile a runbook source file and execute it, retrying lock contention",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := compileFile(args[0], sessionID)
			if err != nil {
				return err
			}

			store := runstore.New()
			store.Put(context.Background(), rb)

			var result *gate.Result
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 10 * time.Second

			retryErr := backoff.Retry(func() error {
				res, execErr := gate.ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
				if execErr == nil {
					result = res
					return nil
				}
				if ge, ok := execErr.(*gate.ExecutionError); ok && ge.Kind == gate.LockContention {
					return execErr
				}
				return backoff.Permanent(execErr)
			}, b)
			if retryErr != nil {
				return fmt.Errorf("execute: %w", retryErr)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "cli", "session id recorded in the compiled runbook")
	return cmd
}
