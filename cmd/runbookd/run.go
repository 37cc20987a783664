package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runbookd/runbookd/internal/gate"
	"github.com/runbookd/runbookd/internal/runstore"
	"github.com/runbookd/runbookd/internal/stepexec"
)

// runCmd compiles a source file and immediately drives it through the gate
// with a no-op executor, for local smoke-testing a runbook's step DAG and
// write-set ordering without a running daemon or real backends wired in.
func runCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run <file.dsl>",
		Short: "Compile a runbook source file and execute it against a stub executor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := compileFile(args[0], sessionID)
			if err != nil {
				return err
			}

			store := runstore.New()
			store.Put(context.Background(), rb)

			result, err := gate.ExecuteRunbook(context.Background(), store, rb.ID, nil, stepexec.SuccessExecutor{}, nil, nil)
			if err != nil {
				return fmt.Errorf("execute: %w", err)
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
