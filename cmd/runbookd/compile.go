package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runbookd/runbookd/internal/compiler"
	"github.com/runbookd/runbookd/internal/dsl"
	"github.com/runbookd/runbookd/internal/registry"
	"github.com/runbookd/runbookd/internal/runbook"
	"github.com/runbookd/runbookd/internal/validator"
)

// identityResolver resolves every ref to its literal display text, for
// compiling source files offline against a registry with no live search
// index behind it.
type identityResolver struct{}

func (identityResolver) ResolveRef(_ string, query string) (string, []string, bool) {
	return query, nil, true
}

func compileCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "compile <file.dsl>",
		Short: "Parse, validate, and compile a runbook source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rb, err := compileFile(args[0], sessionID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rb, "", "  ")
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

func compileFile(path, sessionID string) (*runbook.CompiledRunbook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ast, err := dsl.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	reg := registry.Default()
	vctx := validator.ValidationContext{Resolver: identityResolver{}}
	validated, report := validator.Validate(ast, reg, vctx)
	if report.HasErrors() {
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "validation error (call %d): %s\n", e.CallIndex, e.Message)
		}
		return nil, fmt.Errorf("%d validation error(s) in %s", len(report.Errors), path)
	}

	rb := compiler.Compile(validated, reg, compiler.ExpansionContext{SessionID: sessionID}, string(src))
	return rb, nil
}
