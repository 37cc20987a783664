package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runbookd/runbookd/internal/searchindex"
)

// indexCmd groups offline search-index utilities. Against a running
// daemon, search goes through the /v1/search HTTP endpoint instead (the
// daemon exposes no refresh endpoint); these subcommands operate on a
// local records file, for
// validating a candidate document set before wiring it into a live feed.
func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Offline search-index utilities",
	}
	cmd.AddCommand(indexSearchCmd())
	return cmd
}

func indexSearchCmd() *cobra.Command {
	var mode string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <records.json> <entity-type> <query>",
		Short: "Load a records file into a throwaway index and run one query against it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recordsPath, entityType, query := args[0], args[1], args[2]

			data, err := os.ReadFile(recordsPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", recordsPath, err)
			}
			var records []searchindex.Record
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse %s: %w", recordsPath, err)
			}

			var idxMode searchindex.Mode
			switch mode {
			case "exact":
				idxMode = searchindex.ModeExactToken
			default:
				idxMode = searchindex.ModeSubstringFuzzy
			}

			idx := searchindex.New(entityType, idxMode, 3, 1)
			idx.Refresh(records)

			matches := idx.Search(query, limit)
			out, err := json.MarshalIndent(matches, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "substring", "matching mode: substring (default) or exact")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of matches to return")
	return cmd
}
