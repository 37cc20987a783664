package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	pgDSN      string
	redisAddr  string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "runbookd",
		Short: "runbookd - DSL-driven runbook compiler and execution gate",
		Long:  "Compiles pack-constrained runbook sentences into a step DAG and executes it through a single advisory-locked gate.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (optional, flags override)")
	rootCmd.PersistentFlags().StringVar(&pgDSN, "pg-dsn", "", "Postgres DSN override")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address override")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		serveCmd(),
		compileCmd(),
		runCmd(),
		execCmd(),
		indexCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
