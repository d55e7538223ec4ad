package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "triviactl",
	Short: "Operate and exercise a trivia-lab server",
	Long: `triviactl inspects the session store of a trivia-lab server and drives
a live server through a full lobby: accounts, joins, renames and the start.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(inspectCmd, simulateCmd)
}
