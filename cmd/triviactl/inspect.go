package main

import (
	"fmt"
	"io"
	"strings"

	"trivia-lab/internal"
	"trivia-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Dump the session store as a table",
	Long: `Open a Badger session store read-only and print every record under a
key prefix. With --serve the same view is served as an HTML page instead.

Examples:
  triviactl inspect --db ./data/badger --prefix session:
  triviactl inspect --db ./data/badger --prefix participant:abc123:
  triviactl inspect --db ./data/badger --serve :8090`,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("db", "./data/badger", "Path to badger DB")
	inspectCmd.Flags().String("prefix", "session:", "Prefix to scan")
	inspectCmd.Flags().String("serve", "", "Serve the inspect page on this address instead of printing")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("db")
	prefix, _ := cmd.Flags().GetString("prefix")
	serve, _ := cmd.Flags().GetString("serve")

	db, err := openDB(path)
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	if serve != "" {
		server := internal.NewDebugServer(db, serve, func() map[string]any {
			return map[string]any{"Status": "Viewer Mode (Read-Only)", "Store": path}
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Viewer started at http://%s/inspect?prefix=%s\n", serve, prefix)
		return server.ListenAndServe()
	}
	return renderTable(cmd.OutOrStdout(), db, prefix)
}

func renderTable(out io.Writer, db *badger.DB, prefix string) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Entity ID", "Scope", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err := repositories.Dump(db, prefix, func(record repositories.Record) error {
		row := internal.ToInspectRow(record)
		table.Append([]string{row.Key, row.Kind, row.Timestamp, row.EntityID, row.Scope, row.Detail})
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A store left dirty by a crash must be opened for write once to truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repaired, repairErr := badger.Open(badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true))
			if repairErr != nil {
				return nil, fmt.Errorf("repair failed: %w", repairErr)
			}
			_ = repaired.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
