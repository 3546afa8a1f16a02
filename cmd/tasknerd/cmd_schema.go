package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tasknerd/cmd/tasknerd/ui"
)

var schemaJSON bool

// schemaCmd prints the store tables
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the store's tables and columns",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "Print as JSON")
}

func runSchema(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateOffline(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tables, err := st.DescribeSchema(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if schemaJSON {
		return printJSON(out, tables)
	}
	styles := ui.DefaultStyles()
	for _, tbl := range tables {
		t := ui.NewSimpleTable(tbl.Name, "Column", "Type", "Null", "Key")
		for _, c := range tbl.Columns {
			null, key := "NOT NULL", ""
			if c.Nullable {
				null = "NULL"
			}
			if c.PrimaryKey {
				key = "PK"
			}
			t.AddRow(c.Name, c.Type, null, key)
		}
		fmt.Fprintln(out, t.View(styles))
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
