package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborview/claims-triage/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export claims and adjuster workloads to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := export.New(st).WriteWorkbook(ctx, exportOut); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "claims.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
