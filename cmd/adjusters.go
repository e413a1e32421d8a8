package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var adjustersCmd = &cobra.Command{
	Use:   "adjusters",
	Short: "Inspect the adjuster roster",
}

var adjustersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List adjusters and their workloads",
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

		availableOnly, _ := cmd.Flags().GetBool("available")
		adjusters, err := st.ListAdjusters(ctx, availableOnly)
		if err != nil {
			return eris.Wrap(err, "adjusters list")
		}

		if len(adjusters) == 0 {
			fmt.Fprintln(os.Stderr, "No adjusters found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tLEVEL\tSPECIALIZATIONS\tLOAD\tMAX $\tAVAILABLE")
		_, _ = fmt.Fprintln(w, "--\t----\t-----\t---------------\t----\t-----\t---------")
		for _, a := range adjusters {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%.0f\t%t\n",
				a.AdjusterID,
				a.Name,
				a.ExperienceLevel,
				strings.Join(a.Specializations, ","),
				a.CurrentWorkload,
				a.MaxConcurrentClaims,
				a.MaxClaimAmount,
				a.Available,
			)
		}
		return w.Flush()
	},
}

func init() {
	adjustersListCmd.Flags().Bool("available", false, "only show adjusters accepting claims")

	adjustersCmd.AddCommand(adjustersListCmd)
	rootCmd.AddCommand(adjustersCmd)
}
