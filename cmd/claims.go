package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Inspect and manage triaged claims",
	Long:  "Commands for listing, viewing, and updating claims in the store.",
}

// -- claims list --

var claimsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims",
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

		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		claims, err := st.ListClaims(ctx, store.ClaimFilter{
			Status: model.ClaimStatus(status),
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "claims list")
		}

		if len(claims) == 0 {
			fmt.Fprintln(os.Stderr, "No claims found.")
			return nil
		}

		formatClaimsList(os.Stdout, claims)
		return nil
	},
}

// -- claims show --

var claimsShowCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show full details of a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		claim, err := st.GetClaim(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "claims show")
		}
		if claim == nil {
			return eris.Errorf("claim %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(claim)
	},
}

// -- claims queue --

var claimsQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List the unassigned triage queue",
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

		claims, err := st.ListQueue(ctx)
		if err != nil {
			return eris.Wrap(err, "claims queue")
		}

		if len(claims) == 0 {
			fmt.Fprintln(os.Stderr, "Queue is empty.")
			return nil
		}

		formatClaimsList(os.Stdout, claims)
		return nil
	},
}

// -- claims flagged --

var claimsFlaggedCmd = &cobra.Command{
	Use:   "flagged",
	Short: "List claims with fraud flags",
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

		claims, err := st.ListFlagged(ctx)
		if err != nil {
			return eris.Wrap(err, "claims flagged")
		}

		if len(claims) == 0 {
			fmt.Fprintln(os.Stderr, "No flagged claims.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSEVERITY\tFLAGS")
		_, _ = fmt.Fprintln(w, "--\t------\t--------\t-----")
		for i := range claims {
			cl := &claims[i]
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.0f\t", cl.ClaimID, cl.Status, cl.Severity())
			for j, fl := range cl.FraudFlags {
				if j > 0 {
					_, _ = fmt.Fprint(w, ", ")
				}
				_, _ = fmt.Fprintf(w, "%s (%s)", fl.Type, fl.Severity)
			}
			_, _ = fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

// -- claims status --

var claimsStatusCmd = &cobra.Command{
	Use:   "status <claim-id> <status>",
	Short: "Update a claim's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.ClaimStatus(args[1])
		if !patchableStatuses[status] {
			return eris.Errorf("invalid status %q", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		claim, err := st.GetClaim(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "claims status")
		}
		if claim == nil {
			return eris.Errorf("claim %s not found", args[0])
		}

		if err := st.UpdateClaimStatus(ctx, args[0], status); err != nil {
			return eris.Wrap(err, "claims status")
		}

		fmt.Printf("%s -> %s\n", args[0], status)
		return nil
	},
}

func init() {
	claimsListCmd.Flags().String("status", "", "filter by claim status (routing, assigned, in_progress, review, ...)")
	claimsListCmd.Flags().String("source", "", "filter by intake source (upload, ftp)")
	claimsListCmd.Flags().Int("limit", 50, "max number of claims to display")

	claimsCmd.AddCommand(claimsListCmd)
	claimsCmd.AddCommand(claimsShowCmd)
	claimsCmd.AddCommand(claimsQueueCmd)
	claimsCmd.AddCommand(claimsFlaggedCmd)
	claimsCmd.AddCommand(claimsStatusCmd)
	rootCmd.AddCommand(claimsCmd)
}

// formatClaimsList writes a tabular list of claims to w.
func formatClaimsList(out io.Writer, claims []model.Claim) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tAMOUNT\tSEV\tCMPLX\tASSIGNED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t---\t-----\t--------\t-------")

	for i := range claims {
		cl := &claims[i]

		incidentType := ""
		amount := ""
		if cl.ExtractedData != nil {
			incidentType = string(cl.ExtractedData.IncidentType)
			if cl.ExtractedData.ClaimAmount != nil {
				amount = fmt.Sprintf("$%.0f", *cl.ExtractedData.ClaimAmount)
			}
		}

		assigned := ""
		if cl.RoutingDecision != nil && cl.RoutingDecision.AssignedTo != nil {
			assigned = *cl.RoutingDecision.AssignedTo
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.0f\t%s\t%s\n",
			cl.ClaimID,
			cl.Status,
			incidentType,
			amount,
			cl.Severity(),
			cl.Complexity(),
			assigned,
			cl.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
