package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/harborview/claims-triage/internal/db"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed <roster.yaml>",
	Short: "Seed the adjuster roster from a YAML file",
	Long:  "Loads adjusters from a YAML roster into the store. Existing adjusters are updated in place; their current workload is preserved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		adjusters, err := loadRoster(args[0])
		if err != nil {
			return err
		}
		if len(adjusters) == 0 {
			return eris.Errorf("no adjusters in %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := seedAdjusters(ctx, st, adjusters)
		if err != nil {
			return err
		}

		fmt.Printf("Seeded %d adjuster(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// rosterFile is the YAML layout of a seed file.
type rosterFile struct {
	Adjusters []model.Adjuster `yaml:"adjusters"`
}

func loadRoster(path string) ([]model.Adjuster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read roster %s", path)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, eris.Wrapf(err, "parse roster %s", path)
	}

	for i := range roster.Adjusters {
		a := &roster.Adjusters[i]
		if a.AdjusterID == "" || a.Name == "" {
			return nil, eris.Errorf("roster entry %d: adjuster_id and name are required", i)
		}
		if a.MaxConcurrentClaims == 0 {
			a.MaxConcurrentClaims = 10
		}
	}
	return roster.Adjusters, nil
}

// seedAdjusters writes the roster. Postgres loads the whole file in one
// bulk upsert; SQLite falls back to per-row saves.
func seedAdjusters(ctx context.Context, st store.Store, adjusters []model.Adjuster) (int, error) {
	if ps, ok := st.(*store.PostgresStore); ok {
		n, err := bulkSeed(ctx, ps, adjusters)
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}

	for i := range adjusters {
		if err := st.SaveAdjuster(ctx, &adjusters[i]); err != nil {
			return 0, eris.Wrapf(err, "seed adjuster %s", adjusters[i].AdjusterID)
		}
	}
	return len(adjusters), nil
}

func bulkSeed(ctx context.Context, ps *store.PostgresStore, adjusters []model.Adjuster) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(adjusters))
	for i := range adjusters {
		a := &adjusters[i]
		specsJSON, err := json.Marshal(a.Specializations)
		if err != nil {
			return 0, eris.Wrapf(err, "seed: marshal specializations for %s", a.AdjusterID)
		}
		territoriesJSON, err := json.Marshal(a.Territories)
		if err != nil {
			return 0, eris.Wrapf(err, "seed: marshal territories for %s", a.AdjusterID)
		}
		rows = append(rows, []any{
			a.AdjusterID, a.Name, a.Email, a.Phone,
			specsJSON, string(a.ExperienceLevel), a.YearsExperience,
			a.MaxClaimAmount, a.MaxConcurrentClaims, a.CurrentWorkload,
			territoriesJSON, a.Available, now, now,
		})
	}

	n, err := db.BulkUpsert(ctx, ps.Pool(), db.UpsertConfig{
		Table: "adjusters",
		Columns: []string{
			"adjuster_id", "name", "email", "phone",
			"specializations", "experience_level", "years_experience",
			"max_claim_amount", "max_concurrent_claims", "current_workload",
			"territories", "available", "created_at", "updated_at",
		},
		ConflictKeys: []string{"adjuster_id"},
		// Re-seeding must not clobber live workload counters.
		UpdateCols: []string{
			"name", "email", "phone", "specializations", "experience_level",
			"years_experience", "max_claim_amount", "max_concurrent_claims",
			"territories", "available", "updated_at",
		},
	}, rows)
	if err != nil {
		return 0, err
	}

	zap.L().Info("roster seeded", zap.Int64("adjusters", n))
	return n, nil
}
