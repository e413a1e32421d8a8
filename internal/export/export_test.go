package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedFixtures(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	amount := 12500.0
	severity := 35.0
	complexity := 20.0
	assignedTo := "Sarah Chen"
	adjusterID := "ADJ-001"
	require.NoError(t, st.SaveClaim(ctx, &model.Claim{
		ClaimID:        "CLM-20260101-120000-AAAA",
		SourceFilename: "claim_001",
		Source:         "upload",
		Status:         model.StatusInProgress,
		ExtractedData: &model.ExtractedData{
			ClaimAmount:  &amount,
			IncidentType: model.IncidentAuto,
		},
		SeverityScore:   &severity,
		ComplexityScore: &complexity,
		FraudFlags: []model.FraudFlag{
			{Type: "late_reporting", Confidence: 0.6, Severity: model.FlagMedium},
		},
		RoutingDecision: &model.RoutingDecision{
			AssignedTo: &assignedTo,
			AdjusterID: &adjusterID,
			Priority:   model.PriorityHigh,
		},
	}))
	require.NoError(t, st.SaveClaim(ctx, &model.Claim{
		ClaimID:        "CLM-20260101-130000-BBBB",
		SourceFilename: "claim_002",
		Source:         "ftp",
		Status:         model.StatusRouting,
	}))

	require.NoError(t, st.SaveAdjuster(ctx, &model.Adjuster{
		AdjusterID:          "ADJ-001",
		Name:                "Sarah Chen",
		ExperienceLevel:     model.ExperienceSenior,
		Specializations:     []string{"auto", "injury"},
		MaxClaimAmount:      250000,
		MaxConcurrentClaims: 10,
		CurrentWorkload:     4,
		Available:           true,
	}))
}

func openSheet(t *testing.T, path, name string) *xlsx.Sheet {
	t.Helper()
	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[name]
	require.True(t, ok, "missing sheet %q", name)
	return sheet
}

func cellStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func TestWriteWorkbook_Sheets(t *testing.T) {
	st := newTestStore(t)
	seedFixtures(t, st)

	path := filepath.Join(t.TempDir(), "claims.xlsx")
	require.NoError(t, New(st).WriteWorkbook(context.Background(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "Summary", f.Sheets[0].Name)
	assert.Equal(t, "Claims", f.Sheets[1].Name)
	assert.Equal(t, "Adjusters", f.Sheets[2].Name)
}

func TestWriteWorkbook_ClaimRows(t *testing.T) {
	st := newTestStore(t)
	seedFixtures(t, st)

	path := filepath.Join(t.TempDir(), "claims.xlsx")
	require.NoError(t, New(st).WriteWorkbook(context.Background(), path))

	sheet := openSheet(t, path, "Claims")
	require.Len(t, sheet.Rows, 3)

	header := cellStrings(sheet.Rows[0])
	assert.Equal(t, "Claim ID", header[0])
	assert.Equal(t, "Fraud Flags", header[9])

	var assigned []string
	for _, row := range sheet.Rows[1:] {
		cells := cellStrings(row)
		if cells[0] == "CLM-20260101-120000-AAAA" {
			assigned = cells
		}
	}
	require.NotNil(t, assigned)
	assert.Equal(t, "in_progress", assigned[1])
	assert.Equal(t, "auto", assigned[3])
	assert.Equal(t, "12500.00", assigned[4])
	assert.Equal(t, "35", assigned[5])
	assert.Equal(t, "Sarah Chen", assigned[7])
	assert.Equal(t, "high", assigned[8])
	assert.Equal(t, "late_reporting", assigned[9])
}

func TestWriteWorkbook_AdjusterRows(t *testing.T) {
	st := newTestStore(t)
	seedFixtures(t, st)

	path := filepath.Join(t.TempDir(), "claims.xlsx")
	require.NoError(t, New(st).WriteWorkbook(context.Background(), path))

	sheet := openSheet(t, path, "Adjusters")
	require.Len(t, sheet.Rows, 2)

	cells := cellStrings(sheet.Rows[1])
	assert.Equal(t, "ADJ-001", cells[0])
	assert.Equal(t, "Sarah Chen", cells[1])
	assert.Equal(t, "senior", cells[2])
	assert.Equal(t, "auto, injury", cells[3])
	assert.Equal(t, "4", cells[4])
	assert.Equal(t, "10", cells[5])
	assert.Equal(t, "40%", cells[6])
	assert.Equal(t, "true", cells[8])
}

func TestWriteWorkbook_EmptyStore(t *testing.T) {
	st := newTestStore(t)

	path := filepath.Join(t.TempDir(), "claims.xlsx")
	require.NoError(t, New(st).WriteWorkbook(context.Background(), path))

	claims := openSheet(t, path, "Claims")
	assert.Len(t, claims.Rows, 1, "header only")
}
