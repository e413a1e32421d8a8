package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/events"
	"github.com/harborview/claims-triage/internal/extract"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/store"
	"github.com/harborview/claims-triage/internal/tasks"
)

// stubParser returns a fixed record regardless of input.
type stubParser struct {
	data *model.ExtractedData
}

func (s *stubParser) Parse(_ context.Context, _ string) *model.ExtractedData {
	return s.data
}

// stubTasks records task requests.
type stubTasks struct {
	reqs []tasks.TaskRequest
	err  error
}

func (s *stubTasks) CreateClaimTask(_ context.Context, req tasks.TaskRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	return "task-001", nil
}

// stubScheduler records scheduled claims.
type stubScheduler struct {
	scheduled map[string]float64
}

func (s *stubScheduler) Schedule(claimID string, amount float64) {
	if s.scheduled == nil {
		s.scheduled = map[string]float64{}
	}
	s.scheduled[claimID] = amount
}

type fixture struct {
	proc  *Processor
	store store.Store
	bus   *events.Bus
	tasks *stubTasks
	sched *stubScheduler
	dir   string
}

func newFixture(t *testing.T, data *model.ExtractedData) *fixture {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	taskStub := &stubTasks{}
	schedStub := &stubScheduler{}
	proc := New(st, bus, extract.NewLocal(), &stubParser{data: data}, taskStub, schedStub)

	return &fixture{
		proc:  proc,
		store: st,
		bus:   bus,
		tasks: taskStub,
		sched: schedStub,
		dir:   t.TempDir(),
	}
}

func (f *fixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) seedAdjuster(t *testing.T, adj model.Adjuster) {
	t.Helper()
	require.NoError(t, f.store.SaveAdjuster(context.Background(), &adj))
}

func strPtr(s string) *string { return &s }
func amtPtr(v float64) *float64 { return &v }

func datePtr(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

// autoClaim is a routine collision with one minor injury, which keeps
// it out of the auto-processing rules.
func autoClaim() *model.ExtractedData {
	return &model.ExtractedData{
		ClaimNumber:        strPtr("CLM-2025-001234"),
		PolicyNumber:       strPtr("POL-556677"),
		ClaimAmount:        amtPtr(4000),
		IncidentType:       model.IncidentAuto,
		IncidentDate:       datePtr("2025-06-01"),
		ReportDate:         datePtr("2025-06-03"),
		Parties: []model.Party{
			{Name: "Dana Reeve", Role: "claimant"},
			{Name: "Lee Marsh", Role: "third_party"},
		},
		Location:           &model.Location{City: "Tacoma", State: "WA"},
		Injuries:           []model.Injury{{Person: "Dana Reeve", Severity: "minor", Description: "bruising"}},
		Description:        "Rear-end collision at a stop light.",
		FaultDetermination: "clear",
	}
}

// glassClaim qualifies for auto-approval: no injuries, small amount,
// glass keywords.
func glassClaim() *model.ExtractedData {
	return &model.ExtractedData{
		ClaimNumber:        strPtr("AUTO-2025-400-GLASS"),
		PolicyNumber:       strPtr("POL-889900"),
		ClaimAmount:        amtPtr(400),
		IncidentType:       model.IncidentAuto,
		IncidentDate:       datePtr("2025-07-10"),
		ReportDate:         datePtr("2025-07-11"),
		Parties:            []model.Party{{Name: "Sam Okafor", Role: "insured"}},
		Location:           &model.Location{City: "Spokane", State: "WA"},
		Description:        "Cracked windshield glass from road debris.",
		FaultDetermination: "clear",
	}
}

func fieldAdjuster() model.Adjuster {
	return model.Adjuster{
		AdjusterID:          "ADJ-001",
		Name:                "Sarah Chen",
		ExperienceLevel:     model.ExperienceMid,
		YearsExperience:     6,
		Specializations:     []string{"auto"},
		MaxClaimAmount:      100000,
		MaxConcurrentClaims: 15,
		CurrentWorkload:     3,
		Available:           true,
	}
}

func TestProcessFile_RoutedClaim(t *testing.T) {
	f := newFixture(t, autoClaim())
	f.seedAdjuster(t, fieldAdjuster())
	path := f.writeFile(t, "accident-report.txt", "ACCIDENT REPORT\nRear-end collision at a stop light.")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, model.StatusInProgress, res.FinalStatus)
	assert.Equal(t, "Sarah Chen", res.Adjuster)
	assert.True(t, res.TaskCreated)

	claim, err := f.store.GetClaim(context.Background(), res.ClaimID)
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, model.StatusInProgress, claim.Status)
	assert.Equal(t, "accident-report", claim.SourceFilename)
	assert.Equal(t, "upload", claim.Source)
	assert.Equal(t, "task-001", claim.TaskID)
	require.NotNil(t, claim.SeverityScore)
	require.NotNil(t, claim.RoutingDecision)
	assert.Equal(t, "ADJ-001", *claim.RoutingDecision.AdjusterID)

	adj, err := f.store.GetAdjuster(context.Background(), "ADJ-001")
	require.NoError(t, err)
	assert.Equal(t, 4, adj.CurrentWorkload, "workload incremented")

	assert.Equal(t, claim.ExtractedData.Amount(), f.sched.scheduled[res.ClaimID])

	history, err := f.store.ListRoutingHistory(context.Background(), res.ClaimID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestProcessFile_AutoApproved(t *testing.T) {
	f := newFixture(t, glassClaim())
	path := f.writeFile(t, "glass-claim.txt", "GLASS CLAIM\nCracked windshield from road debris.")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, model.StatusInProgress, res.FinalStatus)
	assert.Equal(t, model.AutoSystemName, res.Adjuster)

	claim, err := f.store.GetClaim(context.Background(), res.ClaimID)
	require.NoError(t, err)
	require.NotNil(t, claim.RoutingDecision)
	assert.Equal(t, model.AutoSystemID, *claim.RoutingDecision.AdjusterID)
	assert.True(t, claim.RoutingDecision.AutoProcessed)
	require.NotNil(t, claim.RoutingDecision.EstimatedPayout)
	assert.Equal(t, 400.0, *claim.RoutingDecision.EstimatedPayout)

	// System actor carries no workload row; the claim is still scheduled
	// and mirrored to the board.
	assert.Contains(t, f.sched.scheduled, res.ClaimID)
	require.Len(t, f.tasks.reqs, 1)
	assert.True(t, f.tasks.reqs[0].AutoApproved)
}

func TestProcessFile_NoAdjusters(t *testing.T) {
	f := newFixture(t, autoClaim())
	path := f.writeFile(t, "orphan-claim.txt", "ACCIDENT REPORT\nNo one is available.")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, model.StatusRouting, res.FinalStatus)
	assert.Equal(t, "Unassigned", res.Adjuster)
	assert.False(t, res.TaskCreated)

	assert.Empty(t, f.sched.scheduled, "unassigned claims are not scheduled")
	assert.Empty(t, f.tasks.reqs)
}

func TestProcessFile_SkipsSystemFiles(t *testing.T) {
	f := newFixture(t, autoClaim())

	for _, name := range []string{".DS_Store", ".gitkeep", ".hidden-file"} {
		res, err := f.proc.ProcessFile(context.Background(), filepath.Join(f.dir, name), "upload")
		require.NoError(t, err)
		assert.Equal(t, "skipped", res.Status, name)
		assert.Equal(t, "system_file", res.Reason, name)
	}
}

func TestProcessFile_IdempotentOnActiveClaim(t *testing.T) {
	f := newFixture(t, autoClaim())
	path := f.writeFile(t, "duplicate.txt", "ACCIDENT REPORT")

	require.NoError(t, f.store.SaveClaim(context.Background(), &model.Claim{
		ClaimID:        "CLM-EXISTING",
		SourceFilename: "duplicate",
		Source:         "upload",
		Status:         model.StatusAssigned,
	}))

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "skipped", res.Status)
	assert.Equal(t, "already_assigned", res.Reason)
	assert.Equal(t, "CLM-EXISTING", res.ClaimID)
}

func TestProcessFile_ReprocessesErroredClaim(t *testing.T) {
	f := newFixture(t, autoClaim())
	f.seedAdjuster(t, fieldAdjuster())
	path := f.writeFile(t, "retryable.txt", "ACCIDENT REPORT\nSecond attempt.")

	require.NoError(t, f.store.SaveClaim(context.Background(), &model.Claim{
		ClaimID:        "CLM-FAILED",
		SourceFilename: "retryable",
		Source:         "upload",
		Status:         model.StatusError,
	}))

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.NotEqual(t, "CLM-FAILED", res.ClaimID)
}

func TestProcessFile_EmptyDocumentErrors(t *testing.T) {
	f := newFixture(t, autoClaim())
	path := f.writeFile(t, "empty.txt", "   \n")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.Error(t, err)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, model.StatusError, res.FinalStatus)

	claim, getErr := f.store.GetClaim(context.Background(), res.ClaimID)
	require.NoError(t, getErr)
	require.NotNil(t, claim)
	assert.Equal(t, model.StatusError, claim.Status)
}

func TestProcessFile_BoardFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, autoClaim())
	f.tasks.err = eris.New("board unavailable")
	f.seedAdjuster(t, fieldAdjuster())
	path := f.writeFile(t, "board-down.txt", "ACCIDENT REPORT")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.False(t, res.TaskCreated)

	claim, err := f.store.GetClaim(context.Background(), res.ClaimID)
	require.NoError(t, err)
	assert.Empty(t, claim.TaskID)
}

func TestProcessFile_PublishesLifecycleEvents(t *testing.T) {
	f := newFixture(t, autoClaim())
	f.seedAdjuster(t, fieldAdjuster())
	ch, unsub := f.bus.Subscribe()
	defer unsub()
	path := f.writeFile(t, "events.txt", "ACCIDENT REPORT")

	res, err := f.proc.ProcessFile(context.Background(), path, "upload")
	require.NoError(t, err)

	var types []model.EventType
	for len(types) < 6 {
		ev := <-ch
		assert.Equal(t, res.ClaimID, ev.ClaimID)
		types = append(types, ev.Type)
	}

	assert.Equal(t, []model.EventType{
		model.EventClaimUploaded,
		model.EventClaimStatusUpdate, // extraction
		model.EventClaimStatusUpdate, // scoring
		model.EventClaimStatusUpdate, // fraud detection
		model.EventClaimStatusUpdate, // routing
		model.EventClaimProcessed,
	}, types)
}
