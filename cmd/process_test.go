package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/pipeline"
)

type stubFileProcessor struct {
	mu      sync.Mutex
	files   []string
	results map[string]*pipeline.Result
	errs    map[string]error
}

func (s *stubFileProcessor) ProcessFile(_ context.Context, filePath, _ string) (*pipeline.Result, error) {
	s.mu.Lock()
	s.files = append(s.files, filePath)
	s.mu.Unlock()

	name := filepath.Base(filePath)
	if err, ok := s.errs[name]; ok {
		return &pipeline.Result{Status: "error", ClaimID: "CLM-ERR"}, err
	}
	if res, ok := s.results[name]; ok {
		return res, nil
	}
	return &pipeline.Result{
		Status:      "success",
		ClaimID:     "CLM-OK",
		FinalStatus: model.StatusInProgress,
	}, nil
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	single := filepath.Join(t.TempDir(), "c.txt")
	require.NoError(t, os.WriteFile(single, []byte("c"), 0o644))

	files, err := collectFiles([]string{dir, single})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.txt"),
		single,
	}, files)
}

func TestCollectFiles_Missing(t *testing.T) {
	_, err := collectFiles([]string{"/nonexistent/claims"})
	require.Error(t, err)
}

func TestProcessFiles_IndividualFailuresDoNotAbort(t *testing.T) {
	proc := &stubFileProcessor{
		results: map[string]*pipeline.Result{
			"skip.txt": {Status: "skipped", Reason: "already_assigned"},
		},
		errs: map[string]error{
			"bad.txt": errors.New("extraction failed"),
		},
	}

	err := processFiles(context.Background(), proc,
		[]string{"ok.txt", "skip.txt", "bad.txt"}, 2)
	require.NoError(t, err)
	assert.Len(t, proc.files, 3)
}

func TestProcessFiles_ZeroConcurrency(t *testing.T) {
	proc := &stubFileProcessor{}
	err := processFiles(context.Background(), proc, []string{"one.txt"}, 0)
	require.NoError(t, err)
	assert.Len(t, proc.files, 1)
}
