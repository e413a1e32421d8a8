package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
	"github.com/harborview/claims-triage/internal/events"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/internal/monitoring"
	"github.com/harborview/claims-triage/internal/store"
	"github.com/harborview/claims-triage/internal/tasks"
)

const maxUploadBytes = 25 << 20

// apiServer holds the dependencies behind the HTTP handlers.
type apiServer struct {
	store     store.Store
	bus       *events.Bus
	collector *monitoring.Collector
	tasks     *tasks.Manager // nil when the board is not configured
	cfg       *config.Config
}

// patchableStatuses are the statuses the API accepts on a manual status
// change. Pipeline-internal stages are excluded.
var patchableStatuses = map[model.ClaimStatus]bool{
	model.StatusAssigned:   true,
	model.StatusInProgress: true,
	model.StatusReview:     true,
	model.StatusCompleted:  true,
	model.StatusApproved:   true,
	model.StatusRejected:   true,
	model.StatusClosed:     true,
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/claims/upload", s.handleUpload)
		r.Get("/claims", s.handleListClaims)
		r.Get("/claims/queue", s.handleQueue)
		r.Get("/claims/{claimID}", s.handleGetClaim)
		r.Get("/claims/{claimID}/history", s.handleRoutingHistory)
		r.Patch("/claims/{claimID}/status", s.handlePatchStatus)
		r.Delete("/claims/{claimID}", s.handleDeleteClaim)

		r.Get("/adjusters", s.handleListAdjusters)
		r.Post("/adjusters", s.handleCreateAdjuster)
		r.Get("/adjusters/workloads", s.handleWorkloads)

		r.Get("/analytics/fraud", s.handleFraudAnalytics)
		r.Get("/analytics/metrics", s.handleMetrics)

		r.Get("/events/stream", s.handleEventStream)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload stores the document in the uploads directory; the
// directory watcher picks it up from there, so upload and drop-folder
// intake share one path.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == "/" {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	dst := filepath.Join(s.cfg.Ingest.UploadsDir, name)
	out, err := os.Create(dst)
	if err != nil {
		zap.L().Error("upload: create file failed", zap.String("file", dst), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, file); err != nil {
		zap.L().Error("upload: write failed", zap.String("file", dst), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"filename": name,
		"status":   "accepted",
	})
}

func (s *apiServer) handleListClaims(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}

	claims, err := s.store.ListClaims(r.Context(), store.ClaimFilter{
		Status: model.ClaimStatus(r.URL.Query().Get("status")),
		Source: r.URL.Query().Get("source"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		zap.L().Error("api: list claims failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list claims failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	claims, err := s.store.ListQueue(r.Context())
	if err != nil {
		zap.L().Error("api: list queue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list queue failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

func (s *apiServer) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")
	claim, err := s.store.GetClaim(r.Context(), claimID)
	if err != nil {
		zap.L().Error("api: get claim failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get claim failed")
		return
	}
	if claim == nil {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

func (s *apiServer) handleRoutingHistory(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")
	records, err := s.store.ListRoutingHistory(r.Context(), claimID)
	if err != nil {
		zap.L().Error("api: routing history failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "routing history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"claim_id": claimID, "history": records})
}

func (s *apiServer) handlePatchStatus(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")

	var req struct {
		Status model.ClaimStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !patchableStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	claim, err := s.store.GetClaim(r.Context(), claimID)
	if err != nil {
		zap.L().Error("api: get claim failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get claim failed")
		return
	}
	if claim == nil {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}

	if err := s.store.UpdateClaimStatus(r.Context(), claimID, req.Status); err != nil {
		zap.L().Error("api: update status failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update status failed")
		return
	}

	s.bus.PublishStatus(claimID, req.Status, "Status updated via API")

	if s.tasks != nil && claim.TaskID != "" {
		if err := s.tasks.UpdateTaskStatus(r.Context(), claim.TaskID, req.Status); err != nil {
			zap.L().Warn("api: task board update failed",
				zap.String("claim_id", claimID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id": claimID,
		"status":   req.Status,
	})
}

func (s *apiServer) handleDeleteClaim(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")
	claim, err := s.store.GetClaim(r.Context(), claimID)
	if err != nil {
		zap.L().Error("api: get claim failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get claim failed")
		return
	}
	if claim == nil {
		writeError(w, http.StatusNotFound, "claim not found")
		return
	}
	if err := s.store.DeleteClaim(r.Context(), claimID); err != nil {
		zap.L().Error("api: delete claim failed", zap.String("claim_id", claimID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete claim failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"claim_id": claimID, "status": "deleted"})
}

func (s *apiServer) handleListAdjusters(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available") == "true"
	adjusters, err := s.store.ListAdjusters(r.Context(), availableOnly)
	if err != nil {
		zap.L().Error("api: list adjusters failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list adjusters failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"adjusters": adjusters, "count": len(adjusters)})
}

func (s *apiServer) handleCreateAdjuster(w http.ResponseWriter, r *http.Request) {
	var adjuster model.Adjuster
	if err := json.NewDecoder(r.Body).Decode(&adjuster); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if adjuster.AdjusterID == "" || adjuster.Name == "" {
		writeError(w, http.StatusBadRequest, "adjuster_id and name are required")
		return
	}
	if err := s.store.SaveAdjuster(r.Context(), &adjuster); err != nil {
		zap.L().Error("api: save adjuster failed", zap.String("adjuster_id", adjuster.AdjusterID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save adjuster failed")
		return
	}
	writeJSON(w, http.StatusCreated, adjuster)
}

func (s *apiServer) handleWorkloads(w http.ResponseWriter, r *http.Request) {
	adjusters, err := s.store.ListAdjusters(r.Context(), false)
	if err != nil {
		zap.L().Error("api: list adjusters failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list adjusters failed")
		return
	}

	workloads := make([]model.Workload, 0, len(adjusters))
	for _, a := range adjusters {
		wl := model.Workload{
			AdjusterID:    a.AdjusterID,
			AdjusterName:  a.Name,
			CurrentClaims: a.CurrentWorkload,
			MaxClaims:     a.MaxConcurrentClaims,
		}
		if a.MaxConcurrentClaims > 0 {
			wl.CapacityPercentage = float64(a.CurrentWorkload) / float64(a.MaxConcurrentClaims) * 100
		}
		workloads = append(workloads, wl)
	}
	writeJSON(w, http.StatusOK, map[string]any{"workloads": workloads})
}

func (s *apiServer) handleFraudAnalytics(w http.ResponseWriter, r *http.Request) {
	flagged, err := s.store.ListFlagged(r.Context())
	if err != nil {
		zap.L().Error("api: list flagged failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list flagged failed")
		return
	}

	byType := map[string]int{}
	for i := range flagged {
		for _, fl := range flagged[i].FraudFlags {
			byType[fl.Type]++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flagged_claims": flagged,
		"count":          len(flagged),
		"flags_by_type":  byType,
	})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.cfg.Monitor.LookbackWindowHours)
	if err != nil {
		zap.L().Error("api: collect metrics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect metrics failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
