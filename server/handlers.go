package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"videoDigest/config"
	"videoDigest/core"
	"videoDigest/storage"
)

type processVideoRequest struct {
	VideoPath string `json:"video_path"`
}

type queryRequest struct {
	VideoID  string `json:"video_id"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type queryResponse struct {
	VideoID  string     `json:"video_id"`
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
	Hits     []core.Hit `json:"hits"`
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	var req processVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "video_path is required"})
		return
	}

	outcome := s.pipeline.Run(r.Context(), req.VideoPath)
	if !outcome.Succeeded() {
		core.WriteJSON(w, statusForOutcome(outcome), outcome)
		return
	}
	s.remember(outcome.Artifact)
	s.indexArtifact(r.Context(), outcome)
	core.WriteJSON(w, http.StatusOK, outcome)
}

func statusForOutcome(o *core.RunOutcome) int {
	switch o.ErrorKind {
	case "ingest":
		return http.StatusBadRequest
	case "configuration":
		return http.StatusServiceUnavailable
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// indexArtifact feeds a finished artifact into the vector store. Index
// trouble is reported as a warning on the outcome, never as a failure; the
// artifact itself is already complete and persisted.
func (s *Server) indexArtifact(ctx context.Context, outcome *core.RunOutcome) {
	if s.store == nil || outcome.Artifact == nil {
		return
	}
	items := storage.BuildIndexItems(outcome.Artifact)
	count, err := s.store.Upsert(ctx, outcome.Artifact.VideoID, items)
	if err != nil {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("indexing failed: %v", err))
		outcome.Steps = append(outcome.Steps, core.Step{Name: core.StageIndex, Status: "failed", Error: err.Error()})
		config.Log.WithFields(logrus.Fields{
			"video_id": outcome.Artifact.VideoID,
			"error":    err.Error(),
		}).Warn("artifact indexing failed")
		return
	}
	outcome.Steps = append(outcome.Steps, core.Step{Name: core.StageIndex, Status: "completed"})
	config.Log.WithFields(logrus.Fields{
		"video_id": outcome.Artifact.VideoID,
		"items":    count,
	}).Info("artifact indexed")
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	videoID := r.URL.Query().Get("video_id")
	if videoID == "" {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "video_id is required"})
		return
	}
	if strings.ContainsAny(videoID, `/\`) || strings.Contains(videoID, "..") {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid video_id"})
		return
	}

	if artifact := s.lookup(videoID); artifact != nil {
		core.WriteJSON(w, http.StatusOK, artifact)
		return
	}

	// Artifacts from earlier process lifetimes are still on disk.
	data, err := os.ReadFile(filepath.Join(core.DataRoot(), videoID, "artifact.json"))
	if err != nil {
		core.WriteJSON(w, http.StatusNotFound, errorResponse{
			Error: fmt.Sprintf("no artifact for video_id %q", videoID),
			Hint:  "process the video first via POST /process-video",
		})
		return
	}
	var artifact core.SummaryArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "stored artifact is unreadable"})
		return
	}
	s.remember(&artifact)
	core.WriteJSON(w, http.StatusOK, &artifact)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.VideoID == "" || strings.TrimSpace(req.Question) == "" {
		core.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "video_id and question are required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	if req.TopK > 20 {
		req.TopK = 20
	}

	hits, err := s.store.Search(r.Context(), req.VideoID, req.Question, req.TopK)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("search failed: %v", err)})
		return
	}
	if hits == nil {
		hits = []core.Hit{}
	}
	core.WriteJSON(w, http.StatusOK, queryResponse{
		VideoID:  req.VideoID,
		Question: req.Question,
		Answer:   storage.SynthesizeAnswer(req.Question, hits),
		Hits:     hits,
	})
}

// handleHealth reports whether the pieces a run depends on are in place.
// A missing piece degrades the status instead of failing the check, so
// orchestrators can still tell the process itself is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := map[string]string{
		"ffmpeg": "available",
		"api":    "configured",
		"store":  s.cfg.Store,
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		services["ffmpeg"] = "missing"
		status = "degraded"
	}
	if !s.cfg.HasValidAPI() {
		services["api"] = "not configured"
		if s.cfg.ASRProvider != "mock" || s.cfg.SummaryProvider != "mock" {
			status = "degraded"
		}
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"service":  "videoDigest",
		"services": services,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
