package http

import (
	"fmt"
	"net/http"

	"payplan/internal/analyzer"
	"payplan/internal/storage"
)

// FixRequest carries a patch set keyed by instrument ID.
type FixRequest struct {
	Patches map[string]analyzer.ConfigPatch `json:"patches"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	analysis, err := s.svc.Fixes.Analyze(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleProposedFixes(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	patches, err := s.svc.Fixes.Propose(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FixRequest{Patches: patches})
}

func (s *Server) handlePreviewFixes(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	var req FixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	preview, err := s.svc.Fixes.Preview(r.Context(), req.Patches)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleApplyFixes applies a patch set. A failed write still reports the
// run so the caller can reconcile later.
func (s *Server) handleApplyFixes(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	var req FixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Fixes.Apply(r.Context(), req.Patches)
	if err != nil {
		if res.RunID != "" {
			s.loggerFor(r).ErrorContext(r.Context(), "Fix run failed", "run_id", res.RunID, "error", err)
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		s.writeError(w, r, err)
		return
	}
	if s.svc.Schedule != nil {
		s.svc.Schedule.Invalidate()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	res, err := s.svc.Fixes.Reconcile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Unresolved == nil {
		res.Unresolved = []string{}
	}
	if res.Rewritten > 0 && s.svc.Schedule != nil {
		s.svc.Schedule.Invalidate()
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFixRuns lists fix runs with the given status, pending by default.
func (s *Server) handleFixRuns(w http.ResponseWriter, r *http.Request) {
	if s.svc.Fixes == nil {
		s.writeError(w, r, errServiceUnavailable)
		return
	}
	status := storage.FixRunStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = storage.FixRunPending
	}
	switch status {
	case storage.FixRunPending, storage.FixRunCompleted, storage.FixRunFailed, storage.FixRunReconciled:
	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown fix run status %q", errBadRequest, status))
		return
	}
	runs, err := s.svc.Fixes.FixRuns(r.Context(), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []storage.FixRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
