package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// StartRequest is the body of POST /api/imports.
type StartRequest struct {
	FilePath string `json:"filePath"`
}

// StartResponse is returned when a run was accepted.
type StartResponse struct {
	RunID     string `json:"runId"`
	StatusURL string `json:"statusUrl"`
}

// ListResponse is returned by GET /api/imports.
type ListResponse struct {
	Runs    []core.RunStatus   `json:"runs"`
	Limiter core.LimiterStatus `json:"limiter"`
}

// CancelResponse is returned by POST /api/imports/{runID}/cancel.
type CancelResponse struct {
	RunID string        `json:"runId"`
	State core.RunState `json:"state"`
}

var (
	errBadRequest    = errors.New("invalid request body")
	errPathForbidden = fmt.Errorf("file path outside the import directory: %w", os.ErrPermission)
)

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), http.StatusBadRequest)
		return
	}

	path, err := s.resolvePath(req.FilePath)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	id, err := s.runs.Start(r.Context(), path)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("import started", "run_id", id, "file", path)
	writeJSON(w, r, http.StatusAccepted, StartResponse{
		RunID:     id,
		StatusURL: "/api/imports/" + id,
	})
}

// within reports whether path lies inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolvePath cleans the requested path and checks it against the allowed
// import directory. Blank paths are left to the run configuration check.
func (s *Server) resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return path, nil
	}
	path = filepath.Clean(path)

	if dir := s.cfg.Import.AllowedDir; dir != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if !within(filepath.Clean(dir), path) {
			return "", errPathForbidden
		}
		// compare real locations too so a symlink cannot point outside dir
		root, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return "", fmt.Errorf("resolve import directory: %w", err)
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", err
		}
		if !within(root, resolved) {
			return "", errPathForbidden
		}
		path = resolved
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", path, os.ErrNotExist)
	}
	return path, nil
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, ListResponse{
		Runs:    s.runs.List(),
		Limiter: s.runs.Limiter(),
	})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.runs.Status(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	if err := s.runs.Cancel(id); err != nil {
		respondError(w, r, err, 0)
		return
	}

	state := core.StateCancelled
	if st, err := s.runs.Status(id); err == nil {
		state = st.State
	}
	logging.FromContext(r.Context()).Info("import cancel requested", "run_id", id)
	writeJSON(w, r, http.StatusAccepted, CancelResponse{RunID: id, State: state})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"limiter": s.runs.Limiter(),
	})
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
