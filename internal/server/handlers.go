package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/forPelevin/podclip/internal/clips"
	"github.com/forPelevin/podclip/internal/domain/words"
	"github.com/forPelevin/podclip/internal/pipeline"
	"github.com/forPelevin/podclip/internal/store"
	"github.com/forPelevin/podclip/internal/types"
	"github.com/forPelevin/podclip/internal/upload"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type initiateRequest struct {
	Filename  string `json:"filename"`
	FileSize  int64  `json:"file_size"`
	ChunkSize int64  `json:"chunk_size,omitempty"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", upload.ErrBadRequest, err))
		return
	}
	sess, err := s.uploads.CreateSession(req.Filename, req.FileSize, req.ChunkSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(sess))
}

// handleUploadChunk accepts one chunk as a multipart form: session_id,
// chunk_index and the chunk payload under "chunk".
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := r.FormValue("session_id")
	indexStr := r.FormValue("chunk_index")
	index, err := strconv.Atoi(indexStr)
	if sessionID == "" || indexStr == "" || err != nil {
		s.writeError(w, fmt.Errorf("%w: session_id and numeric chunk_index are required", upload.ErrBadRequest))
		return
	}
	file, _, err := r.FormFile("chunk")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: chunk payload missing: %v", upload.ErrBadRequest, err))
		return
	}
	defer file.Close()

	sess, err := s.uploads.ReceiveChunk(sessionID, index, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uploads.Status(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

type sessionIDRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.writeError(w, fmt.Errorf("%w: session_id is required", upload.ErrBadRequest))
		return
	}
	sess, err := s.uploads.Complete(req.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) handleUploadAbort(w http.ResponseWriter, r *http.Request) {
	var req sessionIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.writeError(w, fmt.Errorf("%w: session_id is required", upload.ErrBadRequest))
		return
	}
	if err := s.uploads.Abort(req.SessionID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

type createJobRequest struct {
	SourceURL string `json:"source_url,omitempty"`
	UploadID  string `json:"upload_id,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", upload.ErrBadRequest, err))
		return
	}
	if (req.SourceURL == "") == (req.UploadID == "") {
		s.writeError(w, fmt.Errorf("%w: exactly one of source_url or upload_id is required", upload.ErrBadRequest))
		return
	}

	job := &types.Job{
		ID:        uuid.NewString(),
		SourceURL: req.SourceURL,
		Status:    types.JobQueued,
		Progress:  "queued",
	}
	if req.UploadID != "" {
		sess, err := s.uploads.Status(req.UploadID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if sess.Status != upload.StatusCompleted {
			s.writeError(w, fmt.Errorf("%w: upload is %s, not completed", upload.ErrSessionState, sess.Status))
			return
		}
		job.SourcePath = sess.FinalPath
	}

	if err := s.jobs.Create(job); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.pool.Submit(job.ID); err != nil {
		_, _ = s.jobs.Update(job.ID, func(j *types.Job) error {
			j.Status = types.JobFailed
			j.Error = err.Error()
			return nil
		})
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list, err := s.jobs.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobWords returns the derived word sequence, optionally limited to
// the time window [start, end) given as float seconds.
func (s *Server) handleJobWords(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	model, err := s.wordModel(job)
	if err != nil {
		s.writeError(w, err)
		return
	}

	list := model.Words()
	q := r.URL.Query()
	if q.Get("start") != "" || q.Get("end") != "" {
		start, err1 := strconv.ParseFloat(q.Get("start"), 64)
		end, err2 := strconv.ParseFloat(q.Get("end"), 64)
		if err1 != nil || err2 != nil || end <= start {
			s.writeError(w, fmt.Errorf("%w: start and end must be floats with end > start", upload.ErrBadRequest))
			return
		}
		list = model.InRange(start, end)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     job.ID,
		"word_count": model.Count(),
		"words":      list,
	})
}

type editClipRequest struct {
	StartWordIndex int `json:"start_word_index"`
	EndWordIndex   int `json:"end_word_index"`
}

func (s *Server) handleEditClip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idx, err := strconv.Atoi(vars["idx"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: clip index must be numeric", upload.ErrBadRequest))
		return
	}
	var req editClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", upload.ErrBadRequest, err))
		return
	}

	var res clips.EditResult
	_, err = s.jobs.Update(vars["id"], func(j *types.Job) error {
		if j.Transcript == nil {
			return errTranscriptPending
		}
		model := words.Build(*j.Transcript)
		var editErr error
		res, editErr = clips.UpdateByWords(j, idx, req.StartWordIndex, req.EndWordIndex, model, s.cfg.MaxClipDuration)
		return editErr
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRenderClip(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	idx, err := strconv.Atoi(vars["idx"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: clip index must be numeric", upload.ErrBadRequest))
		return
	}
	job, err := s.jobs.Get(vars["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	path, err := s.renderer.Render(r.Context(), job, idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"artifact_path": path})
}

// wordModel returns the cached derived view for a job, building it on miss.
func (s *Server) wordModel(job *types.Job) (*words.Model, error) {
	if job.Transcript == nil {
		return nil, errTranscriptPending
	}
	if m, ok := s.wordCache.Get(job.ID); ok {
		return m, nil
	}
	m := words.Build(*job.Transcript)
	s.wordCache.Put(job.ID, m)
	return m, nil
}

var errTranscriptPending = errors.New("transcript not available yet")

func sessionView(sess *upload.Session) map[string]any {
	return map[string]any{
		"session":  sess,
		"progress": sess.Progress(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses in one place.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var incomplete *upload.IncompleteError
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":          incomplete.Error(),
			"missing_chunks": incomplete.Missing,
			"missing_count":  incomplete.MissingCount,
			"total_chunks":   incomplete.Total,
		})
		return
	case errors.Is(err, upload.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, clips.ErrClipNotFound):
		status = http.StatusNotFound
	case errors.Is(err, upload.ErrBadRequest), errors.Is(err, clips.ErrWordRange):
		status = http.StatusBadRequest
	case errors.Is(err, upload.ErrSessionState), errors.Is(err, errTranscriptPending):
		status = http.StatusConflict
	case errors.Is(err, clips.ErrTooLong):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrQueueFull):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
