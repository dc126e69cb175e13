package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/trace2pass/core/internal/model"
	"github.com/trace2pass/core/internal/store"
)

// writeJSON encodes v as the response body, setting the content type and
// status code first.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSubmitEvent implements POST /events: it ingests one AnomalyEvent,
// deduplicates it against the Report Store, and returns 201 for a
// newly created BugRecord or 200 for a duplicate/repeat occurrence
// counted against an existing one.
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var e model.AnomalyEvent
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, created, err := s.store.Submit(e)
	if err != nil {
		s.log.Error("submit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "submit failed")
		return
	}
	s.metrics.EventsSubmittedTotal.WithLabelValues(string(status)).Inc()

	httpStatus := http.StatusOK
	if created {
		httpStatus = http.StatusCreated
	}
	writeJSON(w, httpStatus, map[string]string{
		"fingerprint": string(model.ComputeFingerprint(e)),
		"status":      string(status),
	})
}

// handleGetReport implements GET /reports/{fingerprint}.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	fp := model.Fingerprint(r.PathValue("fingerprint"))
	rec, err := s.store.Get(fp)
	if err != nil {
		writeError(w, http.StatusNotFound, "no such report: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handlePatchReport implements PATCH /reports/{fingerprint} with a
// {status, diagnosis?} body, transitioning the record's status.
func (s *Server) handlePatchReport(w http.ResponseWriter, r *http.Request) {
	fp := model.Fingerprint(r.PathValue("fingerprint"))

	var body struct {
		Status    model.Status     `json:"status"`
		Diagnosis *model.Diagnosis `json:"diagnosis,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := s.store.UpdateStatusOperator(fp, body.Status, body.Diagnosis); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	rec, err := s.store.Get(fp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleQueue implements GET /queue?limit=N.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.store.Queue(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.QueueDepth.Set(float64(len(records)))
	writeJSON(w, http.StatusOK, records)
}

// handleStats implements GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Store is the subset of *store.Store the HTTP surface needs, so the
// server can be tested against a fake without a real bbolt file.
type Store interface {
	Submit(e model.AnomalyEvent) (model.Status, bool, error)
	Get(fp model.Fingerprint) (*model.BugRecord, error)
	Queue(limit int) ([]*model.BugRecord, error)
	UpdateStatusOperator(fp model.Fingerprint, next model.Status, diagnosis *model.Diagnosis) error
	Stats() (store.Stats, error)
}
