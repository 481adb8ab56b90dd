package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/export"
	"github.com/fmuoria/assessment-report-agent/internal/models"
	"github.com/fmuoria/assessment-report-agent/internal/storage"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.reports.List(r.Context(), user(r))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"reports": list})
}

// handleGetReport resumes a report and makes it the session's active one
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		s.respondFailure(w, r, storage.ErrNotFound)
		return
	}
	ctx := r.Context()
	if err := s.checkOwner(ctx, id, user(r)); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	rc, err := s.reports.Load(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.setActiveReport(ctx, s.sessionID(w, r), id)

	s.respondJSON(w, http.StatusOK, models.StateResponse{
		ReportID: id.String(),
		Step:     rc.Step,
		Context:  rc,
		HTML:     rc.Sections,
	})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		s.respondFailure(w, r, storage.ErrNotFound)
		return
	}
	ctx := r.Context()
	if err := s.checkOwner(ctx, id, user(r)); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	sid := s.sessionID(w, r)
	if s.activeReport(ctx, sid) == id {
		s.clearSession(ctx, sid)
	}
	if s.uploads != nil {
		if err := s.uploads.ClearUploads(id.String()); err != nil {
			s.logger.Warn("failed to remove uploads", zap.String("report_id", id.String()), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		s.respondFailure(w, r, storage.ErrNotFound)
		return
	}
	ctx := r.Context()
	if err := s.checkOwner(ctx, id, user(r)); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	doc, filename, err := s.agent.Document(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.sendDocument(w, doc, filename)
}

func (s *Server) handleRatingsWorkbook(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		s.respondFailure(w, r, storage.ErrNotFound)
		return
	}
	ctx := r.Context()
	if err := s.checkOwner(ctx, id, user(r)); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	rc, err := s.reports.Load(ctx, id)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	data, err := export.RatingsWorkbook(rc, s.catalog)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="betyg_%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write workbook", zap.Error(err))
	}
}

// handleStreamSection regenerates one section and streams it as server-sent events
func (s *Server) handleStreamSection(w http.ResponseWriter, r *http.Request) {
	id, err := reportID(r)
	if err != nil {
		s.respondFailure(w, r, storage.ErrNotFound)
		return
	}
	ctx := r.Context()
	if err := s.checkOwner(ctx, id, user(r)); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	section := chi.URLParam(r, "section")
	if _, ok := s.catalog.Text(section); !ok {
		s.respondError(w, http.StatusNotFound, "unknown section")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rc, err := s.agent.StreamSection(ctx, id, section, func(delta string) {
		writeEvent(w, "delta", map[string]string{"delta": delta})
		flusher.Flush()
	})
	if err != nil {
		s.logger.Error("section stream failed", zap.String("report_id", id.String()), zap.Error(err))
		writeEvent(w, "error", map[string]string{"message": err.Error()})
		flusher.Flush()
		return
	}

	writeEvent(w, "done", map[string]any{"section": section, "html": rc.Section(section), "ratings": rc.Ratings})
	flusher.Flush()
}

// writeEvent writes one SSE frame with a JSON payload
func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
