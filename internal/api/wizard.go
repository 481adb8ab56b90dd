package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/agent"
	"github.com/fmuoria/assessment-report-agent/internal/document"
	"github.com/fmuoria/assessment-report-agent/internal/storage"
)

// NewReportID is the report_id value that starts a fresh report
const NewReportID = "new"

// handleWizard applies one wizard step
func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
		return
	}
	if r.MultipartForm == nil {
		if err := r.ParseForm(); err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse form: %v", err))
			return
		}
	}

	action, err := agent.ParseAction(r.FormValue("action"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	ctx := r.Context()
	sid := s.sessionID(w, r)
	owner := user(r)

	id, err := s.wizardReport(ctx, r.FormValue("report_id"), sid, owner)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.clearSession(ctx, sid)
		}
		s.respondFailure(w, r, err)
		return
	}

	req := agent.StepRequest{
		Action:   action,
		ReportID: id,
		Owner:    owner,
		Form:     formValues(r),
	}
	if req.Sheet, err = upload(r, "excel"); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CV, err = upload(r, "cv_file"); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.agent.Step(ctx, req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.clearSession(ctx, sid)
		}
		s.respondFailure(w, r, err)
		return
	}

	s.setActiveReport(ctx, sid, res.ReportID)
	s.keepUploads(res.ReportID, req.Sheet, req.CV)

	if action == agent.ActionExport && res.Document != nil {
		s.sendDocument(w, res.Document, res.Filename)
		return
	}
	s.respondJSON(w, http.StatusOK, res.State())
}

// wizardReport resolves which report a submission belongs to
func (s *Server) wizardReport(ctx context.Context, field, sid, owner string) (uuid.UUID, error) {
	field = strings.TrimSpace(field)
	switch field {
	case NewReportID:
		return uuid.Nil, nil
	case "":
		id := s.activeReport(ctx, sid)
		if id == uuid.Nil {
			return uuid.Nil, nil
		}
		return id, s.checkOwner(ctx, id, owner)
	}

	id, err := uuid.Parse(field)
	if err != nil {
		return uuid.Nil, storage.ErrNotFound
	}
	return id, s.checkOwner(ctx, id, owner)
}

// checkOwner hides reports of other users behind ErrNotFound
func (s *Server) checkOwner(ctx context.Context, id uuid.UUID, owner string) error {
	rec, err := s.reports.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return storage.ErrNotFound
	}
	return nil
}

// formValues returns the submitted text fields without the control fields
func formValues(r *http.Request) url.Values {
	src := r.Form
	if r.MultipartForm != nil {
		src = r.MultipartForm.Value
	}
	out := make(url.Values, len(src))
	for k, v := range src {
		if k == "action" || k == "report_id" {
			continue
		}
		out[k] = v
	}
	return out
}

// upload reads an optional file field
func upload(r *http.Request, field string) (*agent.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	return readUpload(headers[0])
}

func readUpload(h *multipart.FileHeader) (*agent.Upload, error) {
	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return &agent.Upload{Filename: h.Filename, Data: data}, nil
}

// keepUploads stores the raw files next to the report
func (s *Server) keepUploads(id uuid.UUID, uploads ...*agent.Upload) {
	if s.uploads == nil {
		return
	}
	for _, u := range uploads {
		if u == nil || len(u.Data) == 0 {
			continue
		}
		if _, err := s.uploads.SaveUploadedFile(id.String(), u.Filename, bytes.NewReader(u.Data)); err != nil {
			s.logger.Warn("failed to keep upload", zap.String("file", u.Filename), zap.Error(err))
		}
	}
}

// sendDocument writes the assembled report as an attachment
func (s *Server) sendDocument(w http.ResponseWriter, doc []byte, filename string) {
	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		s.logger.Warn("failed to write document", zap.Error(err))
	}
}
