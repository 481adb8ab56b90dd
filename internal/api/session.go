package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/session"
)

// sessionID returns the browser session id, issuing a cookie when absent
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// activeReport returns the report the session is working on, uuid.Nil if none
func (s *Server) activeReport(ctx context.Context, sessionID string) uuid.UUID {
	if s.sessions == nil {
		return uuid.Nil
	}
	id, err := s.sessions.ActiveReport(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNoReport) {
			s.logger.Warn("failed to read session", zap.Error(err))
		}
		return uuid.Nil
	}
	return id
}

func (s *Server) setActiveReport(ctx context.Context, sessionID string, id uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.SetActiveReport(ctx, sessionID, id); err != nil {
		s.logger.Warn("failed to store session", zap.Error(err))
	}
}

func (s *Server) clearSession(ctx context.Context, sessionID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		s.logger.Warn("failed to clear session", zap.Error(err))
	}
}
