package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/fmuoria/assessment-report-agent/internal/agent"
	"github.com/fmuoria/assessment-report-agent/internal/prompt"
)

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	list, err := s.prompts.List(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"owner":    s.prompts.Owner(),
		"editable": user(r) == s.prompts.Owner(),
		"prompts":  list,
	})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	t, err := s.prompts.Lookup(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

type updatePromptRequest struct {
	Text string `json:"text"`
}

// handleUpdatePrompt replaces a template; only the prompt owner may do so
func (s *Server) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var body updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	if unknown := unknownPlaceholders(body.Text, agent.VarNames(s.catalog)); len(unknown) > 0 {
		s.respondError(w, http.StatusBadRequest, "unknown placeholders: "+strings.Join(unknown, ", "))
		return
	}

	t, err := s.prompts.Update(r.Context(), user(r), chi.URLParam(r, "name"), body.Text)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

func unknownPlaceholders(text string, known []string) []string {
	var unknown []string
	for _, name := range prompt.Placeholders(text) {
		if !slices.Contains(known, name) {
			unknown = append(unknown, "{"+name+"}")
		}
	}
	return unknown
}
