package models

import (
	"encoding/json"
	"fmt"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
)

// Wizard step bounds
const (
	FirstStep = 1
	LastStep  = 11
)

// DefaultRating is the neutral score used whenever a rating is missing
const DefaultRating = 3

// Rating scale bounds
const (
	MinRating = 1
	MaxRating = 5
)

// MaxMotivationFactors is the number of motivation factors a candidate may select
const MaxMotivationFactors = 3

// RatingSet maps section key -> sub-label -> score in [1,5]
type RatingSet map[string]map[string]int

// NewRatingSet returns a rating set with every known sub-label at DefaultRating
func NewRatingSet(cat *catalog.Catalog) RatingSet {
	rs := make(RatingSet)
	for _, s := range cat.Sections() {
		sub := make(map[string]int, len(s.Competencies))
		for _, c := range s.Competencies {
			sub[c.Label] = DefaultRating
		}
		rs[s.Key] = sub
	}
	return rs
}

// Get returns the score of a sub-label, or DefaultRating if it is missing
func (rs RatingSet) Get(section, label string) int {
	if sub, ok := rs[section]; ok {
		if v, ok := sub[label]; ok {
			return v
		}
	}
	return DefaultRating
}

// Set stores a score, creating the section map if needed
func (rs RatingSet) Set(section, label string, score int) {
	sub, ok := rs[section]
	if !ok {
		sub = make(map[string]int)
		rs[section] = sub
	}
	sub[label] = score
}

// Clone returns a deep copy of the rating set
func (rs RatingSet) Clone() RatingSet {
	out := make(RatingSet, len(rs))
	for section, sub := range rs {
		copied := make(map[string]int, len(sub))
		for label, v := range sub {
			copied[label] = v
		}
		out[section] = copied
	}
	return out
}

// Complete fills every sub-label the catalog knows about that is missing
func (rs RatingSet) Complete(cat *catalog.Catalog) RatingSet {
	out := NewRatingSet(cat)
	for _, s := range cat.Sections() {
		for _, c := range s.Competencies {
			if sub, ok := rs[s.Key]; ok {
				if v, ok := sub[c.Label]; ok && v >= MinRating && v <= MaxRating {
					out[s.Key][c.Label] = v
				}
			}
		}
	}
	return out
}

// JSON returns the rating set as JSON text, the form it travels in through forms and storage
func (rs RatingSet) JSON() string {
	data, err := json.Marshal(rs)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ParseRatingSet decodes JSON text produced by RatingSet.JSON
func ParseRatingSet(text string) (RatingSet, error) {
	var rs RatingSet
	if err := json.Unmarshal([]byte(text), &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ratings: %w", err)
	}
	return rs, nil
}

// ReportContext is the full wizard state of one report
type ReportContext struct {
	CandidateName     string            `json:"candidate_name"`
	Role              string            `json:"role"`
	ExcelText         string            `json:"excel_text"`
	InterviewText     string            `json:"interview_text"`
	CVText            string            `json:"cv_text"`
	JobAdText         string            `json:"job_ad_text"`
	SkillVerbal       int               `json:"skill_verbal"`
	SkillNumeric      int               `json:"skill_numeric"`
	MotivationFactors []string          `json:"motivation_factors"`
	Ratings           RatingSet         `json:"ratings"`
	Sections          map[string]string `json:"sections"`
	Step              int               `json:"step"`

	// Transient, never persisted
	Images     map[string]string `json:"images,omitempty"`
	Error      string            `json:"error,omitempty"`
	DebugTrail []string          `json:"debug_trail,omitempty"`
}

// PersistedKeys is the allow-list of context keys written to storage
var PersistedKeys = []string{
	"candidate_name",
	"role",
	"excel_text",
	"interview_text",
	"cv_text",
	"job_ad_text",
	"skill_verbal",
	"skill_numeric",
	"motivation_factors",
	"ratings",
	"sections",
	"step",
}

// ContextKeys is the allow-list of scalar form fields merged into the context.
// Section texts and chart images are accepted under their catalog keys.
var ContextKeys = []string{
	"candidate_name",
	"role",
	"interview_text",
	"cv_text",
	"job_ad_text",
	"skill_verbal",
	"skill_numeric",
	"motivation_factors",
	"ratings",
}

// Skill score bounds
const (
	MinSkill = 0
	MaxSkill = 99
)

// NewReportContext returns a context at step 1 with default ratings
func NewReportContext(cat *catalog.Catalog) *ReportContext {
	return &ReportContext{
		Ratings:  NewRatingSet(cat),
		Sections: make(map[string]string),
		Images:   make(map[string]string),
		Step:     FirstStep,
	}
}

// Section returns the text of a section, empty if not yet generated
func (rc *ReportContext) Section(key string) string {
	if rc.Sections == nil {
		return ""
	}
	return rc.Sections[key]
}

// SetSection stores the text of a section
func (rc *ReportContext) SetSection(key, text string) {
	if rc.Sections == nil {
		rc.Sections = make(map[string]string)
	}
	rc.Sections[key] = text
}

// Title is the human readable report title
func (rc *ReportContext) Title() string {
	if rc.CandidateName == "" {
		return "Namnlös bedömning"
	}
	if rc.Role == "" {
		return rc.CandidateName
	}
	return rc.CandidateName + " – " + rc.Role
}

// Snapshot serializes only the allow-listed keys of the context
func (rc *ReportContext) Snapshot() ([]byte, error) {
	full, err := json.Marshal(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report context: %w", err)
	}
	return filterKeys(full)
}

// RestoreReportContext decodes a snapshot, ignoring keys outside the allow-list
func RestoreReportContext(data []byte, cat *catalog.Catalog) (*ReportContext, error) {
	filtered, err := filterKeys(data)
	if err != nil {
		return nil, err
	}

	rc := NewReportContext(cat)
	if err := json.Unmarshal(filtered, rc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report context: %w", err)
	}
	rc.Ratings = rc.Ratings.Complete(cat)
	if rc.Sections == nil {
		rc.Sections = make(map[string]string)
	}
	if rc.Step < FirstStep || rc.Step > LastStep {
		rc.Step = FirstStep
	}
	return rc, nil
}

func filterKeys(data []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode report context: %w", err)
	}

	kept := make(map[string]json.RawMessage, len(PersistedKeys))
	for _, key := range PersistedKeys {
		if v, ok := raw[key]; ok {
			kept[key] = v
		}
	}
	return json.Marshal(kept)
}

// ReportSummary is a listing entry of a stored report
type ReportSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Step      int    `json:"step"`
	UpdatedAt string `json:"updated_at"`
}

// StateResponse is what the wizard returns after each step
type StateResponse struct {
	ReportID string            `json:"report_id"`
	Step     int               `json:"step"`
	Error    string            `json:"error,omitempty"`
	Context  *ReportContext    `json:"context"`
	HTML     map[string]string `json:"html,omitempty"`
	Images   map[string]string `json:"image_urls,omitempty"`
}
