// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedomning_llm_requests_total",
			Help: "LLM completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bedomning_llm_request_duration_seconds",
			Help:    "Duration of LLM completion attempts in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	FallbackTexts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedomning_fallback_texts_total",
			Help: "Sections that received the fallback text instead of a generated one",
		},
		[]string{"prompt"},
	)

	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedomning_wizard_transitions_total",
			Help: "Wizard actions by action and resulting step",
		},
		[]string{"action", "step"},
	)

	SkippedColumns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bedomning_sheet_columns_skipped_total",
			Help: "Spreadsheet columns that did not map to a known competency",
		},
	)

	DocumentsAssembled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedomning_documents_assembled_total",
			Help: "Assembled report documents by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bedomning_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)
)
