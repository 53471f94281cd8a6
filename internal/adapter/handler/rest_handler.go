package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/hive-corporation/spyglass/internal/adapter/exporter"
	"github.com/hive-corporation/spyglass/internal/adapter/metrics"
	"github.com/hive-corporation/spyglass/internal/adapter/notifier"
	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/core/service"
)

type RestHandler struct {
	svc           *service.EnrichmentService
	repo          ports.AssessmentRepository
	slackNotifier *notifier.SlackNotifier
	cefExporter   *exporter.CEFExporter
	stixExporter  *exporter.STIXExporter
}

func NewRestHandler(svc *service.EnrichmentService, repo ports.AssessmentRepository, slackNotifier *notifier.SlackNotifier) *RestHandler {
	return &RestHandler{
		svc:           svc,
		repo:          repo,
		slackNotifier: slackNotifier,
		cefExporter:   exporter.NewCEFExporter(repo),
		stixExporter:  exporter.NewSTIXExporter(repo),
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "spyglass-api",
	}
	writeJSON(w, http.StatusOK, response)
}

type queryRequest struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

// QueryIOC - Enrich one IOC across all providers and record the assessment
func (h *RestHandler) QueryIOC(w http.ResponseWriter, r *http.Request) {
	var payload queryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	// Providers carry their own per-call deadlines; this bounds the whole
	// request including the store append.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	timer := metrics.StartTimer()
	assessment, err := h.svc.Assess(ctx, payload.Value, payload.Type)
	timer.ObserveDuration()

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidIOC):
			metrics.RecordEnrichment("invalid_ioc")
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrStoreUnavailable):
			metrics.RecordEnrichment("store_error")
			writeError(w, http.StatusServiceUnavailable, "assessment store unavailable")
		default:
			metrics.RecordEnrichment("error")
			log.Printf("❌ Enrichment failed for %q: %v", payload.Value, err)
			writeError(w, http.StatusInternalServerError, "enrichment failed")
		}
		return
	}

	metrics.RecordEnrichment("success")
	metrics.RecordAssessment(assessment)

	// Alert out-of-band; the caller should not wait on Slack
	if h.slackNotifier != nil && assessment.Tier >= domain.TierHigh {
		go func(a domain.Assessment) {
			if err := h.slackNotifier.NotifyHighRiskAssessment(a); err != nil {
				log.Printf("⚠️  Failed to send Slack notification: %v", err)
			}
		}(assessment)
	}

	writeJSON(w, http.StatusOK, assessmentPayload(assessment))
}

// GetSummary - Temporal view of one IOC derived from its stored history
func (h *RestHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing 'value' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summary, err := h.svc.Summary(ctx, value, r.URL.Query().Get("type"))
	if err != nil {
		writeReadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryPayload(summary))
}

// GetHistory - Full ordered assessment history for one IOC
func (h *RestHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing 'value' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := h.svc.History(ctx, value, r.URL.Query().Get("type"))
	if err != nil {
		writeReadError(w, err)
		return
	}

	assessments := make([]map[string]interface{}, len(history))
	for i, a := range history {
		assessments[i] = assessmentPayload(a)
	}

	response := map[string]interface{}{
		"ioc":         history[0].IOC.Value,
		"ioc_type":    history[0].IOC.Type,
		"count":       len(history),
		"assessments": assessments,
	}
	writeJSON(w, http.StatusOK, response)
}

// GetTimeline - Chronological score points plus the current temporal state
func (h *RestHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing 'value' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, summary, err := h.svc.Timeline(ctx, value, r.URL.Query().Get("type"))
	if err != nil {
		writeReadError(w, err)
		return
	}

	points := make([]map[string]interface{}, len(history))
	for i, a := range history {
		points[i] = map[string]interface{}{
			"t":          a.CreatedAt.Format(time.RFC3339),
			"score":      a.Score,
			"risk_level": a.Tier.String(),
		}
	}

	response := map[string]interface{}{
		"ioc":            summary.IOC.Value,
		"ioc_type":       summary.IOC.Type,
		"first_seen":     summary.FirstSeen.Format(time.RFC3339),
		"last_updated":   summary.LastUpdated.Format(time.RFC3339),
		"activity_phase": summary.ActivityPhase,
		"burned_infra":   summary.BurnedInfra,
		"points":         points,
	}
	writeJSON(w, http.StatusOK, response)
}

// GetIOCFeed - Export recent assessments for SIEM ingestion
func (h *RestHandler) GetIOCFeed(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	since := r.URL.Query().Get("since") // e.g., "24h", "72h"

	// Parse time duration
	var sinceTime time.Time
	if since != "" {
		duration, err := time.ParseDuration(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h', '72h')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch format {
	case "cef":
		data, err := h.cefExporter.Export(ctx, sinceTime)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export CEF feed")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			log.Printf("Error writing CEF feed response: %v", err)
		}

	case "stix":
		data, err := h.stixExporter.Export(ctx, sinceTime)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export STIX feed")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			log.Printf("Error writing STIX feed response: %v", err)
		}

	case "json", "":
		if sinceTime.IsZero() {
			sinceTime = time.Now().Add(-24 * time.Hour)
		}
		assessments, err := h.repo.ListSince(ctx, sinceTime, 10000)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export JSON feed")
			return
		}

		entries := make([]map[string]interface{}, len(assessments))
		for i, a := range assessments {
			entries[i] = assessmentPayload(a)
		}
		response := map[string]interface{}{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
			"since":        sinceTime.UTC().Format(time.RFC3339),
			"count":        len(entries),
			"assessments":  entries,
		}
		writeJSON(w, http.StatusOK, response)

	default:
		writeError(w, http.StatusBadRequest, "unsupported format (use 'cef', 'stix', or 'json')")
	}
}

// Helper functions

// assessmentPayload renders one assessment in the wire shape shared by the
// query, history and feed endpoints.
func assessmentPayload(a domain.Assessment) map[string]interface{} {
	results := make([]map[string]interface{}, len(a.Results))
	for i, r := range a.Results {
		entry := map[string]interface{}{
			"provider":   r.Provider,
			"status":     r.Status,
			"latency_ms": r.LatencyMS,
		}
		if r.Signal != nil {
			entry["signal"] = r.Signal
		}
		results[i] = entry
	}

	return map[string]interface{}{
		"id":         a.ID,
		"ioc":        a.IOC.Value,
		"ioc_type":   a.IOC.Type,
		"score":      a.Score,
		"risk_level": a.Tier.String(),
		"results":    results,
		"created_at": a.CreatedAt.Format(time.RFC3339),
	}
}

func summaryPayload(summary domain.TemporalSummary) map[string]interface{} {
	return map[string]interface{}{
		"ioc":               summary.IOC.Value,
		"ioc_type":          summary.IOC.Type,
		"first_seen":        summary.FirstSeen.Format(time.RFC3339),
		"last_updated":      summary.LastUpdated.Format(time.RFC3339),
		"assessment_count":  summary.AssessmentCount,
		"latest_score":      summary.LatestScore,
		"latest_risk_level": summary.LatestTier.String(),
		"activity_phase":    summary.ActivityPhase,
		"burned_infra":      summary.BurnedInfra,
	}
}

// writeReadError maps read-path failures onto HTTP statuses
func writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIOC):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrEmptyHistory):
		writeError(w, http.StatusNotFound, "no assessments recorded for this ioc")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "assessment store unavailable")
	default:
		log.Printf("❌ Read path failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
