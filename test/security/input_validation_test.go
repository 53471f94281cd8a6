package security

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/hive-corporation/spyglass/internal/adapter/handler"
	"github.com/hive-corporation/spyglass/internal/adapter/repository"
	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
	"github.com/hive-corporation/spyglass/internal/core/service"
)

// newValidationRouter wires the real handler against an empty provider
// registry and an in-memory store, so invalid input is rejected by the
// same code path production runs.
func newValidationRouter(repo *repository.MemoryHistoryStore) *mux.Router {
	svc := service.NewEnrichmentService(
		ports.NewProviderRegistry(),
		repo,
		domain.DefaultScoringConfig(),
		domain.DefaultTierBoundaries(),
		domain.DefaultTemporalConfig(),
	)
	restHandler := handler.NewRestHandler(svc, repo, nil)

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/iocs/query", restHandler.QueryIOC).Methods("POST")
	router.HandleFunc("/api/v1/iocs/summary", restHandler.GetSummary).Methods("GET")
	return router
}

func postQuery(router *mux.Router, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/v1/iocs/query", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestInputValidation_MalformedJSON(t *testing.T) {
	router := newValidationRouter(repository.NewMemoryHistoryStore())

	w := postQuery(router, []byte("{not json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", w.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)
	if _, exists := response["error"]; !exists {
		t.Error("Expected error field in response")
	}
}

func TestInputValidation_HostileValues(t *testing.T) {
	repo := repository.NewMemoryHistoryStore()
	router := newValidationRouter(repo)

	hostileValues := []struct {
		name  string
		value string
	}{
		{"sql injection", "1.1.1.1'; DROP TABLE assessments;--"},
		{"xss payload", "<script>alert(1)</script>"},
		{"command injection", "evil.example; rm -rf /"},
		{"path traversal", "../../etc/passwd"},
		{"null byte", "evil\x00.example"},
		{"embedded space", "evil .example"},
		{"empty value", ""},
	}

	for _, tc := range hostileValues {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"value": tc.value})
			w := postQuery(router, body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for %q, got %d", tc.value, w.Code)
			}
		})
	}

	// Nothing hostile may reach the store
	iocs, err := repo.ListIOCs(context.Background())
	if err != nil {
		t.Fatalf("Failed to list IOCs: %v", err)
	}
	if len(iocs) != 0 {
		t.Errorf("Expected empty store after rejected input, found %d IOCs", len(iocs))
	}
}

func TestInputValidation_TypeMismatch(t *testing.T) {
	router := newValidationRouter(repository.NewMemoryHistoryStore())

	cases := []struct {
		name  string
		value string
		typ   string
	}{
		{"domain declared as ip", "example.com", "ip"},
		{"ip declared as domain", "198.51.100.7", "domain"},
		{"unknown type", "example.com", "url"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"value": tc.value, "type": tc.typ})
			w := postQuery(router, body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400 for value %q type %q, got %d", tc.value, tc.typ, w.Code)
			}
		})
	}
}

func TestInputValidation_NormalizesBeforeStoring(t *testing.T) {
	repo := repository.NewMemoryHistoryStore()
	router := newValidationRouter(repo)

	body, _ := json.Marshal(map[string]string{"value": "  EVIL.Example. ", "type": "domain"})
	w := postQuery(router, body)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for messy but valid domain, got %d (body: %s)", w.Code, w.Body.String())
	}

	var response map[string]interface{}
	json.NewDecoder(w.Body).Decode(&response)
	if response["ioc"] != "evil.example" {
		t.Errorf("Expected normalized ioc evil.example, got %v", response["ioc"])
	}

	iocs, err := repo.ListIOCs(context.Background())
	if err != nil {
		t.Fatalf("Failed to list IOCs: %v", err)
	}
	if len(iocs) != 1 || iocs[0].Value != "evil.example" {
		t.Errorf("Expected store to hold the normalized identity, got %v", iocs)
	}
}

func TestInputValidation_SummaryParameters(t *testing.T) {
	router := newValidationRouter(repository.NewMemoryHistoryStore())

	// Missing value parameter
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing value, got %d", w.Code)
	}

	// Hostile value parameter
	req = httptest.NewRequest("GET", "/api/v1/iocs/summary?value=..%2F..%2Fetc%2Fpasswd", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for traversal value, got %d", w.Code)
	}

	// Valid but never-assessed IOC
	req = httptest.NewRequest("GET", "/api/v1/iocs/summary?value=never-seen.example", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown IOC, got %d", w.Code)
	}
}
