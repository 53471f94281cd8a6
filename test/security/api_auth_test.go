package security

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
)

// Mirrors the auth middleware wired in cmd/spyglass-api: health stays open,
// everything else compares X-API-Key against API_KEY, and an unset key means
// development mode with auth disabled.
func apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		expectedKey := os.Getenv("API_KEY")

		if expectedKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		if apiKey != expectedKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func protectedRouter() *mux.Router {
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/health", ok).Methods("GET")
	router.HandleFunc("/api/v1/iocs/summary", ok).Methods("GET")
	router.HandleFunc("/metrics", ok).Methods("GET")
	router.Use(apiKeyMiddleware)
	return router
}

func TestAPIAuth_DevModeWhenKeyUnset(t *testing.T) {
	os.Unsetenv("API_KEY")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary?value=example.com", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 in dev mode (no API_KEY configured), got %d", w.Code)
	}
}

func TestAPIAuth_MissingHeader(t *testing.T) {
	t.Setenv("API_KEY", "super-secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary?value=example.com", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without X-API-Key header, got %d", w.Code)
	}
}

func TestAPIAuth_WrongKey(t *testing.T) {
	t.Setenv("API_KEY", "super-secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary?value=example.com", nil)
	req.Header.Set("X-API-Key", "not-the-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}
}

func TestAPIAuth_MatchingKey(t *testing.T) {
	t.Setenv("API_KEY", "super-secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary?value=example.com", nil)
	req.Header.Set("X-API-Key", "super-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with matching key, got %d", w.Code)
	}
}

func TestAPIAuth_HealthCheckExempt(t *testing.T) {
	t.Setenv("API_KEY", "super-secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected health check to bypass auth, got %d", w.Code)
	}
}

func TestAPIAuth_MetricsRequireKey(t *testing.T) {
	t.Setenv("API_KEY", "super-secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for /metrics without key, got %d", w.Code)
	}
}

func TestAPIAuth_KeyComparisonIsCaseSensitive(t *testing.T) {
	t.Setenv("API_KEY", "Super-Secret")

	router := protectedRouter()
	req := httptest.NewRequest("GET", "/api/v1/iocs/summary?value=example.com", nil)
	req.Header.Set("X-API-Key", "super-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for case-mismatched key, got %d", w.Code)
	}
}
