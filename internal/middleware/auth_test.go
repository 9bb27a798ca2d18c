package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authServer(keys []string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return APIKeyAuth(keys)(ok)
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"bearer key", "/v1/analyze-threat", "Bearer secret-1", http.StatusOK},
		{"raw key", "/v1/analyze-threat", "secret-2", http.StatusOK},
		{"wrong key", "/v1/analyze-threat", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "/v1/analyze-threat", "", http.StatusUnauthorized},
		{"bearer with empty key", "/v1/analyze-threat", "Bearer ", http.StatusUnauthorized},
		{"health exempt", "/health", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
	}

	handler := authServer([]string{"secret-1", "secret-2"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
