package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantOrigin  string
		wantCredent string
	}{
		{"wildcard echoes origin", []string{"*"}, "http://a.test", http.MethodGet, http.StatusTeapot, "http://a.test", ""},
		{"explicit origin gets credentials", []string{"http://a.test"}, "http://a.test", http.MethodGet, http.StatusTeapot, "http://a.test", "true"},
		{"unlisted origin", []string{"http://a.test"}, "http://b.test", http.MethodGet, http.StatusTeapot, "", ""},
		{"no origin header", []string{"*"}, "", http.MethodGet, http.StatusTeapot, "", ""},
		{"preflight short-circuits", []string{"*"}, "http://a.test", http.MethodOptions, http.StatusNoContent, "http://a.test", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/analytics/user_alice", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredent {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCredent)
			}
		})
	}
}
