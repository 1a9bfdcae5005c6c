package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(origins []string) http.Handler {
	return CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS(t *testing.T) {
	cases := []struct {
		name    string
		origins []string
		origin  string
		allow   bool
	}{
		{"empty list allows all", nil, "https://app.oraclebet.io", true},
		{"wildcard entry allows all", []string{"*"}, "https://anywhere.io", true},
		{"listed origin", []string{"https://app.oraclebet.io"}, "https://app.oraclebet.io", true},
		{"case-insensitive match", []string{"https://App.OracleBet.io"}, "https://app.oraclebet.io", true},
		{"unlisted origin", []string{"https://app.oraclebet.io"}, "https://evil.io", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/markets", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			corsHandler(tc.origins).ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allow && got != tc.origin {
				t.Fatalf("allow-origin = %q, want echoed %q", got, tc.origin)
			}
			if !tc.allow && got != "" {
				t.Fatalf("allow-origin = %q for unlisted origin", got)
			}
			if rec.Header().Get("Vary") != "Origin" {
				t.Errorf("Vary = %q, want Origin", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/oracles", nil)
	req.Header.Set("Origin", "https://app.oraclebet.io")
	rec := httptest.NewRecorder()
	corsHandler([]string{"https://app.oraclebet.io"}).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if h := rec.Header().Get("Access-Control-Allow-Headers"); h != corsHeaders {
		t.Errorf("allow-headers = %q, want %q", h, corsHeaders)
	}
	if m := rec.Header().Get("Access-Control-Allow-Methods"); m != corsMethods {
		t.Errorf("allow-methods = %q, want %q", m, corsMethods)
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	corsHandler([]string{"https://app.oraclebet.io"}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q on same-origin request", got)
	}
}
