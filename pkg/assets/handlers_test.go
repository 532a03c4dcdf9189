package assets

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestStatusPage(t *testing.T) {
	mux := http.NewServeMux()
	NewAPI(zerolog.Nop()).RegisterEndpoints(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		name        string
		path        string
		status      int
		contentType string
		contains    []string
	}{
		{
			name:        "index loads the status script",
			path:        "/",
			status:      http.StatusOK,
			contentType: "text/html; charset=utf-8",
			contains:    []string{`src="/assets/js/lightldap.js"`, `href="/assets/css/lightldap.css"`, `data-field="basedn"`},
		},
		{
			name:        "script renders /status",
			path:        "/assets/js/lightldap.js",
			status:      http.StatusOK,
			contentType: "text/javascript; charset=utf-8",
			contains:    []string{`fetch("/status")`, "data-field"},
		},
		{
			name:        "stylesheet",
			path:        "/assets/css/lightldap.css",
			status:      http.StatusOK,
			contentType: "text/css; charset=utf-8",
		},
		{name: "files are only served under /assets", path: "/index.html", status: http.StatusNotFound},
		{name: "unknown page", path: "/users", status: http.StatusNotFound},
		{name: "unknown asset", path: "/assets/js/missing.js", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()

			if res.StatusCode != tt.status {
				t.Fatalf("status = %s, want %d", res.Status, tt.status)
			}
			if tt.contentType != "" {
				if got := res.Header.Get("Content-Type"); got != tt.contentType {
					t.Errorf("content type = %q, want %q", got, tt.contentType)
				}
			}

			body, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(string(body), want) {
					t.Errorf("body does not contain %q", want)
				}
			}
		})
	}
}
