package frontend

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/stats"
)

func TestAPI(t *testing.T) {
	stats.Frontend.Add("webapi_test", 1)

	router := NewRouter(
		Config(&config.API{Internals: true}),
		Status(func() ServerStatus {
			return ServerStatus{Version: "test", BaseDN: "dc=example,dc=com", Datastore: "config"}
		}),
	)
	srv := httptest.NewServer(router)
	defer srv.Close()

	tt := []struct {
		Name  string
		Path  string
		Check func(testing.TB, *http.Response)
	}{
		{
			Name: "Status",
			Path: "/status",
			Check: func(t testing.TB, res *http.Response) {
				if res.StatusCode != http.StatusOK {
					t.Fatalf("unexpected response: %v", res.Status)
				}
				var s ServerStatus
				if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
					t.Fatal(err)
				}
				if s.BaseDN != "dc=example,dc=com" || s.Datastore != "config" {
					t.Errorf("unexpected status %+v", s)
				}
			},
		},
		{
			Name: "Page",
			Path: "/",
			Check: func(t testing.TB, res *http.Response) {
				if res.StatusCode != http.StatusOK {
					t.Fatalf("unexpected response: %v", res.Status)
				}
				body, _ := io.ReadAll(res.Body)
				if !strings.Contains(string(body), "/assets/js/lightldap.js") {
					t.Errorf("status page does not load its script: %s", body)
				}
			},
		},
		{
			Name: "NotFound",
			Path: "/lightldap.js",
			Check: func(t testing.TB, res *http.Response) {
				if res.StatusCode != http.StatusNotFound {
					t.Errorf("unexpected response: %v", res.Status)
				}
			},
		},
		{
			Name: "Expvar",
			Path: "/debug/vars",
			Check: func(t testing.TB, res *http.Response) {
				body, _ := io.ReadAll(res.Body)
				if !strings.Contains(string(body), `"webapi_test": 1`) {
					t.Errorf("frontend counters missing from %s", body)
				}
			},
		},
		{
			Name: "Metrics",
			Path: "/metrics",
			Check: func(t testing.TB, res *http.Response) {
				if res.StatusCode != http.StatusOK {
					t.Errorf("unexpected response: %v", res.Status)
				}
			},
		},
		{
			Name: "Internals",
			Path: "/internals/",
			Check: func(t testing.TB, res *http.Response) {
				if res.StatusCode != http.StatusOK {
					t.Errorf("unexpected response: %v", res.Status)
				}
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			res, err := http.Get(srv.URL + tc.Path)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Body.Close()
			tc.Check(t, res)
		})
	}
}
