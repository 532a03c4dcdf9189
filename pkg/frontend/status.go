package frontend

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// StatusFunc reports what the running server is serving.
type StatusFunc func() ServerStatus

type ServerStatus struct {
	Version   string `json:"version"`
	BaseDN    string `json:"basedn"`
	Datastore string `json:"datastore"`
	LDAP      string `json:"ldap,omitempty"`
	LDAPS     string `json:"ldaps,omitempty"`
}

type statusAPI struct {
	report StatusFunc
	logger zerolog.Logger
}

func (a *statusAPI) RegisterEndpoints(router *http.ServeMux) {
	router.HandleFunc("/status", a.status)
}

func (a *statusAPI) status(w http.ResponseWriter, r *http.Request) {
	var s ServerStatus
	if a.report != nil {
		s = a.report()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		a.logger.Error().Err(err).Msg("could not write status")
	}
}
