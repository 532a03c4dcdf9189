package assets

import (
	"net/http"

	"github.com/rs/zerolog"
)

type API struct {
	fileServer http.Handler

	logger zerolog.Logger
}

func (a *API) RegisterEndpoints(router *http.ServeMux) {
	router.HandleFunc("/", a.index)
	router.Handle("/assets/", http.StripPrefix("/assets/", a.fileServer))
}

// index only answers for the root; everything else under / is a 404.
func (a *API) index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		a.logger.Debug().Str("path", r.URL.Path).Msg("Web 404")
		http.NotFound(w, r)
		return
	}

	a.logger.Debug().Str("path", r.URL.Path).Msg("Web")
	a.fileServer.ServeHTTP(w, r)
}

func NewAPI(logger zerolog.Logger) *API {
	a := new(API)

	a.logger = logger
	a.fileServer = http.FileServer(http.FS(Content))
	return a
}
