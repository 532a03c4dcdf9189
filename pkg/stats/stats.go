package stats

import (
	"encoding/json"
	"expvar"
)

// exposed expvar variables
var (
	Frontend = expvar.NewMap("lightldap_frontend")
	Backend  = expvar.NewMap("lightldap_backend")
	General  = expvar.NewMap("lightldap")
)

// Stringer publishes a fixed string through expvar.
type Stringer string

// String returns the JSON encoding expvar expects.
func (s Stringer) String() string {
	b, _ := json.Marshal(string(s))
	return string(b)
}
