package monitoring

type MonitorInterface interface {
	SetResponseTimeMetric(map[string]string, float64) error
	SetLDAPMetric(map[string]string, float64) error
}

type LDAPServerInterface interface {
	SetStats(bool)
	GetStats() LDAPStats
}

// LDAPStats is a snapshot of the server's operation counters.
type LDAPStats struct {
	Conns    int
	Binds    int
	Unbinds  int
	Searches int
	Whoamis  int
}
