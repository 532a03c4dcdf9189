package monitoring

import (
	"time"

	"github.com/rs/zerolog"
)

// LDAPMonitorWatcher periodically copies the LDAP server counters into the
// ldap gauge.
type LDAPMonitorWatcher struct {
	syncTicker *time.Ticker
	done       chan struct{}
	stopped    chan struct{}

	ldap LDAPServerInterface

	monitor MonitorInterface
	logger  *zerolog.Logger
}

func (m *LDAPMonitorWatcher) sync() {
	defer close(m.stopped)
	for {
		select {
		case tick := <-m.syncTicker.C:
			m.logger.Debug().Time("value", tick).Msg("Tick")
			m.storeMetrics()
		case <-m.done:
			return
		}
	}
}

func (m *LDAPMonitorWatcher) storeMetrics() {
	stats := m.ldap.GetStats()

	for name, value := range map[string]int{
		"conns":    stats.Conns,
		"binds":    stats.Binds,
		"unbinds":  stats.Unbinds,
		"searches": stats.Searches,
		"whoamis":  stats.Whoamis,
	} {
		if err := m.monitor.SetLDAPMetric(map[string]string{"type": name}, float64(value)); err != nil {
			m.logger.Error().Err(err).Str("type", name).Msg("failed to set metric")
		}
	}
}

// Stop ends the sampling goroutine and waits for it to return.
func (m *LDAPMonitorWatcher) Stop() {
	m.syncTicker.Stop()
	close(m.done)
	<-m.stopped
}

func NewLDAPMonitorWatcher(ldap LDAPServerInterface, monitor MonitorInterface, logger *zerolog.Logger) *LDAPMonitorWatcher {
	return newLDAPMonitorWatcher(ldap, monitor, logger, 15*time.Second)
}

func newLDAPMonitorWatcher(ldap LDAPServerInterface, monitor MonitorInterface, logger *zerolog.Logger, interval time.Duration) *LDAPMonitorWatcher {
	m := new(LDAPMonitorWatcher)

	m.syncTicker = time.NewTicker(interval)
	m.done = make(chan struct{})
	m.stopped = make(chan struct{})
	m.ldap = ldap
	m.monitor = monitor
	m.logger = logger

	m.ldap.SetStats(true)

	go m.sync()

	return m
}
