package monitoring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

//go:generate mockgen -build_flags=--mod=mod -package monitoring -destination ./mock_interfaces.go -source=./interfaces.go

func TestNewLDAPMonitorWatcherRunsOnASchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockMonitor := NewMockMonitorInterface(ctrl)
	mockLDAPServer := NewMockLDAPServerInterface(ctrl)

	stats := LDAPStats{Conns: 3, Binds: 2, Unbinds: 1, Searches: 5, Whoamis: 4}

	mockLDAPServer.EXPECT().SetStats(true).Times(1)
	mockLDAPServer.EXPECT().GetStats().MinTimes(1).Return(stats)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "conns"}, float64(3)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "binds"}, float64(2)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "unbinds"}, float64(1)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "searches"}, float64(5)).MinTimes(1)
	mockMonitor.EXPECT().SetLDAPMetric(map[string]string{"type": "whoamis"}, float64(4)).MinTimes(1)

	logger := zerolog.Nop()
	m := newLDAPMonitorWatcher(mockLDAPServer, mockMonitor, &logger, 5*time.Microsecond)

	// allow goroutine to start and ticker to tick
	time.Sleep(10 * time.Millisecond)
	m.Stop()
}
