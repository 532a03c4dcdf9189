package monitoring

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Monitor struct {
	responseTime *prometheus.HistogramVec
	ldapMetric   *prometheus.GaugeVec

	logger *zerolog.Logger
}

func (m *Monitor) SetResponseTimeMetric(tags map[string]string, value float64) error {
	if m.responseTime == nil {
		return fmt.Errorf("metric not instantiated")
	}

	observer, err := m.responseTime.GetMetricWith(tags)
	if err != nil {
		return err
	}
	observer.Observe(value)

	return nil
}

func (m *Monitor) SetLDAPMetric(tags map[string]string, value float64) error {
	if m.ldapMetric == nil {
		return fmt.Errorf("metric not instantiated")
	}

	gauge, err := m.ldapMetric.GetMetricWith(tags)
	if err != nil {
		return err
	}
	gauge.Set(value)

	return nil
}

func (m *Monitor) constLabels() map[string]string {
	return map[string]string{
		"library": "github.com/lightldap/lightldap",
	}
}

// register adds c to the default registry. When an identical collector is
// already there (a second Monitor in the same process) the existing one is
// returned so both Monitors feed the same series.
func (m *Monitor) register(c prometheus.Collector) prometheus.Collector {
	err := prometheus.Register(c)

	var are prometheus.AlreadyRegisteredError
	switch {
	case err == nil:
		return c
	case errors.As(err, &are):
		m.logger.Debug().Interface("metric", c).Msg("metric already registered")
		return are.ExistingCollector
	default:
		m.logger.Error().Err(err).Interface("metric", c).Msg("metric could not be registered")
		return c
	}
}

func (m *Monitor) registerHistograms() {
	responseTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "lightldap_response_time_seconds",
			Help:        "Time spent answering one LDAP operation",
			ConstLabels: m.constLabels(),
		},
		[]string{"operation", "status"},
	)

	if h, ok := m.register(responseTime).(*prometheus.HistogramVec); ok {
		m.responseTime = h
	}
}

func (m *Monitor) registerGauges() {
	ldapMetric := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "lightldap_server_operations",
			Help:        "LDAP server counters sampled by the stats watcher",
			ConstLabels: m.constLabels(),
		},
		[]string{"type"},
	)

	if g, ok := m.register(ldapMetric).(*prometheus.GaugeVec); ok {
		m.ldapMetric = g
	}
}

func NewMonitor(logger *zerolog.Logger) *Monitor {
	m := new(Monitor)

	m.logger = logger

	m.registerHistograms()
	m.registerGauges()

	return m
}
