package monitoring

import (
	"encoding/json"
	"expvar"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Collector exports the expvar maps published by pkg/stats as prometheus
// metrics, one labelled series per map key.
type Collector struct {
	names  map[string]string
	helps  map[string]string
	logger *zerolog.Logger
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	// unchecked collector: the set of keys grows at runtime
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for k, name := range c.names {
		v := expvar.Get(k)
		if v == nil {
			continue
		}

		var values map[string]interface{}
		if err := json.Unmarshal([]byte(v.String()), &values); err != nil {
			c.logger.Error().Err(err).Str("var", k).Msg("could not decode expvar")
			continue
		}

		help := fmt.Sprintf("expvar %q", k)
		if h, ok := c.helps[k]; ok {
			help = h
		}
		desc := prometheus.NewDesc(name, help, []string{"metric"}, nil)

		for lk, lv := range values {
			f, ok := valToFloat(lv)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(desc, prometheus.UntypedValue, f, lk)
		}
	}
}

var (
	collectorOnce sync.Once
	collector     *Collector
)

// NewCollector registers the expvar bridge with the default registry. The
// collector is unchecked, so it is only ever registered once per process.
func NewCollector(logger *zerolog.Logger) *Collector {
	collectorOnce.Do(func() {
		collector = newCollector(logger)
	})
	return collector
}

func newCollector(logger *zerolog.Logger) *Collector {
	c := new(Collector)
	c.logger = logger
	c.names = map[string]string{
		"lightldap":          "lightldap_general",
		"lightldap_frontend": "lightldap_frontend",
		"lightldap_backend":  "lightldap_backend",
	}
	c.helps = map[string]string{
		"lightldap":          "General Metrics",
		"lightldap_frontend": "Frontend Metrics",
		"lightldap_backend":  "Backend Metrics",
	}

	if err := prometheus.Register(c); err != nil {
		logger.Debug().Err(err).Msg("expvar collector not registered")
	}

	return c
}

func valToFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1.0, true
		}
		return 0.0, true
	}
	return 0, false
}
