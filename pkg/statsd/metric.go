package statsd

import (
	"fmt"
	"sort"

	"github.com/goto/salt/log"
)

// Metric is a statsd metric being tagged. Every method accepts a nil
// receiver so that callers need no disabled-reporter checks.
type Metric struct {
	logger        log.Logger
	name          string
	rate          float64
	tags          map[string]string
	withInfluxTag bool
	publishFunc   func(name string, tags []string, rate float64) error
}

// Success tags the metric as successful.
func (m *Metric) Success() *Metric {
	return m.Tag("success", "true")
}

// Failure tags the metric as failure.
func (m *Metric) Failure(err error) *Metric {
	return m.Tag("success", "false")
}

func (m *Metric) Tag(key string, val string) *Metric {
	if m == nil {
		return nil
	}

	if m.tags == nil {
		m.tags = map[string]string{}
	}
	m.tags[key] = val
	return m
}

// Publish sends the metric in the background. Intended to be used with
// defer.
func (m *Metric) Publish() {
	if m == nil {
		return
	}

	name, tags := m.name, m.datadogTags()
	if m.withInfluxTag {
		name, tags = m.influxName(), nil
	}
	go func() {
		if err := m.publishFunc(name, tags, m.rate); err != nil {
			m.logger.Warn("failed to publish metric", "name", name, "err", err)
		}
	}()
}

func (m *Metric) keys() []string {
	keys := make([]string, 0, len(m.tags))
	for k := range m.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Metric) datadogTags() []string {
	tags := make([]string, 0, len(m.tags))
	for _, k := range m.keys() {
		tags = append(tags, fmt.Sprintf("%s:%s", k, m.tags[k]))
	}
	return tags
}

// influxName appends the tags to the name, sorted by key.
func (m *Metric) influxName() string {
	name := m.name
	for _, k := range m.keys() {
		name = fmt.Sprintf("%s,%s=%s", name, k, m.tags[k])
	}
	return name
}
