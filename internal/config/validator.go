package config

import (
	"github.com/FerroO2000/shmring/internal"
)

// Validator is an utility struct for validating a configuration.
type Validator struct {
	tel *internal.Telemetry

	anomalyCollector *AnomalyCollector
}

// NewValidator returns a new validator.
func NewValidator(tel *internal.Telemetry) *Validator {
	return &Validator{
		tel: tel,

		anomalyCollector: NewAnomalyCollector(),
	}
}

// Validate validates the given configuration and logs every anomaly as a warning.
// It returns the number of anomalies found.
func (m *Validator) Validate(config Config) int {
	config.Validate(m.anomalyCollector)

	for anomaly := range m.anomalyCollector.Iter() {
		m.handleAnomaly(anomaly)
	}

	return m.anomalyCollector.Len()
}

func (m *Validator) handleAnomaly(an *Anomaly) {
	m.tel.LogWarn("config anomaly",
		"field", an.Field, "reason", an.Reason,
		"actual", an.Actual, "fallback", an.Fallback)
}
