// Package config contains the utilities for validating the configurations
// of the roles and of their components.
package config

// Config defines the minimal interface for a configuration
// in order to be validated.
type Config interface {
	// Validate checks the configuration and replaces the invalid
	// values with their fallbacks, collecting the anomalies.
	Validate(ac *AnomalyCollector)
}
