package config

import (
	"fmt"
	"iter"
	"slices"
)

// Anomaly describes a configuration field that has been replaced by a fallback.
type Anomaly struct {
	Field    string
	Reason   string
	Actual   any
	Fallback any
}

func (a *Anomaly) String() string {
	return fmt.Sprintf("%s %s (actual: %v, fallback: %v)", a.Field, a.Reason, a.Actual, a.Fallback)
}

// AnomalyCollector is an utility struct for collecting anomalies.
type AnomalyCollector struct {
	parent *AnomalyCollector
	prefix string

	anomalies []*Anomaly
}

// NewAnomalyCollector returns an empty anomaly collector.
func NewAnomalyCollector() *AnomalyCollector {
	return &AnomalyCollector{
		anomalies: []*Anomaly{},
	}
}

// Nested returns a collector that prefixes the field names with the given
// prefix and shares the anomalies with the parent collector.
func (ac *AnomalyCollector) Nested(prefix string) *AnomalyCollector {
	return &AnomalyCollector{
		parent: ac,
		prefix: ac.prefix + prefix + ".",
	}
}

func (ac *AnomalyCollector) root() *AnomalyCollector {
	curr := ac
	for curr.parent != nil {
		curr = curr.parent
	}
	return curr
}

func (ac *AnomalyCollector) add(field, reason string, actual, fallback any) {
	root := ac.root()
	root.anomalies = append(root.anomalies, &Anomaly{
		Field:    ac.prefix + field,
		Reason:   reason,
		Actual:   actual,
		Fallback: fallback,
	})
}

// Len returns the number of collected anomalies.
func (ac *AnomalyCollector) Len() int {
	return len(ac.root().anomalies)
}

// Iter iterates over the collected anomalies.
func (ac *AnomalyCollector) Iter() iter.Seq[*Anomaly] {
	return slices.Values(ac.root().anomalies)
}
