package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testConfig struct {
	Name     string
	Delay    time.Duration
	MaxDelay time.Duration
	Kind     string
	Nested   *testNestedConfig
}

type testNestedConfig struct {
	Count int
}

func (c *testNestedConfig) Validate(ac *AnomalyCollector) {
	CheckPositive(ac, "Count", &c.Count, 3)
}

func (c *testConfig) Validate(ac *AnomalyCollector) {
	CheckNotEmpty(ac, "Name", &c.Name, "default")
	CheckMaxLen(ac, "Name", &c.Name, 8)
	CheckNotNegative(ac, "Delay", &c.Delay, time.Second)
	CheckNotGreaterThan(ac, "Delay", "MaxDelay", &c.Delay, c.MaxDelay)
	CheckOneOf(ac, "Kind", &c.Kind, "a", "a", "b")
	c.Nested.Validate(ac.Nested("Nested"))
}

func Test_Validate(t *testing.T) {
	assert := assert.New(t)

	cfg := &testConfig{
		Name:     "a-very-long-name",
		Delay:    5 * time.Second,
		MaxDelay: 2 * time.Second,
		Kind:     "c",
		Nested:   &testNestedConfig{Count: -1},
	}

	ac := NewAnomalyCollector()
	cfg.Validate(ac)

	assert.Equal("a-very-l", cfg.Name)
	assert.Equal(2*time.Second, cfg.Delay)
	assert.Equal("a", cfg.Kind)
	assert.Equal(3, cfg.Nested.Count)

	fields := []string{}
	for an := range ac.Iter() {
		fields = append(fields, an.Field)
	}
	assert.Equal([]string{"Name", "Delay", "Kind", "Nested.Count"}, fields)
}

func Test_ValidateNoAnomalies(t *testing.T) {
	assert := assert.New(t)

	cfg := &testConfig{
		Name:     "ok",
		Delay:    time.Second,
		MaxDelay: 2 * time.Second,
		Kind:     "b",
		Nested:   &testNestedConfig{Count: 1},
	}

	ac := NewAnomalyCollector()
	cfg.Validate(ac)

	assert.Zero(ac.Len())
}

func Test_CheckNotNegativeAndZero(t *testing.T) {
	assert := assert.New(t)

	ac := NewAnomalyCollector()

	neg := -5
	CheckNotNegative(ac, "neg", &neg, 10)
	assert.Equal(10, neg)

	zero := 0.0
	CheckNotZero(ac, "zero", &zero, 0.5)
	assert.Equal(0.5, zero)

	assert.Equal(2, ac.Len())
}
