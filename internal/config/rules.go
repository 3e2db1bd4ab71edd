package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// StatusPriority ranks a building mission status; lower sorts first
type StatusPriority struct {
	Status   string `mapstructure:"status"`
	Priority int    `mapstructure:"priority"`
}

// AlertRules holds the differential alert thresholds and ranking table
type AlertRules struct {
	QminThreshold    float64          `mapstructure:"qminThreshold"`
	IndexThreshold   float64          `mapstructure:"indexThreshold"`
	ColorThreshold   float64          `mapstructure:"colorThreshold"`
	ExcludedStatus   string           `mapstructure:"excludedStatus"`
	UnknownPriority  int              `mapstructure:"unknownPriority"`
	StatusPriorities []StatusPriority `mapstructure:"statusPriorities"`
}

// DefaultAlertRules returns the rules used when no rules file is configured
func DefaultAlertRules() AlertRules {
	return AlertRules{
		QminThreshold:   50,
		IndexThreshold:  50,
		ColorThreshold:  50,
		ExcludedStatus:  "Refus / Abandon / Suspendu",
		UnknownPriority: 999,
		StatusPriorities: []StatusPriority{
			{Status: "En cours", Priority: 1},
			{Status: "À l'étude", Priority: 2},
			{Status: "Suivi M+0", Priority: 3},
			{Status: "Suivi M+6", Priority: 3},
			{Status: "Suivi M+12", Priority: 3},
			{Status: "Clos", Priority: 4},
			{Status: "Clos sans IC", Priority: 4},
		},
	}
}

// PriorityMap indexes the priority table by status
func (r AlertRules) PriorityMap() map[string]int {
	out := make(map[string]int, len(r.StatusPriorities))
	for _, p := range r.StatusPriorities {
		out[p.Status] = p.Priority
	}
	return out
}

// LoadAlertRules reads the alerts section of a YAML rules file. Keys absent
// from the file keep their defaults; an empty path returns the defaults.
func LoadAlertRules(path string) (AlertRules, error) {
	defaults := DefaultAlertRules()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return AlertRules{}, fmt.Errorf("failed to read alert rules file %s: %w", path, err)
	}

	// Decode over the defaults so absent keys keep them. The priority list is
	// replaced as a whole, never merged.
	rules := defaults
	rules.StatusPriorities = nil
	if err := v.UnmarshalKey("alerts", &rules); err != nil {
		return AlertRules{}, fmt.Errorf("failed to decode alert rules: %w", err)
	}
	if len(rules.StatusPriorities) == 0 {
		rules.StatusPriorities = defaults.StatusPriorities
	}

	return rules, nil
}
