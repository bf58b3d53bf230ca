package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kiranshivaraju/noisegate/internal/analysis"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/internal/grouping"
	"gopkg.in/yaml.v3"
)

// NoiseRules is the on-disk form of the noise filter.
//
//	replace_defaults: false
//	log:
//	  - "liveness probe"
//	alert:
//	  - "^Watchdog$"
type NoiseRules struct {
	ReplaceDefaults bool     `yaml:"replace_defaults"`
	Log             []string `yaml:"log"`
	Alert           []string `yaml:"alert"`
}

// LoadNoiseRules reads and parses a noise rules YAML file.
func LoadNoiseRules(path string) (NoiseRules, error) {
	var rules NoiseRules
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read noise rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return rules, fmt.Errorf("parse noise rules %s: %w", path, err)
	}
	return rules, nil
}

// Filter compiles the rules, merged with the built-in defaults unless
// ReplaceDefaults is set.
func (r NoiseRules) Filter() (*analysis.NoiseFilter, error) {
	logPatterns, alertPatterns := r.Log, r.Alert
	if !r.ReplaceDefaults {
		logPatterns = append(append([]string{}, analysis.DefaultLogNoisePatterns...), r.Log...)
		alertPatterns = append(append([]string{}, analysis.DefaultAlertNoisePatterns...), r.Alert...)
	}
	return analysis.NewNoiseFilter(logPatterns, alertPatterns)
}

// Build converts the settings into an engine.Config, loading the noise
// rules file if one is configured.
func (c EngineConfig) Build(logger *slog.Logger) (engine.Config, error) {
	if err := c.Validate(); err != nil {
		return engine.Config{}, err
	}
	policy, _ := grouping.ParseLastSeenPolicy(c.LastSeenPolicy)

	noise := analysis.DefaultNoiseFilter()
	if c.NoiseRulesFile != "" {
		rules, err := LoadNoiseRules(c.NoiseRulesFile)
		if err != nil {
			return engine.Config{}, err
		}
		noise, err = rules.Filter()
		if err != nil {
			return engine.Config{}, fmt.Errorf("compile noise rules: %w", err)
		}
	}

	return engine.Config{
		AlertSuppressionWindow: c.AlertSuppressionWindow,
		LogSuppressionWindow:   c.LogSuppressionWindow,
		SignatureLength:        c.SignatureLength,
		Noise:                  noise,
		Logger:                 logger,
		Store: grouping.Options{
			SampleCap:          c.SampleCap,
			ActivityWindow:     c.ActivityWindow,
			ActionableMinCount: c.ActionableMinCount,
			MaxGroups:          c.MaxGroups,
			LastSeenPolicy:     policy,
		},
	}, nil
}
