package report

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/incomegap/internal/cleaning"
)

// Manifest describes one pipeline run; it is written to
// data/processed/run.yaml next to the cleaned data.
type Manifest struct {
	RunID      string         `yaml:"run_id"`
	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at"`
	Source     string         `yaml:"source"`
	Year       int            `yaml:"year"`
	Limit      int            `yaml:"limit"`
	Cleaning   cleaning.Stats `yaml:"cleaning"`
	Regression struct {
		NObs     int     `yaml:"n_obs"`
		RSquared float64 `yaml:"r_squared"`
		IsFemale float64 `yaml:"is_female_coef"`
		Dropped  int     `yaml:"dropped_rows"`
		CovType  string  `yaml:"cov_type"`
	} `yaml:"regression"`
	Outputs []string `yaml:"outputs"`
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return b, nil
}

// ReadManifest decodes a manifest written by Marshal.
func ReadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
