package model

import (
	"fmt"
	"math"
)

// DefaultReferenceFrame is the unit convention assumed when a dataset does not name one
const DefaultReferenceFrame = "wt%"

// SampleMetadata identifies the physical sample an analysis was taken from
type SampleMetadata struct {
	SampleID string `json:"sample_id" yaml:"sample_id"`
	RockName string `json:"rock_name,omitempty" yaml:"rock_name,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Comments string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// MineralAnalysis is one measured sample: a phase label and its oxide composition
type MineralAnalysis struct {
	Mineral     string             `json:"mineral" yaml:"mineral"`
	OxidesWtPct map[string]float64 `json:"oxides_wt_pct" yaml:"oxides_wt_pct"`
	Metadata    SampleMetadata     `json:"metadata" yaml:"metadata"`
}

// Validate checks the structural invariants of an analysis
func (a MineralAnalysis) Validate() error {
	if a.Mineral == "" {
		return fmt.Errorf("mineral label is empty")
	}
	if a.Metadata.SampleID == "" {
		return fmt.Errorf("sample id is empty")
	}
	for oxide, v := range a.OxidesWtPct {
		if oxide == "" {
			return fmt.Errorf("sample %s: empty oxide name", a.Metadata.SampleID)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("sample %s: oxide %s has invalid value %v", a.Metadata.SampleID, oxide, v)
		}
	}
	return nil
}

// ThermoDataset is an ordered set of analyses sharing one reference frame.
// Datasets are never mutated once built; transformations return a new value.
type ThermoDataset struct {
	Analyses       []MineralAnalysis `json:"analyses" yaml:"analyses"`
	ReferenceFrame string            `json:"reference" yaml:"reference"`
}

// NewDataset builds a dataset, defaulting the reference frame
func NewDataset(analyses []MineralAnalysis, referenceFrame string) ThermoDataset {
	if referenceFrame == "" {
		referenceFrame = DefaultReferenceFrame
	}
	return ThermoDataset{Analyses: analyses, ReferenceFrame: referenceFrame}
}

// Len returns the number of analyses
func (d ThermoDataset) Len() int {
	return len(d.Analyses)
}

// WithAnalyses returns a new dataset holding picked under the same reference frame
func (d ThermoDataset) WithAnalyses(picked []MineralAnalysis) ThermoDataset {
	return ThermoDataset{Analyses: picked, ReferenceFrame: d.ReferenceFrame}
}
