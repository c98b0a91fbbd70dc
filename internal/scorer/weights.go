// Package scorer holds the deterministic classifiers of the intel pipeline:
// the listed-company detector and the address disambiguator. Both are pure
// functions of their input text, which keeps them reproducible and cheap to
// test against literal Japanese fixtures.
package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ListedWeights are the point values of the listed-company classifier. The
// defaults are tuned against real Japanese corporate sites; override them from
// a YAML file only when recalibrating against a labeled sample.
type ListedWeights struct {
	StockCode     int `yaml:"stock_code"`
	MarketMention int `yaml:"market_mention"`
	IRIndicator   int `yaml:"ir_indicator"`
	Disclosure    int `yaml:"disclosure"`
	LargeCapital  int `yaml:"large_capital"`
	ManyEmployees int `yaml:"many_employees"`

	HighThreshold   int `yaml:"high_threshold"`
	MediumThreshold int `yaml:"medium_threshold"`
	LowThreshold    int `yaml:"low_threshold"`
}

// DefaultListedWeights returns the production point values.
func DefaultListedWeights() ListedWeights {
	return ListedWeights{
		StockCode:     50,
		MarketMention: 30,
		IRIndicator:   40,
		Disclosure:    15,
		LargeCapital:  10,
		ManyEmployees: 5,

		HighThreshold:   70,
		MediumThreshold: 40,
		LowThreshold:    20,
	}
}

// LoadListedWeights reads weight overrides from a YAML file. Fields absent
// from the file keep their defaults.
func LoadListedWeights(path string) (ListedWeights, error) {
	w := DefaultListedWeights()
	data, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrapf(err, "scorer: read weights file %s", path)
	}
	if err := yaml.Unmarshal(data, &w); err != nil {
		return w, eris.Wrapf(err, "scorer: parse weights file %s", path)
	}
	return w, nil
}
