package revcalc

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultScenariosYAML []byte

// Target is a slider target. In YAML it may be written as an integer or as
// a numeric string.
type Target int

// UnmarshalYAML accepts both `820` and `"820"`.
func (t *Target) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: slider target must be a scalar", node.Line)
	}
	v, err := ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = Target(v)
	return nil
}

// Int returns the target as an int.
func (t Target) Int() int {
	return int(t)
}

// String implements fmt.Stringer.
func (t Target) String() string {
	return strconv.Itoa(int(t))
}

// Scenario is one row of the journey table: the inputs fed to the
// calculator and the total they must produce.
type Scenario struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description,omitempty" json:"description,omitempty"`
	URL           string   `yaml:"url" json:"url"`
	SliderTarget  Target   `yaml:"slider_target" json:"slider_target"`
	FillValue     string   `yaml:"fill_value" json:"fill_value"`
	CPTCodes      []string `yaml:"cpt_codes" json:"cpt_codes"`
	ExpectedTotal string   `yaml:"expected_total" json:"expected_total"`
}

// Validate checks that a scenario has everything the journey needs.
// CPT codes are not checked against any list; an unknown code fails when
// the page cannot find its checkbox.
func (s Scenario) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	case s.URL == "":
		return fmt.Errorf("%w: %s: missing url", ErrInvalidScenario, s.Name)
	case s.FillValue == "":
		return fmt.Errorf("%w: %s: missing fill_value", ErrInvalidScenario, s.Name)
	case s.ExpectedTotal == "":
		return fmt.Errorf("%w: %s: missing expected_total", ErrInvalidScenario, s.Name)
	}
	return nil
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios decodes a scenario table. Unknown fields and duplicate
// names are rejected.
func LoadScenarios(r io.Reader) ([]Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f scenarioFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: table is empty", ErrInvalidScenario)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for _, s := range f.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, s.Name)
		}
		seen[s.Name] = true
	}
	return f.Scenarios, nil
}

// DefaultScenarios returns the built-in scenario table.
func DefaultScenarios() []Scenario {
	scenarios, err := LoadScenarios(bytes.NewReader(defaultScenariosYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in scenarios: %v", err))
	}
	return scenarios
}

// DefaultScenarioName is the row run when no scenario is selected.
const DefaultScenarioName = "fitpeo"

// FindScenario returns the scenario called name.
func FindScenario(scenarios []Scenario, name string) (Scenario, error) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}
