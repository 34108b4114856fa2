package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/viability"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultVariant   = viability.VariantGeneralized
	DefaultOutputDir = "results"
)

// Config is the top-level simulator configuration.
type Config struct {
	Sim SimConfig `yaml:"sim"`
}

// SimConfig holds the model defaults and the runs to execute.
type SimConfig struct {
	// Variant is the formula used by runs that do not name their own.
	Variant string `yaml:"variant"`

	// Params are the generalized-formula parameters used by runs that do not
	// override them.
	Params viability.Params `yaml:"params"`

	// OutputDir is where JSON and metrics reports are written.
	OutputDir string `yaml:"output_dir"`

	Scenarios []Scenario `yaml:"scenarios"`
	Schedules []Schedule `yaml:"schedules"`
	Sweeps    []Sweep    `yaml:"sweeps"`

	// Sensitivity combines two sweeps into one envelope report.
	Sensitivity SensitivityConfig `yaml:"sensitivity"`

	Agents AgentsConfig `yaml:"agents"`
}

// Scenario is a fixed list of inputs evaluated once each.
type Scenario struct {
	Name    string            `yaml:"name"`
	Variant string            `yaml:"variant"`
	Inputs  []viability.Input `yaml:"inputs"`
}

// Schedule is a step-schedule run.
type Schedule struct {
	Name    string `yaml:"name"`
	Variant string `yaml:"variant"`

	// Steps is the number of evaluations.
	Steps int `yaml:"steps"`

	// InitialE is the effectiveness for the first step.
	InitialE float64 `yaml:"initial_e"`

	// Base supplies A and R for the generalized formula.
	Base viability.Input `yaml:"base"`

	Mutations []Mutation `yaml:"mutations"`
}

// Mutation forces E to a new value after step AtStep.
type Mutation struct {
	AtStep int     `yaml:"at_step"`
	E      float64 `yaml:"e"`
}

// Sweep varies one field over an ordered list of values.
type Sweep struct {
	Name    string          `yaml:"name"`
	Field   string          `yaml:"field"`
	Values  []float64       `yaml:"values"`
	Base    viability.Input `yaml:"base"`
	Variant string          `yaml:"variant"`

	// Params replaces SimConfig.Params for this sweep when set. It is a
	// complete parameter set: omitted fields are zero.
	Params *viability.Params `yaml:"params"`
}

// SensitivityConfig names the m and E sweeps written as one envelope.
type SensitivityConfig struct {
	M           string `yaml:"m"`
	E           string `yaml:"e"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	File        string `yaml:"file"`
}

// Enabled reports whether both sweeps are named.
func (s SensitivityConfig) Enabled() bool { return s.M != "" && s.E != "" }

// AgentsConfig configures the decision stubs.
type AgentsConfig struct {
	// Disabled turns off stub consultation on schedule steps.
	Disabled bool `yaml:"disabled"`

	// KeyEnv is the name of the environment variable holding the API key.
	// Without it every decision is tagged as a mock.
	KeyEnv string `yaml:"key_env"`

	// EconomicInfluence is the economic stub's influence, also written into
	// simple-form records.
	EconomicInfluence float64 `yaml:"economic_influence"`
}

// Key returns the agent API key resolved from the environment.
func (a AgentsConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Advisors builds the decision stubs, or nil when disabled.
func (a AgentsConfig) Advisors() []agents.Advisor {
	if a.Disabled {
		return nil
	}
	return agents.Default(agents.Credentials{Key: a.Key()}, a.EconomicInfluence)
}

// Model returns the model for a run that names variant (empty means the
// SimConfig default) and optionally overrides the params.
func (c SimConfig) Model(variant string, override *viability.Params) (viability.Model, error) {
	if variant == "" {
		variant = c.Variant
	}
	v, err := viability.ParseVariant(variant)
	if err != nil {
		return viability.Model{}, err
	}
	if v == viability.VariantSimple {
		return viability.Simple(), nil
	}
	p := c.Params
	if override != nil {
		p = *override
	}
	return viability.Generalized(p), nil
}

// Runner converts s into the runner's schedule.
func (s Schedule) Runner() runner.Schedule {
	out := runner.Schedule{Steps: s.Steps, Initial: s.InitialE, Base: s.Base}
	for _, m := range s.Mutations {
		out.Mutations = append(out.Mutations, runner.Mutation{AtStep: m.AtStep, Effectiveness: m.E})
	}
	return out
}

// Runner converts s into the runner's sweep.
func (s Sweep) Runner() runner.Sweep {
	return runner.Sweep{Field: s.Field, Values: s.Values, Base: s.Base}
}

// Load reads and parses the YAML config file at path. The empty path yields
// the defaults with the built-in runs.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if len(cfg.Sim.Scenarios) == 0 && len(cfg.Sim.Schedules) == 0 && len(cfg.Sim.Sweeps) == 0 {
		builtins(&cfg.Sim)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// The built-in configuration always validates.
		panic(err)
	}
	return cfg
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Sim: SimConfig{
			Variant:   string(DefaultVariant),
			Params:    viability.DefaultParams(),
			OutputDir: DefaultOutputDir,
			Agents: AgentsConfig{
				EconomicInfluence: agents.DefaultInfluence,
			},
		},
	}
}

// builtins adds the stable and collapse schedules and the two sensitivity
// sweeps.
func builtins(s *SimConfig) {
	s.Schedules = []Schedule{
		{
			Name:      "stable",
			Variant:   string(viability.VariantSimple),
			Steps:     8,
			InitialE:  0.8,
			Mutations: []Mutation{{AtStep: 4, E: runner.DegradedEffectiveness}},
		},
		{
			Name:      "collapse",
			Variant:   string(viability.VariantSimple),
			Steps:     5,
			InitialE:  0.1,
			Mutations: []Mutation{{AtStep: 2, E: runner.DegradedEffectiveness}},
		},
	}
	s.Sweeps = []Sweep{
		{
			Name:    "sensitivity_m",
			Field:   runner.FieldM,
			Values:  []float64{1.0, 1.3, 1.5, 1.7, 2.0, 2.3, 2.5},
			Base:    viability.Input{A: 0.9, E: 0.1, R: 0.9},
			Variant: string(viability.VariantGeneralized),
		},
		{
			Name:    "sensitivity_E",
			Field:   runner.FieldE,
			Values:  []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
			Base:    viability.Input{A: 0.8, R: 0.6},
			Variant: string(viability.VariantGeneralized),
		},
	}
	s.Sensitivity = SensitivityConfig{
		M:           "sensitivity_m",
		E:           "sensitivity_E",
		Description: "Sensitivity of V to the human-priority exponent m and to human effectiveness E",
		Author:      "sasi",
		File:        "sensitivity.json",
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	s := cfg.Sim
	if _, err := viability.ParseVariant(s.Variant); err != nil {
		return fmt.Errorf("sim.variant: %w", err)
	}
	if err := s.Params.Validate(); err != nil {
		return fmt.Errorf("sim.params: %w", err)
	}
	if s.OutputDir == "" {
		return fmt.Errorf("sim.output_dir is required")
	}
	if s.Agents.EconomicInfluence < 0 || s.Agents.EconomicInfluence > 1 {
		return fmt.Errorf("sim.agents.economic_influence must be in [0, 1], got %g", s.Agents.EconomicInfluence)
	}

	names := map[string]bool{}
	unique := func(kind string, i int, name string) error {
		if name == "" {
			return fmt.Errorf("%s[%d]: name is required", kind, i)
		}
		if names[name] {
			return fmt.Errorf("%s[%d]: duplicate run name %q", kind, i, name)
		}
		names[name] = true
		return nil
	}

	for i, sc := range s.Scenarios {
		if err := unique("scenarios", i, sc.Name); err != nil {
			return err
		}
		if _, err := viability.ParseVariant(sc.Variant); err != nil {
			return fmt.Errorf("scenarios[%d] %q: %w", i, sc.Name, err)
		}
		if len(sc.Inputs) == 0 {
			return fmt.Errorf("scenarios[%d] %q: inputs are required", i, sc.Name)
		}
	}

	for i, sc := range s.Schedules {
		if err := unique("schedules", i, sc.Name); err != nil {
			return err
		}
		if _, err := viability.ParseVariant(sc.Variant); err != nil {
			return fmt.Errorf("schedules[%d] %q: %w", i, sc.Name, err)
		}
		if sc.Steps <= 0 {
			return fmt.Errorf("schedules[%d] %q: steps must be positive", i, sc.Name)
		}
		if err := sc.Runner().Validate(); err != nil {
			return fmt.Errorf("schedules[%d] %q: %w", i, sc.Name, err)
		}
	}

	for i, sw := range s.Sweeps {
		if err := unique("sweeps", i, sw.Name); err != nil {
			return err
		}
		if _, err := viability.ParseVariant(sw.Variant); err != nil {
			return fmt.Errorf("sweeps[%d] %q: %w", i, sw.Name, err)
		}
		if _, err := runner.ParseField(sw.Field); err != nil {
			return fmt.Errorf("sweeps[%d] %q: %w", i, sw.Name, err)
		}
		if len(sw.Values) == 0 {
			return fmt.Errorf("sweeps[%d] %q: values are required", i, sw.Name)
		}
		if sw.Params != nil {
			if err := sw.Params.Validate(); err != nil {
				return fmt.Errorf("sweeps[%d] %q: %w", i, sw.Name, err)
			}
		}
	}

	if s.Sensitivity.M != "" || s.Sensitivity.E != "" {
		if !s.Sensitivity.Enabled() {
			return fmt.Errorf("sim.sensitivity: both m and e sweeps must be named")
		}
		for _, n := range []string{s.Sensitivity.M, s.Sensitivity.E} {
			if _, ok := s.FindSweep(n); !ok {
				return fmt.Errorf("sim.sensitivity: unknown sweep %q", n)
			}
		}
	}
	return nil
}

// FindSweep returns the sweep named name.
func (c SimConfig) FindSweep(name string) (Sweep, bool) {
	for _, sw := range c.Sweeps {
		if sw.Name == name {
			return sw, true
		}
	}
	return Sweep{}, false
}

// FileName returns the envelope file name, defaulting to sensitivity.json.
func (s SensitivityConfig) FileName() string {
	if s.File == "" {
		return "sensitivity.json"
	}
	return s.File
}
