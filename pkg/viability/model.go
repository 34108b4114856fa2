package viability

import (
	"fmt"
	"math"
	"strings"
)

// Variant selects which formula a Model evaluates.
type Variant string

const (
	VariantSimple      Variant = "simple"
	VariantGeneralized Variant = "generalized"
)

// ParseVariant converts a config or request string into a Variant.
// The empty string selects the generalized form.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case VariantSimple:
		return VariantSimple, nil
	case VariantGeneralized, "":
		return VariantGeneralized, nil
	default:
		return "", fmt.Errorf("viability: unknown variant %q: want simple|generalized", s)
	}
}

// Default exponents and coefficient for the generalized formula.
const (
	DefaultK     = 1.0
	DefaultM     = 2.0
	DefaultOmega = 0.8
	DefaultP     = 3.0
)

// Params holds the tunable exponents and coefficient of the generalized
// formula. The simple formula ignores them.
type Params struct {
	// K is the exponent applied to productivity A.
	K float64 `json:"k" yaml:"k"`

	// M is the exponent applied to human effectiveness E. Larger values make
	// V fall faster as E drops below 1.
	M float64 `json:"m" yaml:"m"`

	// Omega weights the raw-performance penalty in the denominator.
	Omega float64 `json:"omega" yaml:"omega"`

	// P is the exponent applied to raw performance R.
	P float64 `json:"p" yaml:"p"`
}

// DefaultParams returns k=1, m=2, omega=0.8, p=3.
func DefaultParams() Params {
	return Params{K: DefaultK, M: DefaultM, Omega: DefaultOmega, P: DefaultP}
}

// Validate reports negative or non-finite parameters. Zero is allowed and
// flattens the corresponding term.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"k", p.K}, {"m", p.M}, {"omega", p.Omega}, {"p", p.P}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("viability: param %s must be finite", f.name)
		}
		if f.v < 0 {
			return fmt.Errorf("viability: param %s must not be negative, got %g", f.name, f.v)
		}
	}
	return nil
}

// Input is one observation. Values are expected in [0, 1] but are not clamped
// here; use Clamp01 when a factor is set from outside.
type Input struct {
	// A is productivity. Ignored by the simple formula.
	A float64 `json:"A" yaml:"A"`

	// E is human effectiveness, the only factor of the simple formula.
	E float64 `json:"E" yaml:"E"`

	// R is raw performance / optimisation pressure. Ignored by the simple formula.
	R float64 `json:"R" yaml:"R"`
}

// Model is a formula variant together with its parameters.
type Model struct {
	Variant Variant
	Params  Params
}

// Simple returns the E-only model.
func Simple() Model {
	return Model{Variant: VariantSimple}
}

// Generalized returns the A,E,R model with the given parameters.
func Generalized(p Params) Model {
	return Model{Variant: VariantGeneralized, Params: p}
}

// Thresholds returns the state cut points that belong to the model's variant.
func (m Model) Thresholds() Thresholds {
	if m.Variant == VariantSimple {
		return SimpleThresholds
	}
	return GeneralizedThresholds
}

// Output is the result of one evaluation.
type Output struct {
	// Score is the viability V. Always finite when err is nil.
	Score float64

	// State is Score classified with the model's thresholds.
	State State

	// Numerator and Denominator of the formula, for traces. For the simple
	// form these are E and 1+E.
	Numerator   float64
	Denominator float64
}

// Evaluate computes V for in under m and classifies it.
//
// The simple form returns 0 for E <= 0. The generalized form fails closed to
// 0 when the denominator is not positive. A NaN factor, a negative base
// raised to a fractional exponent, an infinite E in the simple form, or a
// quotient that overflows yields a *DomainError.
func Evaluate(in Input, m Model) (Output, error) {
	switch m.Variant {
	case VariantSimple:
		return evaluateSimple(in)
	case VariantGeneralized:
		return evaluateGeneralized(in, m.Params)
	default:
		return Output{}, fmt.Errorf("viability: unknown variant %q", m.Variant)
	}
}

func evaluateSimple(in Input) (Output, error) {
	e := in.E
	if math.IsNaN(e) || math.IsInf(e, 1) {
		return Output{}, &DomainError{Factor: "E", Base: e, Exponent: 1}
	}
	if e <= 0 {
		return Output{Score: 0, State: Classify(0, SimpleThresholds), Denominator: 1}, nil
	}
	v := e / (1 + e)
	return Output{
		Score:       v,
		State:       Classify(v, SimpleThresholds),
		Numerator:   e,
		Denominator: 1 + e,
	}, nil
}

func evaluateGeneralized(in Input, p Params) (Output, error) {
	a, err := power("A", in.A, p.K)
	if err != nil {
		return Output{}, err
	}
	e, err := power("E", in.E, p.M)
	if err != nil {
		return Output{}, err
	}
	r, err := power("R", in.R, p.P)
	if err != nil {
		return Output{}, err
	}

	num := a * e
	den := 1 + p.Omega*r

	// Fail closed: a non-positive (or NaN) denominator degrades to zero.
	if !(den > 0) {
		return Output{Score: 0, State: Classify(0, GeneralizedThresholds), Numerator: num, Denominator: den}, nil
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return Output{}, &DomainError{Factor: "A^k*E^m", Base: num, Exponent: 1}
	}

	v := num / den
	if math.IsInf(v, 0) {
		return Output{}, &DomainError{Factor: "V", Base: num, Exponent: 1}
	}
	return Output{
		Score:       v,
		State:       Classify(v, GeneralizedThresholds),
		Numerator:   num,
		Denominator: den,
	}, nil
}

// power returns base^exp, reporting a DomainError when the result is not a
// real number.
func power(factor string, base, exp float64) (float64, error) {
	if math.IsNaN(base) || math.IsNaN(exp) {
		return 0, &DomainError{Factor: factor, Base: base, Exponent: exp}
	}
	v := math.Pow(base, exp)
	if math.IsNaN(v) {
		return 0, &DomainError{Factor: factor, Base: base, Exponent: exp}
	}
	return v, nil
}

// Clamp01 restricts v to the range [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Round rounds v to places decimal places, halves away from zero.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
