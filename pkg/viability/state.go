package viability

import "fmt"

// State is the discrete system-state label derived from a score.
type State string

// State labels. WARNING is the middle tier of the simple form, FRAGILE the
// middle tier of the generalized form.
const (
	StateStable             State = "STABLE"
	StateWarning            State = "WARNING"
	StateFragile            State = "FRAGILE"
	StateStructuralCollapse State = "STRUCTURAL_COLLAPSE"
)

// Thresholds maps a score onto three tiers. A score must be strictly greater
// than a cut point to enter the tier above it.
type Thresholds struct {
	Stable     float64
	Lower      float64
	LowerState State
}

// Cut points for each formula variant.
var (
	SimpleThresholds      = Thresholds{Stable: 0.2, Lower: 0.1, LowerState: StateWarning}
	GeneralizedThresholds = Thresholds{Stable: 0.2, Lower: 0.05, LowerState: StateFragile}
)

// Classify maps score to a State, checking the most permissive tier first.
func Classify(score float64, th Thresholds) State {
	switch {
	case score > th.Stable:
		return StateStable
	case score > th.Lower:
		return th.LowerState
	default:
		return StateStructuralCollapse
	}
}

// Collapsed reports whether s is the lowest tier.
func (s State) Collapsed() bool {
	return s == StateStructuralCollapse
}

// DomainError reports a formula input outside the real domain, such as a
// negative base raised to a fractional exponent.
type DomainError struct {
	Factor   string
	Base     float64
	Exponent float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("viability: %s outside real domain: %g^%g", e.Factor, e.Base, e.Exponent)
}
