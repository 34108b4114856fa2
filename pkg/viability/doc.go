// Package viability evaluates the closed-form viability score V and maps it to
// a discrete system state.
//
// Two formula variants share one Model type:
//
//	simple:      V(E)     = E / (1 + E)                      (E <= 0 yields 0)
//	generalized: V(A,E,R) = (A^k * E^m) / (1 + omega * R^p)  (denominator <= 0 yields 0)
//
// Evaluate is pure: no clock, no logging, no shared state. A negative base under
// a fractional exponent returns a *DomainError instead of a NaN score.
//
// State thresholds (strict > to enter the higher tier; ties fall low):
//
//	simple:      STABLE > 0.2, WARNING > 0.1, else STRUCTURAL_COLLAPSE
//	generalized: STABLE > 0.2, FRAGILE > 0.05, else STRUCTURAL_COLLAPSE
package viability
