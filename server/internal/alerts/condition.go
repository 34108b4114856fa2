package alerts

import (
	"strconv"
	"strings"

	"github.com/sasilab/sasi/pkg/types"
)

// evalCondition evaluates a rule condition string against a run's final record.
//
// Supported expressions (field operator value):
//
//	v < 0.2
//	e <= 0.3
//	a > 0.9
//	r >= 0.8
//	m > 2
//	state == STRUCTURAL_COLLAPSE
//	state != STABLE
//
// Factors and parameters absent from the record (A, R, k, m, omega, p on
// simple-form records) never fire.
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, rec types.Record) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := strings.ToLower(parts[0]), parts[1], parts[2]

	if field == "state" {
		switch op {
		case "==":
			return strings.EqualFold(rec.State, rhs), rec.V
		case "!=":
			return !strings.EqualFold(rec.State, rhs), rec.V
		default:
			return false, 0
		}
	}

	v, ok := numericField(field, rec)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the record.
func numericField(field string, rec types.Record) (float64, bool) {
	switch field {
	case "v":
		return rec.V, true
	case "e":
		return rec.E, true
	case "a":
		return deref(rec.A)
	case "r":
		return deref(rec.R)
	case "k":
		return deref(rec.K)
	case "m":
		return deref(rec.M)
	case "omega":
		return deref(rec.Omega)
	case "p":
		return deref(rec.P)
	default:
		return 0, false
	}
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
