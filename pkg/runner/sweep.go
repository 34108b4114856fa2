package runner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sasilab/sasi/pkg/viability"
)

// Sweepable fields: the three input factors and the four parameters.
const (
	FieldA     = "A"
	FieldE     = "E"
	FieldR     = "R"
	FieldK     = "k"
	FieldM     = "m"
	FieldOmega = "omega"
	FieldP     = "p"
)

// Sweep holds Base and the Runner's parameters fixed and varies Field over
// Values, in the given order.
type Sweep struct {
	Field  string
	Values []float64
	Base   viability.Input
}

// ParseField normalises a sweep field name. Factors are upper case,
// parameters lower case.
func ParseField(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return FieldA, nil
	case "e":
		return FieldE, nil
	case "r":
		return FieldR, nil
	case "k":
		return FieldK, nil
	case "m":
		return FieldM, nil
	case "omega":
		return FieldOmega, nil
	case "p":
		return FieldP, nil
	default:
		return "", fmt.Errorf("runner: unknown sweep field %q: want A|E|R|k|m|omega|p", s)
	}
}

// probe returns the input and model for one sweep value.
func probe(field string, v float64, base viability.Input, m viability.Model) (viability.Input, viability.Model) {
	in := base
	switch field {
	case FieldA:
		in.A = v
	case FieldE:
		in.E = v
	case FieldR:
		in.R = v
	case FieldK:
		m.Params.K = v
	case FieldM:
		m.Params.M = v
	case FieldOmega:
		m.Params.Omega = v
	case FieldP:
		m.Params.P = v
	}
	return in, m
}

// RunSweep evaluates once per probe value and appends in probe order.
// Parameter sweeps record the probed parameters on each result's Model.
func (r *Runner) RunSweep(s Sweep) (History, error) {
	if len(r.history) > 0 || r.batch {
		return nil, ErrHistoryNotEmpty
	}
	field, err := ParseField(s.Field)
	if err != nil {
		return nil, err
	}
	if err := r.begin(); err != nil {
		return nil, err
	}

	for _, v := range s.Values {
		in, m := probe(field, v, s.Base, r.model)
		res, err := evaluate(in, m, r.now())
		if err != nil {
			slog.Warn("runner: sweep probe failed", "field", field, "value", v, "err", err)
			return r.History(), fmt.Errorf("runner: sweep %s=%g: %w", field, v, err)
		}
		res.Probe = &Probe{Field: field, Value: v}
		r.appendResult(res)
	}
	return r.History(), nil
}
