package api

import (
	"time"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/viability"
	"github.com/sasilab/sasi/server/internal/store"
)

// Run modes accepted by POST /api/v1/runs.
const (
	ModeFixed    = store.KindFixed
	ModeSchedule = store.KindSchedule
	ModeSweep    = store.KindSweep
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is the final state of the newest run, or "unknown".
	State         string `json:"state"`
	RunCount      int    `json:"run_count"`
	StableCount   int    `json:"stable_count"`
	WarningCount  int    `json:"warning_count"`
	FragileCount  int    `json:"fragile_count"`
	CollapseCount int    `json:"collapse_count"`
	AlertCount    int    `json:"alert_count"`
	Archive       bool   `json:"archive"`
}

// ParamsRequest overrides individual generalized parameters. Omitted fields
// keep their defaults.
type ParamsRequest struct {
	K     *float64 `json:"k,omitempty"`
	M     *float64 `json:"m,omitempty"`
	Omega *float64 `json:"omega,omitempty"`
	P     *float64 `json:"p,omitempty"`
}

func (p *ParamsRequest) apply(base viability.Params) viability.Params {
	if p == nil {
		return base
	}
	for _, f := range []struct {
		src *float64
		dst *float64
	}{{p.K, &base.K}, {p.M, &base.M}, {p.Omega, &base.Omega}, {p.P, &base.P}} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return base
}

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	Variant string         `json:"variant,omitempty"`
	Params  *ParamsRequest `json:"params,omitempty"`
	viability.Input
}

// EvaluateResponse is the payload for POST /api/v1/evaluate.
type EvaluateResponse struct {
	Variant            string           `json:"variant"`
	Params             viability.Params `json:"params"`
	V                  float64          `json:"V"`
	State              string           `json:"state"`
	Numerator          float64          `json:"numerator"`
	Denominator        float64          `json:"denominator"`
	StructuralCollapse bool             `json:"structural_collapse"`
}

// RunRequest is the body of POST /api/v1/runs. Exactly one of Inputs,
// Schedule or Sweep is read, selected by Mode.
type RunRequest struct {
	Name    string         `json:"name,omitempty"`
	Mode    string         `json:"mode"`
	Variant string         `json:"variant,omitempty"`
	Params  *ParamsRequest `json:"params,omitempty"`

	Inputs   []viability.Input `json:"inputs,omitempty"`
	Schedule *ScheduleRequest  `json:"schedule,omitempty"`
	Sweep    *SweepRequest     `json:"sweep,omitempty"`

	// EconomicInfluence is copied into simple-form records and handed to the
	// economic advisor. Defaults to agents.DefaultInfluence.
	EconomicInfluence *float64 `json:"economic_influence,omitempty"`
}

// ScheduleRequest describes a step-schedule run.
type ScheduleRequest struct {
	Steps    int             `json:"steps"`
	InitialE float64         `json:"initial_e"`
	Base     viability.Input `json:"base"`

	// Mutations left out entirely get the default midpoint degradation; an
	// explicit empty list means none.
	Mutations []MutationRequest `json:"mutations"`

	// Agents enables the decision stubs on every step.
	Agents bool `json:"agents,omitempty"`
}

// MutationRequest forces E to a new value after step AtStep.
type MutationRequest struct {
	AtStep int     `json:"at_step"`
	E      float64 `json:"e"`
}

// SweepRequest describes a sweep run.
type SweepRequest struct {
	Field  string          `json:"field"`
	Values []float64       `json:"values"`
	Base   viability.Input `json:"base"`
}

// StepDecisions is the advisor output of one schedule step. It is returned
// only by the POST that created the run.
type StepDecisions struct {
	Step      int               `json:"step"`
	State     string            `json:"state"`
	Decisions []agents.Decision `json:"decisions"`
}

// RunResponse is one run in GET /api/v1/runs/{id} or the POST response.
type RunResponse struct {
	*store.Run
	Decisions   []StepDecisions  `json:"decisions,omitempty"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// RunSummary is one entry of GET /api/v1/runs.
type RunSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind"`
	Probe     string  `json:"probe,omitempty"`
	Variant   string  `json:"variant"`
	Steps     int     `json:"steps"`
	FinalV    float64 `json:"final_v"`
	State     string  `json:"state"`
	CreatedAt string  `json:"created_at"` // RFC3339
}

// RunsResponse is the payload for GET /api/v1/runs and the WebSocket stream.
type RunsResponse struct {
	Runs        []RunSummary `json:"runs"`
	GeneratedAt string       `json:"generated_at"` // RFC3339
}

// Summaries converts runs to their list form, keeping order.
func Summaries(runs []*store.Run, now time.Time) RunsResponse {
	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunSummary{
			ID:        r.ID,
			Name:      r.Name,
			Kind:      r.Kind,
			Probe:     r.Probe,
			Variant:   r.Variant,
			Steps:     len(r.Records),
			FinalV:    r.Final.V,
			State:     r.Final.State,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return RunsResponse{Runs: out, GeneratedAt: now.UTC().Format(time.RFC3339)}
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
