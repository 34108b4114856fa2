package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/viability"
)

// ErrHistoryNotEmpty is returned when a run is started on a Runner that still
// holds results from a previous run.
var ErrHistoryNotEmpty = errors.New("runner: history not empty; call Reset before starting a new run")

// Result is one evaluation appended to a History. It is never modified after
// it is appended.
type Result struct {
	Timestamp time.Time
	Input     viability.Input
	Score     float64
	State     viability.State
	Model     viability.Model

	// Probe is set in sweep mode and names the value that produced this result.
	Probe *Probe
}

// Probe identifies the swept field and value behind a sweep result.
type Probe struct {
	Field string
	Value float64
}

// History is the ordered, append-only sequence of results for one run.
type History []Result

// Last returns the final result and false if the history is empty.
func (h History) Last() (Result, bool) {
	if len(h) == 0 {
		return Result{}, false
	}
	return h[len(h)-1], true
}

// Runner evaluates a model and owns the history of one run.
type Runner struct {
	model    viability.Model
	advisors []agents.Advisor
	now      func() time.Time // injectable for deterministic tests
	history  History
	batch    bool // a RunFixed, RunSchedule or RunSweep owns the history
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces time.Now as the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithAdvisors sets the decision stubs consulted on each schedule step.
func WithAdvisors(advisors ...agents.Advisor) Option {
	return func(r *Runner) { r.advisors = advisors }
}

// New returns a Runner for m with an empty history.
func New(m viability.Model, opts ...Option) *Runner {
	r := &Runner{model: m, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the model the Runner evaluates.
func (r *Runner) Model() viability.Model { return r.model }

// Evaluate computes one result for in and appends it to the history, so a
// run can be built one input at a time. Once RunFixed, RunSchedule or
// RunSweep has started on the Runner it returns ErrHistoryNotEmpty until
// Reset.
func (r *Runner) Evaluate(in viability.Input) (Result, error) {
	if r.batch {
		return Result{}, ErrHistoryNotEmpty
	}
	res, err := evaluate(in, r.model, r.now())
	if err != nil {
		return Result{}, err
	}
	r.appendResult(res)
	return res, nil
}

// RunFixed evaluates each input once and appends the results in call order.
func (r *Runner) RunFixed(inputs []viability.Input) (History, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	for i, in := range inputs {
		res, err := evaluate(in, r.model, r.now())
		if err != nil {
			slog.Warn("runner: fixed-list evaluation failed", "index", i, "err", err)
			return r.History(), fmt.Errorf("runner: input %d: %w", i, err)
		}
		r.appendResult(res)
	}
	return r.History(), nil
}

// History returns a copy of the results appended so far. Probes are copied
// too, so the caller cannot reach the runner's own results.
func (r *Runner) History() History {
	out := make(History, len(r.history))
	copy(out, r.history)
	for i := range out {
		if p := out[i].Probe; p != nil {
			cp := *p
			out[i].Probe = &cp
		}
	}
	return out
}

// Len returns the number of results in the history.
func (r *Runner) Len() int { return len(r.history) }

// Reset drops the history so the Runner can start an independent run.
func (r *Runner) Reset() {
	r.history = nil
	r.batch = false
}

// begin claims the Runner for one batch run.
func (r *Runner) begin() error {
	if len(r.history) > 0 || r.batch {
		return ErrHistoryNotEmpty
	}
	r.batch = true
	return nil
}

func (r *Runner) appendResult(res Result) {
	r.history = append(r.history, res)
}

func evaluate(in viability.Input, m viability.Model, now time.Time) (Result, error) {
	out, err := viability.Evaluate(in, m)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Timestamp: now,
		Input:     in,
		Score:     out.Score,
		State:     out.State,
		Model:     m,
	}, nil
}
