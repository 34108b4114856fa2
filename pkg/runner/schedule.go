package runner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/viability"
)

// DegradedEffectiveness is the value the default schedule forces E to at the
// midpoint of the run.
const DegradedEffectiveness = 0.1

// Schedule describes a step-schedule run.
type Schedule struct {
	// Steps is the number of evaluations.
	Steps int

	// Initial is the effectiveness E used for step 0. It is taken as given,
	// not clamped.
	Initial float64

	// Base supplies A and R for the generalized formula. Base.E is ignored;
	// each step reads E from the StepState.
	Base viability.Input

	// Mutations set E after the step they name has been evaluated and appended.
	Mutations []Mutation
}

// Mutation forces effectiveness to a new value after step AtStep. The value
// is clamped into [0, 1].
type Mutation struct {
	AtStep        int
	Effectiveness float64
}

// DefaultSchedule runs steps evaluations starting from initial and forces E
// to DegradedEffectiveness after step steps/2.
func DefaultSchedule(initial float64, steps int) Schedule {
	return Schedule{
		Steps:     steps,
		Initial:   initial,
		Mutations: []Mutation{{AtStep: steps / 2, Effectiveness: DegradedEffectiveness}},
	}
}

// Validate checks the schedule bounds.
func (s Schedule) Validate() error {
	if s.Steps < 0 {
		return fmt.Errorf("runner: schedule steps must not be negative, got %d", s.Steps)
	}
	for i, m := range s.Mutations {
		if m.AtStep < 0 {
			return fmt.Errorf("runner: mutation %d: at_step must not be negative", i)
		}
	}
	return nil
}

// StepState is the explicit state carried from one schedule step to the next.
type StepState struct {
	Step          int
	Effectiveness float64
}

// StepTrace is one schedule step as printed by the simulator: the appended
// result plus the decision stubs' responses for that step.
type StepTrace struct {
	Step      int
	Result    Result
	Decisions []agents.Decision
}

// Step evaluates one schedule step and returns the result together with the
// state for the next step. It does not touch any Runner.
//
// Order: build this step's input from st.Effectiveness, evaluate, then apply
// any mutation scheduled at st.Step to produce the next state.
func Step(st StepState, s Schedule, m viability.Model, now time.Time) (Result, StepState, error) {
	in := s.Base
	in.E = st.Effectiveness

	res, err := evaluate(in, m, now)
	if err != nil {
		return Result{}, st, err
	}

	next := StepState{Step: st.Step + 1, Effectiveness: st.Effectiveness}
	for _, mut := range s.Mutations {
		if mut.AtStep == st.Step {
			next.Effectiveness = viability.Clamp01(mut.Effectiveness)
		}
	}
	return res, next, nil
}

// RunSchedule runs s to completion, appending one result per step.
func (r *Runner) RunSchedule(s Schedule) (History, []StepTrace, error) {
	if len(r.history) > 0 || r.batch {
		return nil, nil, ErrHistoryNotEmpty
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	if err := r.begin(); err != nil {
		return nil, nil, err
	}

	st := StepState{Effectiveness: s.Initial}
	traces := make([]StepTrace, 0, s.Steps)

	for st.Step < s.Steps {
		res, next, err := Step(st, s, r.model, r.now())
		if err != nil {
			slog.Warn("runner: schedule step failed", "step", st.Step, "err", err)
			return r.History(), traces, fmt.Errorf("runner: step %d: %w", st.Step, err)
		}
		r.appendResult(res)

		decisions := agents.Consult(r.advisors, agents.Context{
			HumanAgency: st.Effectiveness,
			SystemState: string(res.State),
		})
		traces = append(traces, StepTrace{Step: st.Step, Result: res, Decisions: decisions})

		if next.Effectiveness != st.Effectiveness {
			slog.Debug("runner: effectiveness mutated",
				"after_step", st.Step, "from", st.Effectiveness, "to", next.Effectiveness)
		}
		st = next
	}

	return r.History(), traces, nil
}
