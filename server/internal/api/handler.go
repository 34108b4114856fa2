package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/pkg/runner"
	"github.com/sasilab/sasi/pkg/viability"
	"github.com/sasilab/sasi/server/internal/alerts"
	"github.com/sasilab/sasi/server/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
	formatProm       = "prom"
)

// Limits bounds the size of a single run request.
type Limits struct {
	MaxSteps  int
	MaxValues int
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	alerts *alerts.Engine
	limits Limits
	creds  agents.Credentials
	now    func() time.Time
	mux    *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithCredentials sets the credential handed to the decision stubs. Without
// it every decision is tagged as a mock.
func WithCredentials(c agents.Credentials) Option {
	return func(h *Handler) { h.creds = c }
}

// New creates a Handler wired to the run store and alert engine and registers
// all routes. eng may be nil, in which case no alerts are evaluated.
func New(st *store.Store, eng *alerts.Engine, limits Limits, opts ...Option) http.Handler {
	h := &Handler{store: st, alerts: eng, limits: limits, now: time.Now, mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/evaluate", h.evaluate)
	h.mux.HandleFunc("/api/v1/runs", h.runs)
	h.mux.HandleFunc("/api/v1/runs/", h.getRun) // subtree: {id} and {id}/export
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runs := h.store.List()
	resp := HealthResponse{
		State:    "unknown",
		RunCount: len(runs),
		Archive:  h.store.Archiving(),
	}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.Firing()
	}
	if len(runs) > 0 {
		resp.State = runs[0].Final.State
	}
	for _, run := range runs {
		switch viability.State(run.Final.State) {
		case viability.StateStable:
			resp.StableCount++
		case viability.StateWarning:
			resp.WarningCount++
		case viability.StateFragile:
			resp.FragileCount++
		case viability.StateStructuralCollapse:
			resp.CollapseCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// evaluate handles POST /api/v1/evaluate. Nothing is stored.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req EvaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := buildModel(req.Variant, req.Params)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := viability.Evaluate(req.Input, m)
	if err != nil {
		runErr(w, err)
		return
	}
	places := report.PrecisionFor(m.Variant)
	jsonResp(w, http.StatusOK, EvaluateResponse{
		Variant:            string(m.Variant),
		Params:             m.Params,
		V:                  viability.Round(out.Score, places),
		State:              string(out.State),
		Numerator:          out.Numerator,
		Denominator:        out.Denominator,
		StructuralCollapse: out.State.Collapsed(),
	})
}

// runs dispatches /api/v1/runs: GET lists, POST creates.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRuns(w, r)
	case http.MethodPost:
		h.createRun(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listRuns returns live runs, or archived runs with ?source=archive.
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("source") != "archive" {
		jsonResp(w, http.StatusOK, Summaries(h.store.List(), h.now()))
		return
	}

	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.store.Archived(r.Context(), limit)
	if err != nil {
		slog.Error("api: list archive", "err", err)
		jsonErr(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	jsonResp(w, http.StatusOK, Summaries(runs, h.now()))
}

// createRun handles POST /api/v1/runs. Each request gets its own Runner.
func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := buildModel(req.Variant, req.Params)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	influence := agents.DefaultInfluence
	if req.EconomicInfluence != nil {
		influence = *req.EconomicInfluence
	}

	var (
		hist      runner.History
		decisions []StepDecisions
		probe     string
	)
	switch strings.ToLower(req.Mode) {
	case ModeFixed:
		if err := checkCount("inputs", len(req.Inputs), h.limits.MaxSteps); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		hist, err = runner.New(m).RunFixed(req.Inputs)

	case ModeSchedule:
		if req.Schedule == nil {
			jsonErr(w, http.StatusBadRequest, "schedule mode requires a schedule")
			return
		}
		if err := checkCount("steps", req.Schedule.Steps, h.limits.MaxSteps); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		var opts []runner.Option
		if req.Schedule.Agents {
			opts = append(opts, runner.WithAdvisors(agents.Default(h.creds, influence)...))
		}
		var traces []runner.StepTrace
		hist, traces, err = runner.New(m, opts...).RunSchedule(req.Schedule.schedule())
		if req.Schedule.Agents {
			decisions = toDecisions(traces)
		}

	case ModeSweep:
		if req.Sweep == nil {
			jsonErr(w, http.StatusBadRequest, "sweep mode requires a sweep")
			return
		}
		if err := checkCount("values", len(req.Sweep.Values), h.limits.MaxValues); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if probe, err = runner.ParseField(req.Sweep.Field); err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		hist, err = runner.New(m).RunSweep(runner.Sweep{
			Field:  probe,
			Values: req.Sweep.Values,
			Base:   req.Sweep.Base,
		})

	default:
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q: want fixed|schedule|sweep", req.Mode))
		return
	}
	if err != nil {
		runErr(w, err)
		return
	}
	if len(hist) == 0 {
		jsonErr(w, http.StatusBadRequest, "run produced no results")
		return
	}

	opts := report.Options{}
	if m.Variant == viability.VariantSimple {
		opts.EconomicInfluence = &influence
	}
	run := store.NewRun(strings.ToLower(req.Mode), m, report.FromHistory(hist, opts), h.now())
	run.Name = req.Name
	run.Probe = probe

	// The archive is best effort; the run is served from memory either way.
	_ = h.store.Put(r.Context(), run)
	if h.alerts != nil {
		h.alerts.Evaluate(run.Source(), run.ID, run.Final)
	}
	slog.Info("api: run stored", "id", run.ID, "kind", run.Kind, "records", len(run.Records), "state", run.Final.State)

	jsonResp(w, http.StatusCreated, RunResponse{
		Run:         run,
		Decisions:   decisions,
		Diagnostics: computeDiagnostics(run),
	})
}

// getRun serves GET /api/v1/runs/{id} and GET /api/v1/runs/{id}/export.
func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/runs/"), "/")
	if rest == "" {
		h.listRuns(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	if sub != "" && sub != "export" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	run, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		slog.Error("api: get run", "id", id, "err", err)
		jsonErr(w, http.StatusInternalServerError, "archive unavailable")
		return
	}

	if sub == "export" {
		h.export(w, r, run)
		return
	}
	jsonResp(w, http.StatusOK, RunResponse{Run: run, Diagnostics: computeDiagnostics(run)})
}

// export writes a run's records in the format named by ?format (default json).
func (h *Handler) export(w http.ResponseWriter, r *http.Request, run *store.Run) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", report.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
		if err := report.WriteJSON(w, run.Records); err != nil {
			slog.Warn("api: export", "id", run.ID, "err", err)
		}
	case formatProm:
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := report.WriteMetrics(w, run.Source(), run.Records); err != nil {
			slog.Warn("api: export", "id", run.ID, "err", err)
		}
	case report.FormatTable, report.FormatMarkdown:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.Render(w, format, run.Records); err != nil {
			slog.Warn("api: export", "id", run.ID, "err", err)
		}
	default:
		jsonErr(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q: want json|prom|table|markdown", format))
	}
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var out []*alerts.Alert
	if h.alerts != nil {
		out = h.alerts.Active()
	}
	if out == nil {
		out = []*alerts.Alert{}
	}
	jsonResp(w, http.StatusOK, out)
}

// --- helpers ----------------------------------------------------------------

// checkCount rejects negative counts and counts above a positive limit.
func checkCount(what string, n, limit int) error {
	if n < 0 {
		return fmt.Errorf("%s must not be negative", what)
	}
	if limit > 0 && n > limit {
		return fmt.Errorf("%s: %d exceeds limit %d", what, n, limit)
	}
	return nil
}

func (s *ScheduleRequest) schedule() runner.Schedule {
	sched := runner.DefaultSchedule(s.InitialE, s.Steps)
	sched.Base = s.Base
	if s.Mutations != nil {
		sched.Mutations = make([]runner.Mutation, 0, len(s.Mutations))
		for _, m := range s.Mutations {
			sched.Mutations = append(sched.Mutations, runner.Mutation{AtStep: m.AtStep, Effectiveness: m.E})
		}
	}
	return sched
}

func toDecisions(traces []runner.StepTrace) []StepDecisions {
	out := make([]StepDecisions, 0, len(traces))
	for _, t := range traces {
		out = append(out, StepDecisions{Step: t.Step, State: string(t.Result.State), Decisions: t.Decisions})
	}
	return out
}

func buildModel(variant string, params *ParamsRequest) (viability.Model, error) {
	v, err := viability.ParseVariant(variant)
	if err != nil {
		return viability.Model{}, err
	}
	if v == viability.VariantSimple {
		return viability.Simple(), nil
	}
	p := params.apply(viability.DefaultParams())
	if err := p.Validate(); err != nil {
		return viability.Model{}, err
	}
	return viability.Generalized(p), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// runErr maps a runner or formula error to a status code.
func runErr(w http.ResponseWriter, err error) {
	var de *viability.DomainError
	if errors.As(err, &de) {
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	jsonErr(w, http.StatusBadRequest, err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
