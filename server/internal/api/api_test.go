package api_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"

	"github.com/sasilab/sasi/pkg/agents"
	"github.com/sasilab/sasi/pkg/report"
	"github.com/sasilab/sasi/server/internal/alerts"
	"github.com/sasilab/sasi/server/internal/api"
	"github.com/sasilab/sasi/server/internal/config"
	"github.com/sasilab/sasi/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

var limits = api.Limits{MaxSteps: 100, MaxValues: 10}

func newHandler() (http.Handler, *store.Store) {
	st := store.New(5 * time.Minute)
	return api.New(st, nil, limits), st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// createRun posts body and returns the created run, failing unless 201.
func createRun(t *testing.T, h http.Handler, body string) api.RunResponse {
	t.Helper()
	rr := post(t, h, "/api/v1/runs", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/runs: got %d, want 201 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp api.RunResponse
	decode(t, rr, &resp)
	return resp
}

const (
	stableSchedule = `{"name":"stable","mode":"schedule","variant":"simple",
		"schedule":{"steps":4,"initial_e":0.8}}`
	mSweep = `{"name":"m-sensitivity","mode":"sweep",
		"sweep":{"field":"m","values":[1.0,1.5,2.0],"base":{"A":0.9,"E":0.1,"R":0.9}}}`
)

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	h, _ := newHandler()
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)

	if resp.State != "unknown" {
		t.Errorf("state: got %q, want unknown", resp.State)
	}
	if resp.RunCount != 0 {
		t.Errorf("run_count: got %d, want 0", resp.RunCount)
	}
	if resp.Archive {
		t.Error("archive: got true without an archive attached")
	}
}

func TestHealth_CountsFinalStates(t *testing.T) {
	h, _ := newHandler()
	createRun(t, h, stableSchedule)
	createRun(t, h, `{"mode":"fixed","variant":"simple","inputs":[{"E":0.8}]}`)
	createRun(t, h, `{"mode":"fixed","params":{"m":1},"inputs":[{"A":0.9,"E":0.1,"R":0.9}]}`)

	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	if resp.RunCount != 3 {
		t.Errorf("run_count: got %d, want 3", resp.RunCount)
	}
	if resp.StableCount != 1 || resp.FragileCount != 1 || resp.CollapseCount != 1 {
		t.Errorf("counts: stable=%d fragile=%d collapse=%d, want 1/1/1",
			resp.StableCount, resp.FragileCount, resp.CollapseCount)
	}
	if resp.State == "unknown" {
		t.Error("state: got unknown with runs stored")
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler()
	rr := post(t, h, "/api/v1/health", "{}")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/v1/health: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/evaluate -------------------------------------------------------

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantV    float64
		wantSt   string
		collapse bool
	}{
		{"simple stable", `{"variant":"simple","E":0.8}`, 0.444, "STABLE", false},
		{"simple collapse", `{"variant":"simple","E":0.1}`, 0.091, "STRUCTURAL_COLLAPSE", true},
		{"simple zero E", `{"variant":"simple","E":0}`, 0, "STRUCTURAL_COLLAPSE", true},
		{"generalized m=1", `{"params":{"m":1},"A":0.9,"E":0.1,"R":0.9}`, 0.0568, "FRAGILE", false},
		{"generalized defaults", `{"A":0.9,"E":0.1,"R":0.9}`, 0.0057, "STRUCTURAL_COLLAPSE", true},
	}
	h, _ := newHandler()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/api/v1/evaluate", tc.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
			}
			var resp api.EvaluateResponse
			decode(t, rr, &resp)
			if !almostEqual(resp.V, tc.wantV, 1e-9) {
				t.Errorf("V: got %v, want %v", resp.V, tc.wantV)
			}
			if resp.State != tc.wantSt {
				t.Errorf("state: got %q, want %q", resp.State, tc.wantSt)
			}
			if resp.StructuralCollapse != tc.collapse {
				t.Errorf("structural_collapse: got %v, want %v", resp.StructuralCollapse, tc.collapse)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"E":`, http.StatusBadRequest},
		{"unknown field", `{"E":0.5,"X":1}`, http.StatusBadRequest},
		{"unknown variant", `{"variant":"cubic","E":0.5}`, http.StatusBadRequest},
		{"negative param", `{"params":{"m":-1},"A":0.5,"E":0.5,"R":0.5}`, http.StatusBadRequest},
		{"domain error", `{"params":{"k":0.5},"A":-0.5,"E":0.5,"R":0.5}`, http.StatusUnprocessableEntity},
	}
	h, _ := newHandler()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/api/v1/evaluate", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, tc.want, rr.Body.String())
			}
			var resp map[string]string
			decode(t, rr, &resp)
			if resp["error"] == "" {
				t.Error("error body missing")
			}
		})
	}
}

func TestEvaluate_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler()
	if rr := get(t, h, "/api/v1/evaluate"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/v1/evaluate: got %d, want 405", rr.Code)
	}
}

// --- POST /api/v1/runs ------------------------------------------------------

func TestCreateRun_Schedule(t *testing.T) {
	h, st := newHandler()
	resp := createRun(t, h, stableSchedule)

	if resp.ID == "" || resp.Name != "stable" || resp.Kind != store.KindSchedule {
		t.Fatalf("run header: id=%q name=%q kind=%q", resp.ID, resp.Name, resp.Kind)
	}
	if len(resp.Records) != 4 {
		t.Fatalf("records: got %d, want 4", len(resp.Records))
	}
	wantE := []float64{0.8, 0.8, 0.8, 0.1}
	for i, rec := range resp.Records {
		if !almostEqual(rec.E, wantE[i], 1e-9) {
			t.Errorf("record %d E: got %v, want %v", i, rec.E, wantE[i])
		}
		if rec.EconomicInfluence == nil || *rec.EconomicInfluence != 0.7 {
			t.Errorf("record %d economic_influence: got %v, want 0.7", i, rec.EconomicInfluence)
		}
	}
	if resp.Final.State != "STRUCTURAL_COLLAPSE" || !almostEqual(resp.Final.V, 0.091, 1e-9) {
		t.Errorf("final: got V=%v %s, want V=0.091 STRUCTURAL_COLLAPSE", resp.Final.V, resp.Final.State)
	}
	if len(resp.Decisions) != 0 {
		t.Errorf("decisions: got %d without agents, want 0", len(resp.Decisions))
	}
	if len(resp.Diagnostics) == 0 || resp.Diagnostics[0].Key != "structural_collapse" {
		t.Errorf("first diagnostic: got %+v, want structural_collapse", resp.Diagnostics)
	}
	if st.Count() != 1 {
		t.Errorf("store count: got %d, want 1", st.Count())
	}
}

func TestCreateRun_ScheduleWithAgents(t *testing.T) {
	h, _ := newHandler()
	resp := createRun(t, h, `{"mode":"schedule","variant":"simple",
		"schedule":{"steps":3,"initial_e":0.8,"mutations":[],"agents":true}}`)

	if len(resp.Decisions) != 3 {
		t.Fatalf("decisions: got %d steps, want 3", len(resp.Decisions))
	}
	for _, d := range resp.Decisions {
		if len(d.Decisions) != 3 {
			t.Errorf("step %d: got %d decisions, want 3", d.Step, len(d.Decisions))
		}
		if d.State != "STABLE" {
			t.Errorf("step %d: state %q, want STABLE with no mutation", d.Step, d.State)
		}
		for _, dec := range d.Decisions {
			if !dec.Mock {
				t.Errorf("step %d: %s decision not tagged mock without a credential", d.Step, dec.Agent)
			}
		}
	}
}

func TestCreateRun_ScheduleWithCredentials(t *testing.T) {
	h := api.New(store.New(5*time.Minute), nil, limits, api.WithCredentials(agents.Credentials{Key: "k"}))
	resp := createRun(t, h, `{"mode":"schedule","variant":"simple",
		"schedule":{"steps":2,"initial_e":0.8,"mutations":[],"agents":true}}`)

	if len(resp.Decisions) != 2 {
		t.Fatalf("decisions: got %d steps, want 2", len(resp.Decisions))
	}
	for _, d := range resp.Decisions {
		for _, dec := range d.Decisions {
			if dec.Mock {
				t.Errorf("step %d: %s decision tagged mock with a credential", d.Step, dec.Agent)
			}
		}
	}
}

func TestCreateRun_Sweep(t *testing.T) {
	h, _ := newHandler()
	resp := createRun(t, h, mSweep)

	if resp.Probe != "m" {
		t.Errorf("probe: got %q, want m", resp.Probe)
	}
	wantM := []float64{1.0, 1.5, 2.0}
	wantCollapse := []bool{false, true, true}
	if len(resp.Records) != len(wantM) {
		t.Fatalf("records: got %d, want %d", len(resp.Records), len(wantM))
	}
	for i, rec := range resp.Records {
		if rec.M == nil || *rec.M != wantM[i] {
			t.Errorf("record %d m: got %v, want %v", i, rec.M, wantM[i])
		}
		if rec.StructuralCollapse == nil || *rec.StructuralCollapse != wantCollapse[i] {
			t.Errorf("record %d structural_collapse: got %v, want %v", i, rec.StructuralCollapse, wantCollapse[i])
		}
	}

	var crossing bool
	for _, d := range resp.Diagnostics {
		if d.Key == "state_crossing_1" && d.Value != nil && *d.Value == 1.5 {
			crossing = true
		}
	}
	if !crossing {
		t.Errorf("diagnostics: want state_crossing_1 at m=1.5, got %+v", resp.Diagnostics)
	}
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown mode", `{"mode":"loop"}`, http.StatusBadRequest},
		{"schedule missing", `{"mode":"schedule"}`, http.StatusBadRequest},
		{"sweep missing", `{"mode":"sweep"}`, http.StatusBadRequest},
		{"too many steps", `{"mode":"schedule","schedule":{"steps":101,"initial_e":0.5}}`, http.StatusBadRequest},
		{"negative steps", `{"mode":"schedule","schedule":{"steps":-1,"initial_e":0.5}}`, http.StatusBadRequest},
		{"too many values", `{"mode":"sweep","sweep":{"field":"E","values":[0,0,0,0,0,0,0,0,0,0,0]}}`, http.StatusBadRequest},
		{"unknown field", `{"mode":"sweep","sweep":{"field":"z","values":[1]}}`, http.StatusBadRequest},
		{"empty run", `{"mode":"fixed","inputs":[]}`, http.StatusBadRequest},
		{"domain error", `{"mode":"fixed","params":{"m":1.5},"inputs":[{"A":1,"E":-0.5,"R":0}]}`, http.StatusUnprocessableEntity},
	}
	h, st := newHandler()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, h, "/api/v1/runs", tc.body)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d (body: %s)", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
	if st.Count() != 0 {
		t.Errorf("store count: got %d after failed requests, want 0", st.Count())
	}
}

func TestCreateRun_FeedsAlerts(t *testing.T) {
	st := store.New(5 * time.Minute)
	eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "collapse", Condition: "state == STRUCTURAL_COLLAPSE", Severity: "critical"},
	}})
	h := api.New(st, eng, limits)

	run := createRun(t, h, stableSchedule)

	var list []alerts.Alert
	decode(t, get(t, h, "/api/v1/alerts"), &list)
	if len(list) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(list))
	}
	if list[0].RuleName != "collapse" || list[0].Source != "stable" || list[0].RunID != run.ID {
		t.Errorf("alert: got %+v", list[0])
	}

	var health api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &health)
	if health.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", health.AlertCount)
	}
}

// --- GET /api/v1/runs -------------------------------------------------------

func TestListRuns(t *testing.T) {
	h, _ := newHandler()

	var empty api.RunsResponse
	decode(t, get(t, h, "/api/v1/runs"), &empty)
	if empty.Runs == nil || len(empty.Runs) != 0 {
		t.Errorf("empty list: got %v, want []", empty.Runs)
	}

	createRun(t, h, stableSchedule)
	createRun(t, h, mSweep)

	var resp api.RunsResponse
	decode(t, get(t, h, "/api/v1/runs"), &resp)
	if len(resp.Runs) != 2 {
		t.Fatalf("runs: got %d, want 2", len(resp.Runs))
	}
	for _, r := range resp.Runs {
		if r.ID == "" || r.State == "" || r.Steps == 0 {
			t.Errorf("summary incomplete: %+v", r)
		}
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at missing")
	}
}

func TestListRuns_ArchiveLimit(t *testing.T) {
	h, _ := newHandler()
	createRun(t, h, stableSchedule)
	createRun(t, h, mSweep)

	var resp api.RunsResponse
	decode(t, get(t, h, "/api/v1/runs?source=archive&limit=1"), &resp)
	if len(resp.Runs) != 1 {
		t.Errorf("runs: got %d, want 1", len(resp.Runs))
	}
	if rr := get(t, h, "/api/v1/runs?source=archive&limit=x"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", rr.Code)
	}
}

func TestGetRun(t *testing.T) {
	h, _ := newHandler()
	created := createRun(t, h, mSweep)

	rr := get(t, h, "/api/v1/runs/"+created.ID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.RunResponse
	decode(t, rr, &resp)
	if resp.ID != created.ID || len(resp.Records) != 3 {
		t.Errorf("run: got id=%q records=%d", resp.ID, len(resp.Records))
	}
	if len(resp.Diagnostics) == 0 {
		t.Error("diagnostics missing")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	h, _ := newHandler()
	for _, path := range []string{"/api/v1/runs/nope", "/api/v1/runs/nope/export"} {
		if rr := get(t, h, path); rr.Code != http.StatusNotFound {
			t.Errorf("GET %s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestGetRun_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/runs/x", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE: got %d, want 405", rr.Code)
	}
}

// --- GET /api/v1/runs/{id}/export -------------------------------------------

func TestExport(t *testing.T) {
	h, _ := newHandler()
	run := createRun(t, h, stableSchedule)
	base := "/api/v1/runs/" + run.ID + "/export"

	t.Run("json", func(t *testing.T) {
		rr := get(t, h, base)
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rr.Code)
		}
		var recs []map[string]any
		decode(t, rr, &recs)
		if len(recs) != 4 {
			t.Errorf("records: got %d, want 4", len(recs))
		}
	})

	t.Run("prom", func(t *testing.T) {
		rr := get(t, h, base+"?format=prom")
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != string(expfmt.NewFormat(expfmt.TypeTextPlain)) {
			t.Errorf("Content-Type: got %q", ct)
		}
		fams, err := report.ParseMetrics(rr.Body)
		if err != nil {
			t.Fatalf("ParseMetrics: %v", err)
		}
		score := fams[report.MetricScore]
		if score == nil || len(score.GetMetric()) != 1 {
			t.Fatalf("%s missing", report.MetricScore)
		}
		if got := score.GetMetric()[0].GetGauge().GetValue(); !almostEqual(got, 0.091, 1e-9) {
			t.Errorf("score: got %v, want 0.091", got)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		rr := get(t, h, base+"?format=markdown")
		if !strings.Contains(rr.Body.String(), "| # | E | V | STATE |") {
			t.Errorf("markdown header missing:\n%s", rr.Body.String())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if rr := get(t, h, base+"?format=xml"); rr.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", rr.Code)
		}
	})
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_ReturnsEmptyArray(t *testing.T) {
	h, _ := newHandler()
	rr := get(t, h, "/api/v1/alerts")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("body: got %s, want []", body)
	}
}

func TestContentTypeJSON(t *testing.T) {
	h, _ := newHandler()
	for _, path := range []string{"/api/v1/health", "/api/v1/runs", "/api/v1/alerts"} {
		rr := get(t, h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s Content-Type: got %q, want application/json", path, ct)
		}
	}
}
