package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sasilab/sasi/pkg/types"
	"github.com/sasilab/sasi/pkg/viability"
)

// Run kinds.
const (
	KindFixed    = "fixed"
	KindSchedule = "schedule"
	KindSweep    = "sweep"
)

// Run is one completed run as held by the store and returned by the API.
type Run struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`

	// Probe is the swept field of a sweep run.
	Probe string `json:"probe,omitempty"`

	Variant   string           `json:"variant"`
	Params    viability.Params `json:"params"`
	Records   []types.Record   `json:"records"`
	Final     types.Record     `json:"final"`
	CreatedAt time.Time        `json:"created_at"`
}

// Source names the run for alert deduplication: its name, or its kind when
// unnamed.
func (r *Run) Source() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Kind
}

// NewRun assigns a fresh ID and takes Final from the last record.
func NewRun(kind string, m viability.Model, records []types.Record, now time.Time) *Run {
	r := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Variant:   string(m.Variant),
		Params:    m.Params,
		Records:   records,
		CreatedAt: now.UTC(),
	}
	if len(records) > 0 {
		r.Final = records[len(records)-1]
	}
	return r
}
