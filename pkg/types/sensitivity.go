package types

// MPoint is one entry of the m sweep in a sensitivity report.
type MPoint struct {
	M                  float64 `json:"m"`
	V                  float64 `json:"V"`
	StructuralCollapse bool    `json:"colapso_estructural"`
	Timestamp          string  `json:"timestamp"`
}

// EPoint is one entry of the E sweep in a sensitivity report.
type EPoint struct {
	E     float64 `json:"E"`
	V     float64 `json:"V"`
	State string  `json:"estado"`
}

// Record returns the point as a history record carrying E, V and state.
func (p EPoint) Record() Record {
	return Record{E: p.E, V: p.V, State: p.State}
}
