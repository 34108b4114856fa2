package types

// Record is one history entry as exported. Simple-form records carry only
// timestamp, E, V, state and economic_influence; generalized records add the
// other two factors, the parameter set and the collapse flag.
type Record struct {
	Timestamp string   `json:"timestamp"`
	A         *float64 `json:"A,omitempty"`
	E         float64  `json:"E"`
	R         *float64 `json:"R,omitempty"`
	V         float64  `json:"V"`
	State     string   `json:"state"`

	K     *float64 `json:"k,omitempty"`
	M     *float64 `json:"m,omitempty"`
	Omega *float64 `json:"omega,omitempty"`
	P     *float64 `json:"p,omitempty"`

	EconomicInfluence  *float64 `json:"economic_influence,omitempty"`
	StructuralCollapse *bool    `json:"structural_collapse,omitempty"`
}

// Float returns a pointer to v, for the optional Record fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
