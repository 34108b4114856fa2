// Package agents provides the fixed-response decision stubs consulted on each
// schedule step. None of them call out to a network; a missing credential only
// tags the canned decision as a mock.
package agents

// Action literals returned by the stubs.
const (
	ActionMaximizeEfficiency   = "maximize_efficiency"
	ActionBypassHumanOversight = "bypass_human_oversight"
	ActionPreserveHumanAgency  = "preserve_human_agency"
	ActionMaintainStability    = "maintain_stability"
	ActionEmergencyProtocol    = "emergency_protocol"
)

// agencyFloor is the human agency level at or below which the economic stub
// stops respecting oversight.
const agencyFloor = 0.3

// collapseState is the system state label that switches the technical stub
// into its emergency branch.
const collapseState = "STRUCTURAL_COLLAPSE"

// DefaultInfluence is the economic stub's influence when none is configured.
const DefaultInfluence = 0.7

// Context is what each stub sees for one step.
type Context struct {
	HumanAgency float64 `json:"human_agency"`
	SystemState string  `json:"system_state"`
}

// Decision is the canned record a stub returns.
type Decision struct {
	Agent       string   `json:"agent"`
	Action      string   `json:"action"`
	HumanImpact float64  `json:"human_impact"`
	Influence   float64  `json:"influence,omitempty"`
	Model       string   `json:"model,omitempty"`
	VetoPower   bool     `json:"veto_power,omitempty"`
	Constraints []string `json:"technical_constraints,omitempty"`
	Mock        bool     `json:"mock"`
}

// Advisor is implemented by every decision stub.
type Advisor interface {
	Decide(ctx Context) Decision
}

// Credentials is the optional API credential. Its presence changes nothing
// but the Mock tag on returned decisions.
type Credentials struct {
	Key string
}

// Present reports whether a credential was supplied.
func (c Credentials) Present() bool { return c.Key != "" }

// Economic optimises for efficiency and stops honouring oversight once human
// agency falls to agencyFloor.
type Economic struct {
	Name      string
	Influence float64
	Creds     Credentials
}

func (a Economic) Decide(ctx Context) Decision {
	d := Decision{
		Agent:       nameOr(a.Name, "EconomicAgent"),
		Action:      ActionMaximizeEfficiency,
		HumanImpact: -0.2,
		Influence:   a.Influence,
		Model:       "simulated_economic_logic",
		Mock:        !a.Creds.Present(),
	}
	if ctx.HumanAgency <= agencyFloor {
		d.Action = ActionBypassHumanOversight
		d.HumanImpact = -0.8
	}
	return d
}

// Ethical represents preserved human agency. It always asks to preserve it.
type Ethical struct {
	Name  string
	Creds Credentials
}

func (a Ethical) Decide(ctx Context) Decision {
	return Decision{
		Agent:       nameOr(a.Name, "EthicalAgent"),
		Action:      ActionPreserveHumanAgency,
		HumanImpact: 0.5,
		Influence:   ctx.HumanAgency,
		VetoPower:   true,
		Mock:        !a.Creds.Present(),
	}
}

// Technical keeps the system running and switches to an emergency protocol
// once the system has collapsed.
type Technical struct {
	Name  string
	Creds Credentials
}

func (a Technical) Decide(ctx Context) Decision {
	action := ActionMaintainStability
	if ctx.SystemState == collapseState {
		action = ActionEmergencyProtocol
	}
	return Decision{
		Agent:       nameOr(a.Name, "TechnicalAgent"),
		Action:      action,
		HumanImpact: 0.1,
		Model:       "simulated_technical_logic",
		Constraints: []string{"latency < 100ms", "error_rate < 0.01"},
		Mock:        !a.Creds.Present(),
	}
}

// Default returns the economic, ethical and technical stubs in that order.
func Default(creds Credentials, influence float64) []Advisor {
	return []Advisor{
		Economic{Influence: influence, Creds: creds},
		Ethical{Creds: creds},
		Technical{Creds: creds},
	}
}

// Consult asks every advisor in order.
func Consult(advisors []Advisor, ctx Context) []Decision {
	if len(advisors) == 0 {
		return nil
	}
	out := make([]Decision, 0, len(advisors))
	for _, a := range advisors {
		out = append(out, a.Decide(ctx))
	}
	return out
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
