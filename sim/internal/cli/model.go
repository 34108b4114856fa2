package cli

import (
	"github.com/spf13/cobra"

	"github.com/sasilab/sasi/pkg/viability"
)

// modelFlags are the formula selection flags shared by the ad hoc commands.
type modelFlags struct {
	variant string
	params  viability.Params
	input   viability.Input
}

func (f *modelFlags) register(cmd *cobra.Command, defaultVariant viability.Variant) {
	d := viability.DefaultParams()
	fs := cmd.Flags()
	fs.StringVar(&f.variant, "variant", string(defaultVariant), "formula variant (simple, generalized)")
	fs.Float64Var(&f.params.K, "k", d.K, "exponent on A")
	fs.Float64Var(&f.params.M, "m", d.M, "exponent on E")
	fs.Float64Var(&f.params.Omega, "omega", d.Omega, "weight of the R penalty")
	fs.Float64Var(&f.params.P, "p", d.P, "exponent on R")
	fs.Float64Var(&f.input.A, "A", 0, "productivity")
	fs.Float64Var(&f.input.E, "E", 0, "human effectiveness")
	fs.Float64Var(&f.input.R, "R", 0, "raw performance")
}

func (f *modelFlags) model() (viability.Model, error) {
	v, err := viability.ParseVariant(f.variant)
	if err != nil {
		return viability.Model{}, err
	}
	if v == viability.VariantSimple {
		return viability.Simple(), nil
	}
	if err := f.params.Validate(); err != nil {
		return viability.Model{}, err
	}
	return viability.Generalized(f.params), nil
}
