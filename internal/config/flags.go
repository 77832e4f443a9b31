package config

import (
	"github.com/spf13/cobra"

	"github.com/diblac17-eng/weftend/internal/reason"
)

// FlagValues collects the parsed global flag values shared by every
// subcommand.
type FlagValues struct {
	Verbose bool
	Quiet   bool
}

// BindFlags registers the global persistent flags on the root command and
// returns the struct populated at parse time.
func BindFlags(cmd *cobra.Command) *FlagValues {
	fv := &FlagValues{}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&fv.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&fv.Quiet, "quiet", "q", false, "suppress all output except errors")

	return fv
}

// Valid profile and mode vocabularies, shared by flag validation.
var (
	Profiles = []string{"web", "mod", "generic"}
	Modes    = []string{"strict", "compatible", "legacy"}
)

// ValidateProfile fails closed on an unknown --profile value.
func ValidateProfile(p string) *reason.Error {
	for _, v := range Profiles {
		if p == v {
			return nil
		}
	}
	return reason.Surface(reason.ProfileUnsupported, "unsupported profile "+p, nil)
}

// ValidateMode fails closed on an unknown --mode value.
func ValidateMode(m string) *reason.Error {
	for _, v := range Modes {
		if m == v {
			return nil
		}
	}
	return reason.Surface(reason.ModeUnsupported, "unsupported mode "+m, nil)
}
