package adapter

import (
	"github.com/diblac17-eng/weftend/internal/reason"
)

// DoctorAdapter is one row of a doctor report.
type DoctorAdapter struct {
	Name           string   `json:"name"`
	Class          string   `json:"class"`
	Disabled       bool     `json:"disabled"`
	MissingPlugins []string `json:"missingPlugins"`
}

// DoctorReport merges maintenance-policy state with plugin availability.
// In strict mode any strict failure code fails the invocation with exit 40.
type DoctorReport struct {
	Adapters       []DoctorAdapter `json:"adapters"`
	Policy         Maintenance     `json:"policy"`
	StrictFailures []string        `json:"strictFailures"`
}

// Doctor produces the merged health report. The strict failure set is
// always computed; callers decide whether it is fatal.
func (r *Registry) Doctor() DoctorReport {
	report := DoctorReport{
		Policy:         r.policy,
		StrictFailures: []string{},
	}

	for _, a := range r.adapters {
		row := DoctorAdapter{
			Name:           a.Name,
			Class:          a.Class,
			Disabled:       r.policy.Disabled(a.Name),
			MissingPlugins: []string{},
		}
		for _, p := range a.PluginsRequired {
			if r.probe == nil || !r.probe(p) {
				row.MissingPlugins = append(row.MissingPlugins, p)
			}
		}
		report.Adapters = append(report.Adapters, row)
		if len(row.MissingPlugins) > 0 {
			report.addStrict(reason.AdapterDoctorStrictMissingPlugin)
		}
	}

	if r.policy.InvalidReasonCode != "" {
		report.addStrict(reason.AdapterDoctorStrictPolicyInvalid)
	}
	if len(r.policy.UnknownTokens) > 0 {
		report.addStrict(reason.AdapterDoctorStrictPolicyUnknownToken)
	}
	return report
}

func (d *DoctorReport) addStrict(code reason.Code) {
	for _, c := range d.StrictFailures {
		if c == string(code) {
			return
		}
	}
	d.StrictFailures = append(d.StrictFailures, string(code))
}
