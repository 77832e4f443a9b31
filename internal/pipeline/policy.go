package pipeline

import (
	"encoding/json"
	"os"

	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
	"github.com/diblac17-eng/weftend/internal/trust"
)

// LoadPolicy reads and validates a policy document. A missing or malformed
// file fails closed.
func LoadPolicy(path string) (*schema.Policy, *reason.Error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, reason.Surface(reason.PolicyInvalid, "policy file cannot be read", err)
	}
	var p schema.Policy
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, reason.Surface(reason.PolicyInvalid, "policy file is not valid JSON", err)
	}
	if issues := p.Validate(); len(issues) > 0 {
		return nil, reason.Surface(issues[0], "policy failed validation", nil)
	}
	return &p, nil
}

// DefaultPolicy returns the built-in policy for a profile, used when a
// command is invoked without --policy. Every profile denies network reach
// and refuses native code; the web profile additionally withholds script
// execution for operator review.
func DefaultPolicy(profile string) *schema.Policy {
	rules := []schema.PolicyRule{
		{CapID: trust.CapNet, Effect: schema.EffectDeny, When: "external_refs",
			ReasonCodes: []string{string(reason.CapDenyNet)}},
		{CapID: trust.CapExec, Effect: schema.EffectDeny, When: "native",
			ReasonCodes: []string{string(reason.CapDenyExec)}},
	}
	if profile == schema.TargetWeb {
		rules = append(rules, schema.PolicyRule{
			CapID: trust.CapExec, Effect: schema.EffectWithhold, When: "scripts",
			ReasonCodes: []string{string(reason.CapWithheldExec)},
		})
	}
	return &schema.Policy{
		Schema:  schema.SchemaPolicy,
		Profile: normalizeProfile(profile),
		Rules:   rules,
	}
}

func normalizeProfile(profile string) string {
	switch profile {
	case schema.TargetWeb, schema.TargetMod:
		return profile
	default:
		return schema.TargetGeneric
	}
}
