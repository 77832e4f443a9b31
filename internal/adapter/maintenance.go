package adapter

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/reason"
	"github.com/diblac17-eng/weftend/internal/schema"
)

// Maintenance is the resolved maintenance policy: which adapters are out of
// service, which tokens were not recognized, and whether the policy file was
// malformed. It is read once per invocation; the evaluator is read-only and
// idempotent, so no locking is needed.
type Maintenance struct {
	DisabledAdapters []string `json:"disabledAdapters"`
	UnknownTokens    []string `json:"unknownTokens"`

	// InvalidReasonCode is ADAPTER_POLICY_FILE_INVALID when the policy file
	// could not be parsed; every adapter selection then fails closed.
	InvalidReasonCode reason.Code `json:"invalidReasonCode,omitempty"`
}

// Disabled reports whether the named adapter is taken out of service.
func (m Maintenance) Disabled(name string) bool {
	for _, d := range m.DisabledAdapters {
		if d == name {
			return true
		}
	}
	return false
}

// LoadMaintenance resolves the maintenance policy from the two supported
// sources: the WEFTEND_ADAPTER_DISABLE token list and the
// WEFTEND_ADAPTER_DISABLE_FILE canonical JSON document. The layers are
// merged with koanf, env tokens stacking on top of the file's. Unknown
// tokens are retained but disable nothing; a malformed file poisons the
// whole policy.
func LoadMaintenance(envTokens, filePath string) Maintenance {
	k := koanf.New(".")

	if filePath != "" {
		fileTokens, bad := readMaintenanceFile(filePath)
		if bad {
			return Maintenance{
				DisabledAdapters:  []string{},
				UnknownTokens:     []string{},
				InvalidReasonCode: reason.AdapterPolicyFileInvalid,
			}
		}
		_ = k.Load(confmap.Provider(map[string]any{"file.tokens": fileTokens}, "."), nil)
	}
	if envTokens != "" {
		_ = k.Load(confmap.Provider(map[string]any{"env.tokens": splitTokens(envTokens)}, "."), nil)
	}

	merged := append(k.Strings("file.tokens"), k.Strings("env.tokens")...)

	policy := Maintenance{DisabledAdapters: []string{}, UnknownTokens: []string{}}
	for _, tok := range canon.StableSortUniqueV0(merged) {
		tok = strings.ToLower(tok)
		if KnownAdapter(tok) {
			policy.DisabledAdapters = append(policy.DisabledAdapters, tok)
		} else {
			policy.UnknownTokens = append(policy.UnknownTokens, tok)
		}
	}
	policy.DisabledAdapters = canon.StableSortUniqueV0(policy.DisabledAdapters)
	policy.UnknownTokens = canon.StableSortUniqueV0(policy.UnknownTokens)
	return policy
}

// readMaintenanceFile parses the weftend.adapterMaintenance/0 document.
// The second return is true when the file is malformed.
func readMaintenanceFile(path string) ([]string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, true
	}
	var doc schema.AdapterMaintenance
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, true
	}
	if issues := doc.Validate(); len(issues) > 0 {
		return nil, true
	}
	return doc.DisabledAdapters, false
}

func splitTokens(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
