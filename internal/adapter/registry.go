// Package adapter maintains the registry of intake adapters, their plugin
// requirements, and the operator-controlled maintenance policy that can take
// an adapter out of service. The registry is computed once per process
// startup and passed explicitly to the components that select adapters.
package adapter

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/diblac17-eng/weftend/internal/canon"
	"github.com/diblac17-eng/weftend/internal/reason"
)

// Adapter declares one intake adapter and the host plugins it needs.
type Adapter struct {
	Name            string   `json:"name"`
	Class           string   `json:"class"`
	PluginsRequired []string `json:"pluginsRequired"`
}

// Probe reports whether a named host plugin is available. A nil probe means
// no plugins are available.
type Probe func(plugin string) bool

// builtins is the fixed adapter table. Names are lowercase; the maintenance
// token vocabulary matches them.
var builtins = []Adapter{
	{Name: "archive", Class: "archive", PluginsRequired: []string{"zipreader"}},
	{Name: "container", Class: "container", PluginsRequired: []string{"dockerd"}},
	{Name: "email", Class: "email", PluginsRequired: []string{"mimeparser"}},
	{Name: "generic", Class: "generic"},
	{Name: "web", Class: "web"},
}

// Registry resolves adapter availability from the builtin table, the host
// capability probe, and the maintenance policy.
type Registry struct {
	adapters []Adapter
	policy   Maintenance
	probe    Probe
	logger   *slog.Logger
}

// NewRegistry builds the registry for this process.
func NewRegistry(policy Maintenance, probe Probe) *Registry {
	return &Registry{
		adapters: builtins,
		policy:   policy,
		probe:    probe,
		logger:   slog.Default().With("component", "adapter"),
	}
}

// Select resolves the named adapter, failing closed when the maintenance
// policy is invalid, the adapter is disabled, or a required plugin is
// missing.
func (r *Registry) Select(name string) (*Adapter, *reason.Error) {
	name = strings.ToLower(name)

	if r.policy.InvalidReasonCode != "" {
		return nil, reason.Surface(reason.AdapterPolicyInvalid, "adapter maintenance policy is invalid; all selections fail closed", nil)
	}

	var found *Adapter
	for i := range r.adapters {
		if r.adapters[i].Name == name {
			found = &r.adapters[i]
			break
		}
	}
	if found == nil {
		return nil, reason.Surface(reason.AdapterUnknown, "unknown adapter "+name, nil)
	}

	if r.policy.Disabled(name) {
		return nil, reason.Surface(reason.AdapterTemporarilyUnavailable, "adapter "+name+" is disabled by maintenance policy", nil)
	}
	for _, p := range found.PluginsRequired {
		if r.probe == nil || !r.probe(p) {
			return nil, reason.Surface(reason.AdapterTemporarilyUnavailable, "adapter "+name+" requires missing plugin "+p, nil)
		}
	}
	return found, nil
}

// SelectByClass resolves the first adapter of the given class, in name
// order.
func (r *Registry) SelectByClass(class string) (*Adapter, *reason.Error) {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.Class == class {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return nil, reason.Surface(reason.AdapterUnknown, "no adapter for class "+class, nil)
	}
	sort.SliceStable(names, func(i, j int) bool { return canon.LessV0(names[i], names[j]) })
	return r.Select(names[0])
}

// Adapters returns the builtin table, for listings.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// KnownAdapter reports whether name is in the builtin table.
func KnownAdapter(name string) bool {
	for _, a := range builtins {
		if a.Name == name {
			return true
		}
	}
	return false
}
