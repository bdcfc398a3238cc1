// Package install turns resolved specifiers into conda and pip invocations.
//
// A [Plan] splits resolutions into those conda installs natively, those pip
// installs into the prefix (pip interop), and those already satisfied by the
// prefix. A [Dispatcher] executes the plan: conda first, then pip, and pip
// is skipped if conda fails.
package install

import (
	"github.com/google/uuid"

	"github.com/matzehuels/condapip/pkg/mapping"
	"github.com/matzehuels/condapip/pkg/prefix"
)

// Plan is the set of actions for one install transaction.
type Plan struct {
	ID        string
	Prefix    string
	Native    []*mapping.Resolution
	Interop   []*mapping.Resolution
	Satisfied []*mapping.Resolution
}

// NewPlan sorts resolutions into native, interop and satisfied groups.
// data should be loaded with pip interop so that pip-installed packages
// count as present. With force, nothing is considered satisfied.
func NewPlan(resolutions []*mapping.Resolution, data *prefix.Data, force bool) *Plan {
	p := &Plan{ID: uuid.NewString()}
	if data != nil {
		p.Prefix = data.Path
	}
	for _, r := range resolutions {
		switch {
		case !force && installed(data, r):
			p.Satisfied = append(p.Satisfied, r)
		case r.Native():
			p.Native = append(p.Native, r)
		default:
			p.Interop = append(p.Interop, r)
		}
	}
	return p
}

// installed reports whether the prefix already holds r under its PyPI or
// conda name at an acceptable version.
func installed(data *prefix.Data, r *mapping.Resolution) bool {
	if data == nil || r.Spec.URL != "" {
		return false
	}
	for _, name := range []string{r.Name(), r.CondaName} {
		if rec, ok := data.Get(name); ok && r.Spec.Satisfied(rec.Version) {
			return true
		}
	}
	return false
}

// Empty reports whether there is nothing to install.
func (p *Plan) Empty() bool { return len(p.Native) == 0 && len(p.Interop) == 0 }

// CondaSpecs returns the conda match specs for native packages.
func (p *Plan) CondaSpecs() []string {
	out := make([]string, len(p.Native))
	for i, r := range p.Native {
		out[i] = r.CondaSpec
	}
	return out
}

// PipSpecs returns the PEP 508 requirements for pip-interop packages.
func (p *Plan) PipSpecs() []string {
	out := make([]string, len(p.Interop))
	for i, r := range p.Interop {
		out[i] = r.PyPISpec
	}
	return out
}
