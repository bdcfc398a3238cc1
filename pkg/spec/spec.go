// Package spec parses PyPI package specifiers and renders them for conda and pip.
//
// A specifier is a package name plus optional extras, version constraints,
// an environment marker, or a direct URL (PEP 508). The conda single-equals
// form ("numpy=1.20") is accepted as well and means "any 1.20.x release".
//
// Names compare by their PEP 503 canonical form: lowercase, with runs of
// "-", "_" and "." collapsed to a single "-". See [Normalize].
package spec

import (
	"fmt"
	"regexp"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/matzehuels/condapip/pkg/errors"
)

// Op is a version comparison operator.
type Op string

// Supported operators. OpCondaEqual is the conda prefix match "=".
const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLessEqual    Op = "<="
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpGreater      Op = ">"
	OpCompatible   Op = "~="
	OpArbitrary    Op = "==="
	OpCondaEqual   Op = "="
)

// operators is ordered so that longer operators match before their prefixes.
var operators = []Op{
	OpArbitrary, OpCompatible, OpEqual, OpNotEqual,
	OpLessEqual, OpGreaterEqual, OpLess, OpGreater, OpCondaEqual,
}

// Constraint is a single operator/version pair such as ">=1.0".
type Constraint struct {
	Op      Op
	Version string
}

func (c Constraint) String() string { return string(c.Op) + c.Version }

// Specifier is a parsed package specifier. The zero value is not valid;
// use [Parse].
type Specifier struct {
	Name        string       // Name as written by the user
	Extras      []string     // Normalized extras, e.g. ["socks"]
	Constraints []Constraint // Version constraints in source order
	Marker      string       // PEP 508 environment marker, verbatim
	URL         string       // Direct reference for "name @ url"
}

var (
	nameRE    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)
	versionRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.*+!_-]*$`)
	foldRE    = regexp.MustCompile(`[-_.]+`)
)

// Normalize returns the PEP 503 canonical form of a package name.
// Normalize is idempotent.
func Normalize(name string) string {
	return strings.ToLower(foldRE.ReplaceAllString(strings.TrimSpace(name), "-"))
}

// Parse parses a PyPI (PEP 508) or conda-style specifier.
// Malformed input yields an error with code [errors.ErrCodeInvalidSpec].
func Parse(raw string) (*Specifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "empty specifier")
	}

	var spec Specifier
	if i := strings.IndexByte(s, ';'); i >= 0 {
		spec.Marker = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
		if spec.Marker == "" {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: empty environment marker", raw)
		}
	}

	name := nameRE.FindString(s)
	if name == "" {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: missing package name", raw)
	}
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: %s", raw, errors.UserMessage(err))
	}
	spec.Name = name
	rest := strings.TrimSpace(s[len(name):])

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: unterminated extras", raw)
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			if nameRE.FindString(extra) != extra {
				return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: invalid extra %q", raw, extra)
			}
			spec.Extras = append(spec.Extras, Normalize(extra))
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	if strings.HasPrefix(rest, "@") {
		spec.URL = strings.TrimSpace(rest[1:])
		if spec.URL == "" {
			return nil, errors.New(errors.ErrCodeInvalidSpec, "%q: empty URL", raw)
		}
		return &spec, nil
	}

	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if rest == "" {
		return &spec, nil
	}

	for _, clause := range strings.Split(rest, ",") {
		c, err := parseConstraint(strings.TrimSpace(clause))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidSpec, err, "%q", raw)
		}
		spec.Constraints = append(spec.Constraints, c)
	}
	return &spec, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(raw string) *Specifier {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func parseConstraint(clause string) (Constraint, error) {
	for _, op := range operators {
		if !strings.HasPrefix(clause, string(op)) {
			continue
		}
		version := strings.TrimSpace(clause[len(op):])
		if !versionRE.MatchString(version) {
			return Constraint{}, fmt.Errorf("invalid version %q", version)
		}
		return Constraint{Op: op, Version: version}, nil
	}
	return Constraint{}, fmt.Errorf("invalid constraint %q", clause)
}

// Normalized returns the canonical package name.
func (s *Specifier) Normalized() string {
	return Normalize(s.Name)
}

// HasExtras reports whether extras were requested.
func (s *Specifier) HasExtras() bool { return len(s.Extras) > 0 }

// String renders the specifier as PEP 508 text suitable for pip.
// The conda prefix form "=1.20" is rendered as "==1.20.*".
func (s *Specifier) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Extras) > 0 {
		b.WriteString("[" + strings.Join(s.Extras, ",") + "]")
	}
	if s.URL != "" {
		b.WriteString(" @ " + s.URL)
	} else {
		parts := make([]string, 0, len(s.Constraints))
		for _, c := range s.Constraints {
			if c.Op == OpCondaEqual {
				parts = append(parts, string(OpEqual)+wildcard(c.Version))
				continue
			}
			parts = append(parts, c.String())
		}
		b.WriteString(strings.Join(parts, ","))
	}
	if s.Marker != "" {
		if s.URL != "" {
			b.WriteString(" ")
		}
		b.WriteString("; " + s.Marker)
	}
	return b.String()
}

// CondaString renders the specifier as a conda match spec using name as the
// package name. Extras, markers and URLs have no conda equivalent and are dropped.
//
//	build>=1     -> python-build>=1   (with name "python-build")
//	foo~=1.4.2   -> foo>=1.4.2,1.4.*
//	foo==1.2.*   -> foo=1.2
//	numpy=1.20   -> numpy=1.20
func (s *Specifier) CondaString(name string) string {
	parts := make([]string, 0, len(s.Constraints))
	for _, c := range s.Constraints {
		switch c.Op {
		case OpCompatible:
			parts = append(parts, ">="+c.Version)
			if segs := strings.Split(c.Version, "."); len(segs) > 1 {
				parts = append(parts, strings.Join(segs[:len(segs)-1], ".")+".*")
			}
		case OpArbitrary:
			parts = append(parts, "=="+c.Version)
		case OpEqual:
			if v, ok := strings.CutSuffix(c.Version, ".*"); ok {
				parts = append(parts, "="+v)
			} else {
				parts = append(parts, c.String())
			}
		default:
			parts = append(parts, c.String())
		}
	}
	return name + strings.Join(parts, ",")
}

// Satisfied reports whether version meets every constraint, using PEP 440
// ordering. A specifier without constraints is satisfied by any version.
// Versions that PEP 440 cannot parse only satisfy exact "==" matches.
func (s *Specifier) Satisfied(version string) bool {
	if len(s.Constraints) == 0 {
		return true
	}

	v, err := pep440.Parse(version)
	if err != nil {
		if len(s.Constraints) != 1 {
			return false
		}
		c := s.Constraints[0]
		return (c.Op == OpEqual || c.Op == OpArbitrary) && c.Version == version
	}

	parts := make([]string, 0, len(s.Constraints))
	for _, c := range s.Constraints {
		switch c.Op {
		case OpCondaEqual:
			parts = append(parts, string(OpEqual)+wildcard(c.Version))
		case OpArbitrary:
			parts = append(parts, string(OpEqual)+c.Version)
		default:
			parts = append(parts, c.String())
		}
	}
	ss, err := pep440.NewSpecifiers(strings.Join(parts, ","))
	if err != nil {
		return false
	}
	return ss.Check(v)
}

// wildcard turns a conda prefix version into a PEP 440 prefix match.
func wildcard(version string) string {
	if strings.HasSuffix(version, "*") {
		return version
	}
	return version + ".*"
}
