package pep508

import (
	"regexp"
	"strings"

	"github.com/matzehuels/depwalk/pkg/errors"
)

// Environment resolves marker variables (os_name, python_version, ...)
// to their values in a concrete interpreter environment.
//
// Lookup reports ok=false for variables the environment does not define;
// evaluation then fails closed rather than guessing.
type Environment interface {
	Lookup(name string) (value string, ok bool)
}

// Requirement is one parsed dependency declaration.
// Immutable once parsed.
type Requirement struct {
	Name   string   // package name as written (not normalized)
	Extras []string // requested extras, in declaration order
	Marker *Marker  // environment marker, nil if unconditional
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?`)

// Parse parses a PEP 508 requirement string.
// Returns a MALFORMED_REQUIREMENT error on unparseable input.
func Parse(raw string) (Requirement, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Requirement{}, errors.New(errors.ErrCodeMalformedRequirement, "empty requirement")
	}

	name := nameRE.FindString(s)
	if name == "" {
		return Requirement{}, errors.New(errors.ErrCodeMalformedRequirement, "no package name in %q", raw)
	}
	rest := s[len(name):]

	req := Requirement{Name: name}

	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return Requirement{}, errors.New(errors.ErrCodeMalformedRequirement, "unterminated extras in %q", raw)
		}
		for _, e := range strings.Split(rest[1:end], ",") {
			if e = strings.TrimSpace(e); e != "" {
				req.Extras = append(req.Extras, e)
			}
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	spec, marker, err := splitMarker(rest)
	if err != nil {
		return Requirement{}, errors.Wrap(errors.ErrCodeMalformedRequirement, err, "requirement %q", raw)
	}
	if err := checkSpecifier(spec); err != nil {
		return Requirement{}, errors.Wrap(errors.ErrCodeMalformedRequirement, err, "requirement %q", raw)
	}

	if marker != "" {
		m, err := ParseMarker(marker)
		if err != nil {
			return Requirement{}, err
		}
		req.Marker = m
	}

	return req, nil
}

// Applies reports whether the requirement applies in env.
// A requirement with no marker always applies. A marker referencing a
// variable env does not define returns false together with an
// UNSUPPORTED_MARKER error so the caller can log the fail-closed decision.
func (r Requirement) Applies(env Environment) (bool, error) {
	if r.Marker == nil {
		return true, nil
	}
	return r.Marker.Eval(env)
}

// splitMarker splits "specifier ; marker" at the first semicolon that is
// not inside a quoted string. Markers may quote arbitrary text, so a
// naive strings.Index would split inside string literals.
func splitMarker(s string) (spec, marker string, err error) {
	var quote rune
	for i, c := range s {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), nil
		}
	}
	if quote != 0 {
		return "", "", errors.New(errors.ErrCodeMalformedRequirement, "unterminated string literal")
	}
	return strings.TrimSpace(s), "", nil
}

var specifierRE = regexp.MustCompile(`^\(?\s*((===?|~=|!=|<=?|>=?)\s*[A-Za-z0-9*._+!-]+\s*,?\s*)*\)?$`)

// checkSpecifier validates the version-specifier section syntactically.
// depwalk never resolves versions, but garbage here means the whole
// requirement string is untrustworthy.
func checkSpecifier(spec string) error {
	if spec == "" {
		return nil
	}
	// URL requirements (name @ https://...) carry no version specifier.
	if strings.HasPrefix(spec, "@") {
		return nil
	}
	if !specifierRE.MatchString(spec) {
		return errors.New(errors.ErrCodeMalformedRequirement, "invalid version specifier %q", spec)
	}
	return nil
}
