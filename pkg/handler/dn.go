package handler

import (
	"fmt"
	"strings"
)

// DNComponent is one type=value pair of a distinguished name.
type DNComponent struct {
	Type  string
	Value string
}

// DN is a parsed distinguished name, most specific component first:
// "uid=bob,ou=people,dc=example,dc=com" starts with {uid bob}.
type DN []DNComponent

// ParseError reports a distinguished name that could not be parsed.
type ParseError struct {
	Input     string
	Component string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid distinguished name %q: %s in %q", e.Input, e.Reason, e.Component)
}

// ParseDistinguishedName splits a DN on ',' and every component on '='.
// Components are kept verbatim: no trimming, case folding or escape handling.
// The empty string is the empty DN.
func ParseDistinguishedName(dn string) (DN, error) {
	if dn == "" {
		return DN{}, nil
	}

	components := strings.Split(dn, ",")
	parsed := make(DN, 0, len(components))
	for _, component := range components {
		pair := strings.Split(component, "=")
		switch {
		case len(pair) < 2:
			return nil, &ParseError{Input: dn, Component: component, Reason: "missing DN value"}
		case len(pair) > 2:
			return nil, &ParseError{Input: dn, Component: component, Reason: "too many elements"}
		}
		parsed = append(parsed, DNComponent{Type: pair[0], Value: pair[1]})
	}
	return parsed, nil
}

// Equal compares two DNs componentwise, in order.
func (d DN) Equal(other DN) bool {
	if len(d) != len(other) {
		return false
	}
	for i := range d {
		if d[i] != other[i] {
			return false
		}
	}
	return true
}

func (d DN) String() string {
	parts := make([]string, len(d))
	for i, c := range d {
		parts[i] = c.Type + "=" + c.Value
	}
	return strings.Join(parts, ",")
}

// IsSubtree reports whether candidate lies within base. DNs are aligned from
// their least specific end, so base must equal the trailing components of
// candidate. A DN is its own subtree.
func IsSubtree(candidate, base DN) bool {
	if len(candidate) < len(base) {
		return false
	}
	offset := len(candidate) - len(base)
	for i := range base {
		if candidate[offset+i] != base[i] {
			return false
		}
	}
	return true
}

// BaseDN is the directory root a server answers for, kept both parsed and in
// the exact text it was configured with.
type BaseDN struct {
	DN   DN
	Text string
}

// ParseBaseDN parses the configured base DN. Callers treat an error as fatal.
func ParseBaseDN(text string) (BaseDN, error) {
	dn, err := ParseDistinguishedName(text)
	if err != nil {
		return BaseDN{}, fmt.Errorf("invalid value for basedn in configuration: %w", err)
	}
	return BaseDN{DN: dn, Text: text}, nil
}
