// Package identifier normalizes user-supplied Steam identifiers taken from the
// request path.
package identifier

import (
	"strconv"
	"strings"
)

// Kind classifies a normalized identifier.
type Kind int

const (
	// KindVanity is a custom profile name that must be resolved to a Steam64 id.
	KindVanity Kind = iota
	// KindNumeric is a Steam64 id.
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "vanity"
}

// Identifier is a cleaned and classified identifier.
type Identifier struct {
	Raw   string
	Value string
	Kind  Kind
}

// Parse strips every character outside [A-Za-z0-9] from raw and classifies the
// remainder. Only a value that parses in full as an unsigned 64-bit integer is
// numeric; everything else, including the empty string, is a vanity name.
func Parse(raw string) Identifier {
	value := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, raw)

	kind := KindVanity
	if _, err := strconv.ParseUint(value, 10, 64); err == nil {
		kind = KindNumeric
	}
	return Identifier{Raw: raw, Value: value, Kind: kind}
}

// IsNumeric reports whether the identifier is a Steam64 id.
func (id Identifier) IsNumeric() bool { return id.Kind == KindNumeric }

// Valid reports whether anything usable survived normalization.
func (id Identifier) Valid() bool { return id.Value != "" }

func (id Identifier) String() string { return id.Value }
