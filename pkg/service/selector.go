package service

import "strings"

// Selector is an optional value chosen by the caller. The zero Selector is
// unspecified and lets the resolver or factory decide.
type Selector struct {
	value string
	set   bool
}

// Auto returns the unspecified Selector.
func Auto() Selector { return Selector{} }

// Use returns a Selector fixed to v.
func Use(v string) Selector { return Selector{value: v, set: true} }

// ParseSelector converts a transport value. The empty string and "auto" (any
// case) are unspecified; everything else is used verbatim after trimming.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return Auto()
	}
	return Use(s)
}

// Value returns the selected value and whether one was specified.
func (s Selector) Value() (string, bool) { return s.value, s.set }

// IsAuto reports whether the Selector is unspecified.
func (s Selector) IsAuto() bool { return !s.set }

// String renders the Selector the way transports spell it.
func (s Selector) String() string {
	if !s.set {
		return "auto"
	}
	return s.value
}
