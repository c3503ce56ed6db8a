// Package theme maps a set of design tokens onto the CSS rules of the
// structura dashboard.
//
// A theme is seven named values (colours or gradients). Resolve turns a
// token set into a Sheet: a :root block declaring every token as a custom
// property, followed by one or more rules per dashboard region. Rules only
// reference tokens through var(--token, fallback), so a missing token never
// leaves a property unresolved. Status boxes use fixed greyscale gradients
// and do not depend on the token set at all.
package theme

import (
	"maps"
	"strings"
)

// TokenName is a semantic design token.
type TokenName string

const (
	PrimaryColor TokenName = "primary-color"
	SecondaryBg  TokenName = "secondary-bg"
	MainBg       TokenName = "main-bg"
	CardBg       TokenName = "card-bg"
	TextColor    TokenName = "text-color"
	SidebarBg    TokenName = "sidebar-bg"
	SidebarText  TokenName = "sidebar-text"
)

// AllTokens lists the token catalogue in declaration order.
func AllTokens() []TokenName {
	return []TokenName{MainBg, SidebarBg, CardBg, TextColor, SidebarText, PrimaryColor, SecondaryBg}
}

// Known reports whether n is in the catalogue.
func (n TokenName) Known() bool {
	for _, t := range AllTokens() {
		if t == n {
			return true
		}
	}
	return false
}

// AcceptsGradient reports whether the token may hold a gradient rather than
// a plain colour. Background tokens may; text and accent tokens may not.
func (n TokenName) AcceptsGradient() bool {
	return strings.HasSuffix(string(n), "-bg")
}

// CSSVar is the custom property name, e.g. "--main-bg".
func (n TokenName) CSSVar() string { return "--" + string(n) }

// ParseTokenName accepts "main-bg", "main_bg" and "--main-bg".
func ParseTokenName(s string) (TokenName, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "--")
	n := TokenName(strings.ReplaceAll(s, "_", "-"))
	return n, n.Known()
}

// TokenSet maps tokens to CSS values.
type TokenSet map[TokenName]string

// Clone returns an independent copy.
func (s TokenSet) Clone() TokenSet {
	if s == nil {
		return TokenSet{}
	}
	return maps.Clone(s)
}

// Merge returns a copy of s where every token that is missing or blank is
// taken from fallback.
func (s TokenSet) Merge(fallback TokenSet) TokenSet {
	out := s.Clone()
	for _, n := range AllTokens() {
		if strings.TrimSpace(out[n]) == "" {
			if v, ok := fallback[n]; ok {
				out[n] = v
			}
		}
	}
	return out
}

// Missing lists catalogue tokens without a value, in catalogue order.
func (s TokenSet) Missing() []TokenName {
	var out []TokenName
	for _, n := range AllTokens() {
		if strings.TrimSpace(s[n]) == "" {
			out = append(out, n)
		}
	}
	return out
}

// Fallbacks is the token set used when a theme omits a token, and the
// fallback inside every var() reference. It is the default theme's set.
func Fallbacks() TokenSet {
	return TokenSet{
		MainBg:       "linear-gradient(135deg, #000000 0%, #1a1a1a 50%, #000000 100%)",
		SidebarBg:    "linear-gradient(180deg, #000000 0%, #1a1a1a 100%)",
		CardBg:       "rgba(30, 30, 30, 0.95)",
		TextColor:    "#e0e0e0",
		SidebarText:  "#e0e0e0",
		PrimaryColor: "#808080",
		SecondaryBg:  "#404040",
	}
}
