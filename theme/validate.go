package theme

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"github.com/gorilla/css/scanner"
	"github.com/lucasb-eyer/go-colorful"
)

const maxTokenValue = 256

// functions a token value may call.
var allowedFuncs = map[string]bool{
	"rgb(":             true,
	"rgba(":            true,
	"hsl(":             true,
	"hsla(":            true,
	"linear-gradient(": true,
	"radial-gradient(": true,
}

var namedColors = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"gray":    "#808080",
	"grey":    "#808080",
	"silver":  "#c0c0c0",
	"red":     "#ff0000",
	"maroon":  "#800000",
	"orange":  "#ffa500",
	"yellow":  "#ffff00",
	"olive":   "#808000",
	"lime":    "#00ff00",
	"green":   "#008000",
	"aqua":    "#00ffff",
	"teal":    "#008080",
	"blue":    "#0000ff",
	"navy":    "#000080",
	"fuchsia": "#ff00ff",
	"purple":  "#800080",
}

// ValidateTokens checks every value in set. Unknown token names are
// rejected, as is any value that is not a plain colour or, for background
// tokens, a gradient of plain colours.
func ValidateTokens(set TokenSet) error {
	for n, v := range set {
		if !n.Known() {
			return fmt.Errorf("%w: unknown token %q", ErrInvalidToken, n)
		}
		if err := ValidateValue(n, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateValue checks a single token value. Blank values are accepted and
// later replaced by the fallback.
func ValidateValue(n TokenName, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if len(v) > maxTokenValue {
		return fmt.Errorf("%w: %s: value too long", ErrInvalidToken, n)
	}
	if err := scanSafe(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidToken, n, err)
	}
	if isGradient(v) {
		if !n.AcceptsGradient() {
			return fmt.Errorf("%w: %s does not accept a gradient", ErrInvalidToken, n)
		}
		if _, err := gradientStops(v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidToken, n, err)
		}
		return nil
	}
	if _, _, err := parseColor(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidToken, n, err)
	}
	return nil
}

// scanSafe tokenizes v and refuses anything that could close the
// declaration or pull in external content.
func scanSafe(v string) error {
	s := scanner.New(v)
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			return nil
		case scanner.TokenIdent, scanner.TokenHash, scanner.TokenNumber,
			scanner.TokenPercentage, scanner.TokenDimension, scanner.TokenS:
		case scanner.TokenFunction:
			if !allowedFuncs[strings.ToLower(tok.Value)] {
				return fmt.Errorf("function %q not allowed", tok.Value)
			}
		case scanner.TokenChar:
			switch tok.Value {
			case ",", "(", ")", "/", ".":
			default:
				return fmt.Errorf("character %q not allowed", tok.Value)
			}
		default:
			return fmt.Errorf("%s %q not allowed", tok.Type, tok.Value)
		}
	}
}

func isGradient(v string) bool {
	l := strings.ToLower(v)
	return strings.HasPrefix(l, "linear-gradient(") || strings.HasPrefix(l, "radial-gradient(")
}

// splitArgs splits the arguments of fn(...) on top-level commas.
func splitArgs(v string) (string, []string, error) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return "", nil, fmt.Errorf("malformed function %q", v)
	}
	name := strings.ToLower(strings.TrimSpace(v[:open]))
	body := v[open+1 : len(v)-1]
	var args []string
	depth, start := 0, 0
	for i, c := range body {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "", nil, fmt.Errorf("unbalanced parentheses in %q", v)
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return "", nil, fmt.Errorf("unbalanced parentheses in %q", v)
	}
	args = append(args, strings.TrimSpace(body[start:]))
	return name, args, nil
}

// gradientStops returns the colours of a gradient's stops. A leading angle
// or direction argument is skipped.
func gradientStops(v string) ([]colorful.Color, error) {
	_, args, err := splitArgs(v)
	if err != nil {
		return nil, err
	}
	var stops []colorful.Color
	for i, a := range args {
		c, err := parseStop(a)
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, err
		}
		stops = append(stops, c)
	}
	if len(stops) < 2 {
		return nil, fmt.Errorf("gradient needs at least two colour stops")
	}
	return stops, nil
}

// parseStop parses "colour [position]".
func parseStop(s string) (colorful.Color, error) {
	if c, _, err := parseColor(s); err == nil {
		return c, nil
	}
	cut := strings.LastIndexByte(s, ' ')
	if cut < 0 || strings.LastIndexByte(s, ')') > cut {
		return colorful.Color{}, fmt.Errorf("bad colour stop %q", s)
	}
	pos := strings.TrimSpace(s[cut+1:])
	if !strings.HasSuffix(pos, "%") && !strings.HasSuffix(pos, "px") {
		return colorful.Color{}, fmt.Errorf("bad stop position %q", pos)
	}
	c, _, err := parseColor(strings.TrimSpace(s[:cut]))
	return c, err
}

// parseColor parses hex, rgb(a), hsl(a) and basic named colours. It returns
// the colour and its alpha.
func parseColor(s string) (colorful.Color, float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return colorful.Color{}, 0, nil
	}
	if hex, ok := namedColors[s]; ok {
		s = hex
	}
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, 0, err
		}
		return c, 1, nil
	}
	name, args, err := splitArgs(s)
	if err != nil {
		return colorful.Color{}, 0, fmt.Errorf("unrecognised colour %q", s)
	}
	alpha := 1.0
	switch name {
	case "rgb", "rgba":
		if len(args) != 3 && len(args) != 4 {
			return colorful.Color{}, 0, fmt.Errorf("%s() takes 3 or 4 arguments", name)
		}
		var ch [3]float64
		for i := range ch {
			f, err := number(args[i], 255)
			if err != nil {
				return colorful.Color{}, 0, err
			}
			ch[i] = f / 255
		}
		if len(args) == 4 {
			if alpha, err = number(args[3], 1); err != nil {
				return colorful.Color{}, 0, err
			}
		}
		return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, alpha, nil
	case "hsl", "hsla":
		if len(args) != 3 && len(args) != 4 {
			return colorful.Color{}, 0, fmt.Errorf("%s() takes 3 or 4 arguments", name)
		}
		h, err := number(strings.TrimSuffix(args[0], "deg"), 360)
		if err != nil {
			return colorful.Color{}, 0, err
		}
		sat, err := percent(args[1])
		if err != nil {
			return colorful.Color{}, 0, err
		}
		light, err := percent(args[2])
		if err != nil {
			return colorful.Color{}, 0, err
		}
		if len(args) == 4 {
			if alpha, err = number(args[3], 1); err != nil {
				return colorful.Color{}, 0, err
			}
		}
		return colorful.Hsl(h, sat, light), alpha, nil
	}
	return colorful.Color{}, 0, fmt.Errorf("unrecognised colour %q", s)
}

func number(s string, max float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > max {
		return 0, fmt.Errorf("channel %q out of range [0, %g]", s, max)
	}
	return f, nil
}

func percent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("expected percentage, got %q", s)
	}
	f, err := number(strings.TrimSuffix(s, "%"), 100)
	return f / 100, err
}

// representative returns a single colour for a token value: the colour
// itself, or the Lab-space average of a gradient's stops.
func representative(v string) (colorful.Color, bool) {
	if isGradient(v) {
		stops, err := gradientStops(v)
		if err != nil {
			return colorful.Color{}, false
		}
		c := stops[0]
		for i, s := range stops[1:] {
			c = c.BlendLab(s, 1/float64(i+2))
		}
		return c.Clamped(), true
	}
	c, _, err := parseColor(v)
	return c, err == nil
}

// IsDark reports whether a background value reads as dark.
func IsDark(v string) bool {
	c, ok := representative(v)
	if !ok {
		return true
	}
	l, _, _ := c.Lab()
	return l < 0.5
}

func colorScheme(bg string) string {
	if IsDark(bg) {
		return "dark"
	}
	return "light"
}

// shadowColor turns the accent colour into a translucent shadow.
func shadowColor(accent string, alpha float64) string {
	c, _, err := parseColor(accent)
	if err != nil {
		return fmt.Sprintf("rgba(0, 0, 0, %g)", alpha)
	}
	r, g, b := c.Clamped().RGB255()
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", r, g, b, alpha)
}

// hoverProps are the only properties a hover rule may set.
var hoverProps = map[string]bool{"transform": true, "box-shadow": true}

// Validate parses the rendered stylesheet and checks it is complete: a
// :root block defining every token, at least one rule per region, only
// declared tokens referenced, each with a fallback, and hover rules that
// never alter layout.
func (s *Sheet) Validate() error {
	sheet, err := parser.Parse(s.CSS())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	if len(sheet.Rules) == 0 || sheet.Rules[0].Prelude != ":root" {
		return fmt.Errorf("%w: missing :root block", ErrInvalidSheet)
	}
	declared := make(map[string]bool)
	for _, d := range sheet.Rules[0].Declarations {
		declared[d.Property] = true
	}
	for _, n := range AllTokens() {
		if !declared[n.CSSVar()] {
			return fmt.Errorf("%w: token %s not declared", ErrInvalidSheet, n)
		}
	}

	selectors := make(map[string]bool)
	for _, r := range sheet.Rules[1:] {
		if r.Kind != css.QualifiedRule {
			return fmt.Errorf("%w: unexpected %s", ErrInvalidSheet, r.Name)
		}
		hover := false
		for _, sel := range r.Selectors {
			selectors[strings.TrimSpace(sel)] = true
			if strings.HasSuffix(sel, ":hover") {
				hover = true
			}
		}
		for _, d := range r.Declarations {
			if hover && !hoverProps[d.Property] {
				return fmt.Errorf("%w: hover rule %q sets %s", ErrInvalidSheet, r.Prelude, d.Property)
			}
			if err := checkRefs(d.Value, declared); err != nil {
				return fmt.Errorf("%w: %s { %s }: %v", ErrInvalidSheet, r.Prelude, d.Property, err)
			}
		}
	}
	for _, region := range Regions() {
		found := false
		for _, sel := range region.Selectors {
			if selectors[sel] {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: region %s has no rule", ErrInvalidSheet, region.Name)
		}
	}
	return nil
}

// checkRefs verifies every var() in value names a declared property and
// carries a fallback.
func checkRefs(value string, declared map[string]bool) error {
	for {
		i := strings.Index(value, "var(")
		if i < 0 {
			return nil
		}
		value = value[i:]
		_, args, err := splitArgs(value[:closing(value)+1])
		if err != nil {
			return err
		}
		if !declared[args[0]] {
			return fmt.Errorf("undeclared token %s", args[0])
		}
		if len(args) < 2 || strings.TrimSpace(strings.Join(args[1:], ",")) == "" {
			return fmt.Errorf("%s has no fallback", args[0])
		}
		value = value[len("var("):]
	}
}

// closing returns the index of the parenthesis closing the first one in s.
func closing(s string) int {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s) - 1
}
