package theme

import (
	"fmt"
	"strings"
)

// State is the interaction state a rule applies in.
type State string

const (
	StateBase  State = ""
	StateHover State = "hover"
)

// Declaration is one CSS property.
type Declaration struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// Rule is one CSS rule targeting a region.
type Rule struct {
	Region       RegionName    `json:"region"`
	Selectors    []string      `json:"selectors"`
	State        State         `json:"state,omitempty"`
	Declarations []Declaration `json:"declarations"`
}

// Sheet is a resolved theme: the full token set and the ordered rules.
type Sheet struct {
	Tokens TokenSet `json:"tokens"`
	Rules  []Rule   `json:"rules"`
}

// hoverLift is the whole of a hover rule: it raises the control and casts a
// shadow, nothing that moves surrounding content.
const hoverLift = "translateY(-2px)"

// Resolve validates set, fills missing tokens from Fallbacks and builds the
// sheet. The same set always yields the same sheet.
func Resolve(set TokenSet) (*Sheet, error) {
	if err := ValidateTokens(set); err != nil {
		return nil, err
	}
	full := set.Merge(Fallbacks())
	b := builder{tokens: full}

	for _, region := range Regions() {
		b.region(region)
	}
	return &Sheet{Tokens: full, Rules: b.rules}, nil
}

type builder struct {
	tokens TokenSet
	rules  []Rule
}

// ref references a token with its resolved value as fallback.
func (b *builder) ref(n TokenName) string {
	return fmt.Sprintf("var(%s, %s)", n.CSSVar(), b.tokens[n])
}

func (b *builder) accentGradient() string {
	return fmt.Sprintf("linear-gradient(135deg, %s 0%%, %s 100%%)", b.ref(PrimaryColor), b.ref(SecondaryBg))
}

// surface is the translucent treatment shared by cards and metric tiles.
func (b *builder) surface() []Declaration {
	return []Declaration{
		{"background", b.ref(CardBg)},
		{"backdrop-filter", "blur(10px)"},
		{"-webkit-backdrop-filter", "blur(10px)"},
		{"border", "1px solid rgba(255, 255, 255, 0.2)"},
		{"border-radius", "15px"},
		{"box-shadow", "0 8px 32px rgba(0, 0, 0, 0.1)"},
		{"transition", "transform 0.3s ease, box-shadow 0.3s ease"},
	}
}

func (b *builder) add(region RegionName, selectors []string, decls ...Declaration) {
	b.rules = append(b.rules, Rule{Region: region, Selectors: selectors, Declarations: decls})
}

func (b *builder) hover(r Region, shadow string) {
	sel := make([]string, len(r.Selectors))
	for i, s := range r.Selectors {
		sel[i] = s + ":hover"
	}
	b.rules = append(b.rules, Rule{
		Region:    r.Name,
		Selectors: sel,
		State:     StateHover,
		Declarations: []Declaration{
			{"transform", hoverLift},
			{"box-shadow", shadow},
		},
	})
}

func (b *builder) region(r Region) {
	switch r.Name {
	case RegionPage:
		b.add(r.Name, r.Selectors,
			Declaration{"background", b.ref(MainBg)},
			Declaration{"background-attachment", "fixed"},
			Declaration{"color", b.ref(TextColor)},
			Declaration{"color-scheme", colorScheme(b.tokens[MainBg])},
			Declaration{"font-family", `system-ui, -apple-system, "Segoe UI", Roboto, sans-serif`},
		)
	case RegionSidebar:
		b.add(r.Name, r.Selectors,
			Declaration{"background", b.ref(SidebarBg)},
			Declaration{"color", b.ref(SidebarText)},
		)
		b.add(r.Name, []string{".sidebar h2", ".sidebar h3", ".sidebar label", ".sidebar p"},
			Declaration{"color", b.ref(SidebarText)},
		)
	case RegionHeader:
		b.add(r.Name, r.Selectors,
			Declaration{"background", b.accentGradient()},
			Declaration{"color", "#ffffff"},
			Declaration{"padding", "2rem"},
			Declaration{"border-radius", "15px"},
			Declaration{"text-align", "center"},
			Declaration{"box-shadow", "0 10px 30px rgba(0, 0, 0, 0.2)"},
		)
	case RegionCard:
		b.add(r.Name, r.Selectors, append(b.surface(), Declaration{"padding", "1.5rem"})...)
		b.hover(r, "0 12px 40px rgba(0, 0, 0, 0.15)")
	case RegionMetric:
		b.add(r.Name, r.Selectors, append(b.surface(),
			Declaration{"padding", "1rem"},
			Declaration{"text-align", "center"})...)
		b.hover(r, "0 12px 40px rgba(0, 0, 0, 0.15)")
	case RegionProgress:
		b.add(r.Name, r.Selectors,
			Declaration{"background", "rgba(255, 255, 255, 0.1)"},
			Declaration{"border-radius", "10px"},
			Declaration{"overflow", "hidden"},
		)
		b.add(r.Name, []string{".progress > .bar"},
			Declaration{"background", b.accentGradient()},
			Declaration{"height", "8px"},
		)
	case RegionButton:
		b.add(r.Name, r.Selectors,
			Declaration{"background", b.accentGradient()},
			Declaration{"color", "#ffffff"},
			Declaration{"border", "none"},
			Declaration{"border-radius", "25px"},
			Declaration{"padding", "0.75rem 2rem"},
			Declaration{"font-weight", "600"},
			Declaration{"cursor", "pointer"},
			Declaration{"box-shadow", "0 4px 15px rgba(0, 0, 0, 0.2)"},
			Declaration{"transition", "transform 0.3s ease, box-shadow 0.3s ease"},
		)
		b.hover(r, "0 8px 25px "+shadowColor(b.tokens[PrimaryColor], 0.4))
	case RegionStatusSuccess, RegionStatusError, RegionStatusInfo, RegionStatusWarning:
		p := statusPalettes[r.Name]
		b.add(r.Name, r.Selectors,
			Declaration{"background", fmt.Sprintf("linear-gradient(135deg, %s 0%%, %s 100%%)", p.from, p.to)},
			Declaration{"color", p.text},
			Declaration{"border-left", "5px solid " + p.edge},
			Declaration{"border-radius", "10px"},
			Declaration{"padding", "1rem"},
		)
	case RegionCode:
		b.add(r.Name, r.Selectors,
			Declaration{"background", "rgba(0, 0, 0, 0.85)"},
			Declaration{"color", "#f8f8f2"},
			Declaration{"border-radius", "8px"},
			Declaration{"font-family", `"JetBrains Mono", "Fira Code", monospace`},
		)
		b.add(r.Name, []string{"pre"},
			Declaration{"padding", "1rem"},
			Declaration{"overflow-x", "auto"},
		)
	case RegionFileDrop:
		b.add(r.Name, r.Selectors,
			Declaration{"background", b.ref(CardBg)},
			Declaration{"border", "2px dashed " + b.ref(PrimaryColor)},
			Declaration{"border-radius", "15px"},
			Declaration{"padding", "2rem"},
			Declaration{"text-align", "center"},
			Declaration{"transition", "transform 0.3s ease, box-shadow 0.3s ease"},
		)
		b.hover(r, "0 8px 25px "+shadowColor(b.tokens[PrimaryColor], 0.3))
	case RegionTabs:
		b.add(r.Name, r.Selectors,
			Declaration{"display", "flex"},
			Declaration{"gap", "0.5rem"},
			Declaration{"background", b.ref(CardBg)},
			Declaration{"border-radius", "10px"},
			Declaration{"padding", "0.5rem"},
		)
		b.add(r.Name, []string{".tabs .tab[aria-selected=true]"},
			Declaration{"background", b.accentGradient()},
			Declaration{"color", "#ffffff"},
			Declaration{"border-radius", "8px"},
		)
	}
}

// CSS renders the :root token block followed by every rule.
func (s *Sheet) CSS() string {
	var sb strings.Builder
	sb.WriteString(":root {\n")
	for _, n := range AllTokens() {
		fmt.Fprintf(&sb, "  %s: %s;\n", n.CSSVar(), s.Tokens[n])
	}
	sb.WriteString("}\n")
	for _, r := range s.Rules {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(r.Selectors, ", "))
		sb.WriteString(" {\n")
		for _, d := range r.Declarations {
			fmt.Fprintf(&sb, "  %s: %s;\n", d.Property, d.Value)
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

// RulesFor returns the rules of one region, base rules first.
func (s *Sheet) RulesFor(region RegionName) []Rule {
	var out []Rule
	for _, r := range s.Rules {
		if r.Region == region {
			out = append(out, r)
		}
	}
	return out
}

// Sheet resolves the theme's tokens.
func (t Theme) Sheet() (*Sheet, error) {
	return Resolve(t.Tokens)
}
