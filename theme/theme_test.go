package theme

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestResolve_Deterministic(t *testing.T) {
	for _, th := range Builtin() {
		a, err := th.Sheet()
		if err != nil {
			t.Fatalf("%s: %v", th.ID, err)
		}
		b, _ := th.Sheet()
		if a.CSS() != b.CSS() {
			t.Fatalf("%s: two resolutions differ", th.ID)
		}
	}
}

func TestResolve_EveryBuiltinValidates(t *testing.T) {
	for _, th := range Builtin() {
		s, err := th.Sheet()
		if err != nil {
			t.Fatalf("%s: %v", th.ID, err)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("%s: %v", th.ID, err)
		}
	}
}

func TestResolve_EveryRegionHasRule(t *testing.T) {
	s, err := Resolve(Fallbacks())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range Regions() {
		if len(s.RulesFor(r.Name)) == 0 {
			t.Errorf("region %s has no rule", r.Name)
		}
	}
}

func TestResolve_MissingTokensFallBack(t *testing.T) {
	s, err := Resolve(TokenSet{PrimaryColor: "#ff0000"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Tokens.Missing()) != 0 {
		t.Fatalf("missing after resolve: %v", s.Tokens.Missing())
	}
	if s.Tokens[PrimaryColor] != "#ff0000" {
		t.Fatalf("primary overwritten: %q", s.Tokens[PrimaryColor])
	}
	if s.Tokens[MainBg] != Fallbacks()[MainBg] {
		t.Fatalf("main-bg = %q", s.Tokens[MainBg])
	}
}

func TestResolve_VarReferencesCarryFallback(t *testing.T) {
	s, err := Resolve(Fallbacks())
	if err != nil {
		t.Fatal(err)
	}
	css := s.CSS()
	if strings.Contains(css, "var(--main-bg)") {
		t.Fatal("var() without fallback")
	}
	if !strings.Contains(css, "var(--card-bg, rgba(30, 30, 30, 0.95))") {
		t.Fatalf("card reference not found:\n%s", css)
	}
}

func TestResolve_StatusBoxesIgnoreTokens(t *testing.T) {
	a, _ := Resolve(Fallbacks())
	light, _ := Lookup("classic_white")
	b, _ := light.Sheet()
	for _, region := range []RegionName{RegionStatusSuccess, RegionStatusError, RegionStatusInfo, RegionStatusWarning} {
		ra, rb := a.RulesFor(region), b.RulesFor(region)
		if len(ra) != 1 || len(rb) != 1 {
			t.Fatalf("%s: rules %d/%d", region, len(ra), len(rb))
		}
		if !slices.Equal(ra[0].Declarations, rb[0].Declarations) {
			t.Fatalf("%s differs between themes", region)
		}
		for _, d := range ra[0].Declarations {
			if strings.Contains(d.Value, "var(") {
				t.Fatalf("%s references a token: %s", region, d.Value)
			}
		}
	}
}

func TestResolve_HoverOnlyOnInteractiveRegions(t *testing.T) {
	s, _ := Resolve(Fallbacks())
	for _, r := range s.Rules {
		if r.State != StateHover {
			continue
		}
		reg, _ := LookupRegion(r.Region)
		if !reg.Interactive {
			t.Errorf("hover rule on %s", r.Region)
		}
		for _, sel := range r.Selectors {
			if !strings.HasSuffix(sel, ":hover") {
				t.Errorf("hover selector %q", sel)
			}
		}
		for _, d := range r.Declarations {
			if d.Property != "transform" && d.Property != "box-shadow" {
				t.Errorf("hover on %s sets %s", r.Region, d.Property)
			}
		}
	}
}

func TestResolve_CardAndMetricShareSurface(t *testing.T) {
	s, _ := Resolve(Fallbacks())
	card := s.RulesFor(RegionCard)[0].Declarations
	metric := s.RulesFor(RegionMetric)[0].Declarations
	for _, prop := range []string{"background", "backdrop-filter", "border", "border-radius"} {
		if value(card, prop) == "" || value(card, prop) != value(metric, prop) {
			t.Errorf("%s: card %q metric %q", prop, value(card, prop), value(metric, prop))
		}
	}
}

func TestResolve_ButtonShadowFollowsAccent(t *testing.T) {
	s, _ := Resolve(TokenSet{PrimaryColor: "#ff0000"})
	var hover Rule
	for _, r := range s.RulesFor(RegionButton) {
		if r.State == StateHover {
			hover = r
		}
	}
	if got := value(hover.Declarations, "box-shadow"); got != "0 8px 25px rgba(255, 0, 0, 0.4)" {
		t.Fatalf("box-shadow = %q", got)
	}
}

func TestResolve_ColorScheme(t *testing.T) {
	dark, _ := Resolve(Fallbacks())
	white, _ := Lookup("classic_white")
	light, _ := white.Sheet()
	if got := value(dark.RulesFor(RegionPage)[0].Declarations, "color-scheme"); got != "dark" {
		t.Fatalf("default scheme = %q", got)
	}
	if got := value(light.RulesFor(RegionPage)[0].Declarations, "color-scheme"); got != "light" {
		t.Fatalf("classic_white scheme = %q", got)
	}
}

func TestValidateTokens(t *testing.T) {
	ok := []TokenSet{
		{PrimaryColor: "#abc"},
		{PrimaryColor: "white"},
		{TextColor: "rgba(0, 0, 0, 0.8)"},
		{TextColor: "hsl(210, 50%, 40%)"},
		{MainBg: "linear-gradient(to right, #000 0%, rgba(1, 2, 3, 0.5) 100%)"},
		{CardBg: ""},
	}
	for _, set := range ok {
		if err := ValidateTokens(set); err != nil {
			t.Errorf("%v: %v", set, err)
		}
	}
	bad := []TokenSet{
		{PrimaryColor: "red; } body { display: none"},
		{MainBg: "url(http://evil.example/x.png)"},
		{MainBg: "expression(alert(1))"},
		{TextColor: "#000 /* x */"},
		{TextColor: "@import"},
		{PrimaryColor: "linear-gradient(#000, #fff)"},
		{TextColor: "rgb(300, 0, 0)"},
		{TextColor: "notacolour"},
		{MainBg: "linear-gradient(135deg, #000)"},
		{TokenName("border"): "#000"},
	}
	for _, set := range bad {
		if err := ValidateTokens(set); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%v: err = %v", set, err)
		}
	}
}

func TestResolve_RejectsInvalidTokens(t *testing.T) {
	if _, err := Resolve(TokenSet{PrimaryColor: "red;}"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v", err)
	}
}

func TestSheetValidate_DetectsMissingRegion(t *testing.T) {
	s, _ := Resolve(Fallbacks())
	var kept []Rule
	for _, r := range s.Rules {
		if r.Region != RegionTabs {
			kept = append(kept, r)
		}
	}
	s.Rules = kept
	if err := s.Validate(); !errors.Is(err, ErrInvalidSheet) {
		t.Fatalf("err = %v", err)
	}
}

func TestSheetValidate_DetectsLayoutHover(t *testing.T) {
	s, _ := Resolve(Fallbacks())
	s.Rules = append(s.Rules, Rule{
		Region:       RegionCard,
		Selectors:    []string{".card:hover"},
		State:        StateHover,
		Declarations: []Declaration{{"margin", "4px"}},
	})
	if err := s.Validate(); !errors.Is(err, ErrInvalidSheet) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseTokenName(t *testing.T) {
	for _, in := range []string{"main-bg", "main_bg", "--main-bg", " MAIN_BG "} {
		if n, ok := ParseTokenName(in); !ok || n != MainBg {
			t.Errorf("ParseTokenName(%q) = %q, %v", in, n, ok)
		}
	}
	if _, ok := ParseTokenName("border"); ok {
		t.Error("border accepted")
	}
}

func TestBuiltin(t *testing.T) {
	themes := Builtin()
	if len(themes) != 6 || themes[0].ID != DefaultID {
		t.Fatalf("builtins: %d, first %q", len(themes), themes[0].ID)
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownTheme) {
		t.Fatalf("err = %v", err)
	}
	th, _ := Lookup("dark_blue")
	if !strings.Contains(th.Preview(), "#1e3c72") {
		t.Fatalf("preview = %q", th.Preview())
	}
}

func TestRegistry_LoadDirAndStylesheet(t *testing.T) {
	dir := t.TempDir()
	yml := "name: Sunset\ntokens:\n  primary_color: \"#ff7f50\"\n  main-bg: \"linear-gradient(135deg, #ff7f50 0%, #2c1a4d 100%)\"\n"
	if err := os.WriteFile(filepath.Join(dir, "sunset.yaml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	if err != nil || n != 1 {
		t.Fatalf("LoadDir = %d, %v", n, err)
	}
	th, err := r.Get("sunset")
	if err != nil {
		t.Fatal(err)
	}
	if th.Name != "Sunset" || th.Tokens[PrimaryColor] != "#ff7f50" {
		t.Fatalf("theme = %+v", th)
	}
	list := r.List()
	if len(list) != 7 || list[6].ID != "sunset" {
		t.Fatalf("list len %d", len(list))
	}

	a, err := r.Stylesheet("sunset")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.Stylesheet("sunset")
	if a.ETag == "" || a.ETag != b.ETag {
		t.Fatalf("etag %q vs %q", a.ETag, b.ETag)
	}
	def, _ := r.Stylesheet(DefaultID)
	if def.ETag == a.ETag {
		t.Fatal("different themes share an etag")
	}
}

func TestRegistry_AddRejects(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(Theme{ID: DefaultID}); err == nil {
		t.Fatal("builtin replaced")
	}
	if err := r.Add(Theme{ID: "../x"}); err == nil {
		t.Fatal("bad id accepted")
	}
	if err := r.Add(Theme{ID: "x", Tokens: TokenSet{TextColor: "red;"}}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v", err)
	}
	if _, err := r.Stylesheet("missing"); !errors.Is(err, ErrUnknownTheme) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFile_UnknownToken(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yml")
	os.WriteFile(p, []byte("tokens:\n  border: \"#000\"\n"), 0o644)
	if _, err := LoadFile(p); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v", err)
	}
}

func value(decls []Declaration, prop string) string {
	for _, d := range decls {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

func TestRegistry_StylesheetRacingAddNotCached(t *testing.T) {
	r := NewRegistry()
	if err := r.Add(Theme{ID: "brand", Tokens: TokenSet{PrimaryColor: "#111111"}}); err != nil {
		t.Fatal(err)
	}
	r.afterRender = func(id string) {
		r.afterRender = nil
		if err := r.Add(Theme{ID: id, Tokens: TokenSet{PrimaryColor: "#222222"}}); err != nil {
			t.Error(err)
		}
	}
	stale, err := r.Stylesheet("brand")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stale.CSS, "#111111") {
		t.Fatal("first render should use the original tokens")
	}
	fresh, err := r.Stylesheet("brand")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fresh.CSS, "#222222") || fresh.ETag == stale.ETag {
		t.Error("stylesheet rendered before Add was cached over the new theme")
	}
}
