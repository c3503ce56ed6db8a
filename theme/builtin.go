package theme

import "fmt"

// DefaultID is the theme used when none is selected.
const DefaultID = "custom_blue"

// Theme is a named token set.
type Theme struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Tokens TokenSet `json:"tokens" yaml:"tokens"`
}

// Preview is the inline style of the small swatch shown in the theme
// picker: the theme's page background with its text colour.
func (t Theme) Preview() string {
	set := t.Tokens.Merge(Fallbacks())
	return fmt.Sprintf("background: %s; color: %s;", set[MainBg], set[TextColor])
}

// Builtin returns the shipped themes, default first.
func Builtin() []Theme {
	lightCard := "rgba(255, 255, 255, 0.95)"
	return []Theme{
		{ID: "custom_blue", Name: "Pure Black & Grey Theme", Tokens: Fallbacks()},
		{ID: "dark_blue", Name: "Professional Dark Blue", Tokens: TokenSet{
			MainBg:       "linear-gradient(135deg, #1e3c72 0%, #2a5298 50%, #1e3c72 100%)",
			SidebarBg:    "linear-gradient(180deg, #1e3c72 0%, #2a5298 100%)",
			CardBg:       lightCard,
			TextColor:    "rgba(255, 255, 255, 0.9)",
			SidebarText:  "white",
			PrimaryColor: "#667eea",
			SecondaryBg:  "#2a5298",
		}},
		{ID: "dark_gray", Name: "Corporate Dark Gray", Tokens: TokenSet{
			MainBg:       "linear-gradient(135deg, #2c3e50 0%, #34495e 50%, #2c3e50 100%)",
			SidebarBg:    "linear-gradient(180deg, #2c3e50 0%, #34495e 100%)",
			CardBg:       lightCard,
			TextColor:    "rgba(255, 255, 255, 0.9)",
			SidebarText:  "white",
			PrimaryColor: "#667eea",
			SecondaryBg:  "#34495e",
		}},
		{ID: "dark_green", Name: "Business Dark Green", Tokens: TokenSet{
			MainBg:       "linear-gradient(135deg, #1a4d2e 0%, #2d5a3d 50%, #1a4d2e 100%)",
			SidebarBg:    "linear-gradient(180deg, #1a4d2e 0%, #2d5a3d 100%)",
			CardBg:       lightCard,
			TextColor:    "rgba(255, 255, 255, 0.9)",
			SidebarText:  "white",
			PrimaryColor: "#667eea",
			SecondaryBg:  "#2d5a3d",
		}},
		{ID: "light_blue", Name: "Light Professional Blue", Tokens: TokenSet{
			MainBg:       "linear-gradient(135deg, #e3f2fd 0%, #bbdefb 50%, #e3f2fd 100%)",
			SidebarBg:    "linear-gradient(180deg, #1976d2 0%, #1565c0 100%)",
			CardBg:       lightCard,
			TextColor:    "rgba(0, 0, 0, 0.8)",
			SidebarText:  "white",
			PrimaryColor: "#667eea",
			SecondaryBg:  "#1565c0",
		}},
		{ID: "classic_white", Name: "Classic White", Tokens: TokenSet{
			MainBg:       "linear-gradient(135deg, #f8f9fa 0%, #e9ecef 50%, #f8f9fa 100%)",
			SidebarBg:    "linear-gradient(180deg, #6c757d 0%, #495057 100%)",
			CardBg:       lightCard,
			TextColor:    "rgba(0, 0, 0, 0.8)",
			SidebarText:  "white",
			PrimaryColor: "#667eea",
			SecondaryBg:  "#495057",
		}},
	}
}

// Lookup returns the builtin theme with the given id.
func Lookup(id string) (Theme, error) {
	for _, t := range Builtin() {
		if t.ID == id {
			return t, nil
		}
	}
	return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, id)
}
