package theme

// RegionName names one area of the dashboard.
type RegionName string

const (
	RegionPage          RegionName = "page"
	RegionSidebar       RegionName = "sidebar"
	RegionHeader        RegionName = "header"
	RegionCard          RegionName = "card"
	RegionProgress      RegionName = "progress"
	RegionButton        RegionName = "button"
	RegionStatusSuccess RegionName = "status-success"
	RegionStatusError   RegionName = "status-error"
	RegionStatusInfo    RegionName = "status-info"
	RegionStatusWarning RegionName = "status-warning"
	RegionCode          RegionName = "code"
	RegionFileDrop      RegionName = "file-drop"
	RegionMetric        RegionName = "metric"
	RegionTabs          RegionName = "tabs"
)

// Region is a catalogue entry: the selectors the page markup must carry for
// the region's rules to apply, and whether it reacts to hover.
type Region struct {
	Name        RegionName
	Selectors   []string
	Interactive bool
}

// Regions returns the region catalogue in rendering order.
func Regions() []Region {
	return []Region{
		{Name: RegionPage, Selectors: []string{"body", ".app"}},
		{Name: RegionSidebar, Selectors: []string{".sidebar"}},
		{Name: RegionHeader, Selectors: []string{".main-header"}},
		{Name: RegionCard, Selectors: []string{".card"}, Interactive: true},
		{Name: RegionProgress, Selectors: []string{".progress"}},
		{Name: RegionButton, Selectors: []string{".btn", "button[type=submit]"}, Interactive: true},
		{Name: RegionStatusSuccess, Selectors: []string{".status-success"}},
		{Name: RegionStatusError, Selectors: []string{".status-error"}},
		{Name: RegionStatusInfo, Selectors: []string{".status-info"}},
		{Name: RegionStatusWarning, Selectors: []string{".status-warning"}},
		{Name: RegionCode, Selectors: []string{"pre", "code"}},
		{Name: RegionFileDrop, Selectors: []string{".file-drop"}, Interactive: true},
		{Name: RegionMetric, Selectors: []string{".metric"}, Interactive: true},
		{Name: RegionTabs, Selectors: []string{".tabs"}},
	}
}

// LookupRegion returns the catalogue entry for name.
func LookupRegion(name RegionName) (Region, bool) {
	for _, r := range Regions() {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// statusPalette holds the fixed greyscale treatment of status boxes.
type statusPalette struct {
	from, to, text, edge string
}

var statusPalettes = map[RegionName]statusPalette{
	RegionStatusSuccess: {from: "#e0e0e0", to: "#bdbdbd", text: "#212121", edge: "#616161"},
	RegionStatusError:   {from: "#424242", to: "#212121", text: "#f5f5f5", edge: "#000000"},
	RegionStatusInfo:    {from: "#9e9e9e", to: "#757575", text: "#ffffff", edge: "#424242"},
	RegionStatusWarning: {from: "#bdbdbd", to: "#9e9e9e", text: "#212121", edge: "#616161"},
}
