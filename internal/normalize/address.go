package normalize

import (
	"regexp"
	"strings"
)

// Address is the canonical decomposition of a raw donor address. Fields hold
// the uppercase comparison form; the raw input is retained for audit and is
// never discarded, even when nothing could be decomposed.
type Address struct {
	HouseNumber string
	Street      string
	Unit        string
	City        string
	State       string
	Zip         string // first five digits
	County      string
	Raw         string
}

// Street-type and directional words mapped to their USPS abbreviations.
var streetAbbrevs = map[string]string{
	"STREET":    "ST",
	"AVENUE":    "AVE",
	"BOULEVARD": "BLVD",
	"DRIVE":     "DR",
	"LANE":      "LN",
	"ROAD":      "RD",
	"COURT":     "CT",
	"CIRCLE":    "CIR",
	"PLACE":     "PL",
	"TERRACE":   "TER",
	"TRAIL":     "TRL",
	"HIGHWAY":   "HWY",
	"PARKWAY":   "PKWY",
	"NORTH":     "N",
	"SOUTH":     "S",
	"EAST":      "E",
	"WEST":      "W",
	"NORTHEAST": "NE",
	"NORTHWEST": "NW",
	"SOUTHEAST": "SE",
	"SOUTHWEST": "SW",
}

// Unit markers that introduce an apartment/suite designator.
var defaultUnitMarkers = []string{
	"APT", "APARTMENT", "UNIT", "STE", "SUITE", "BLDG", "BUILDING", "FL", "FLOOR", "LOT", "RM", "ROOM",
}

// Full state names mapped to two-letter codes. Covers the states seen in the
// NC BOE donation files; two-letter input passes through unchanged.
var stateAbbrevs = map[string]string{
	"NORTH CAROLINA":       "NC",
	"SOUTH CAROLINA":       "SC",
	"VIRGINIA":             "VA",
	"WEST VIRGINIA":        "WV",
	"GEORGIA":              "GA",
	"TENNESSEE":            "TN",
	"FLORIDA":              "FL",
	"ALABAMA":              "AL",
	"KENTUCKY":             "KY",
	"MARYLAND":             "MD",
	"DISTRICT OF COLUMBIA": "DC",
	"NEW YORK":             "NY",
	"NEW JERSEY":           "NJ",
	"PENNSYLVANIA":         "PA",
	"TEXAS":                "TX",
	"CALIFORNIA":           "CA",
}

var (
	reHouseNumber = regexp.MustCompile(`^(\d+)\b`)
	reDigits      = regexp.MustCompile(`\D`)
)

// AddressParser normalizes raw address components into canonical fields.
type AddressParser struct {
	streets     map[string]string
	states      map[string]string
	unitMarkers map[string]bool
	reUnit      *regexp.Regexp
}

// NewAddressParser creates a parser with the default abbreviation tables.
func NewAddressParser() *AddressParser {
	return NewAddressParserWithVocab(streetAbbrevs, stateAbbrevs, defaultUnitMarkers)
}

// NewAddressParserWithVocab creates a parser with caller-supplied tables.
// A nil table falls back to the corresponding default.
func NewAddressParserWithVocab(streets, states map[string]string, unitMarkers []string) *AddressParser {
	if streets == nil {
		streets = streetAbbrevs
	}
	if states == nil {
		states = stateAbbrevs
	}
	if unitMarkers == nil {
		unitMarkers = defaultUnitMarkers
	}
	p := &AddressParser{
		streets:     streets,
		states:      states,
		unitMarkers: make(map[string]bool, len(unitMarkers)),
	}
	markers := make([]string, 0, len(unitMarkers))
	for _, m := range unitMarkers {
		m = strings.ToUpper(strings.TrimSpace(m))
		p.unitMarkers[m] = true
		markers = append(markers, regexp.QuoteMeta(m))
	}
	p.reUnit = regexp.MustCompile(`\b(` + strings.Join(markers, "|") + `)\s+([\w-]+)\s*$`)
	return p
}

// Parse normalizes the street/city/state/zip components of a raw address.
// Segments that cannot be decomposed are left empty; the reassembled raw
// text is always retained.
func (ap *AddressParser) Parse(street, city, state, zip string) Address {
	result := Address{Raw: strings.TrimSpace(strings.Join(strings.Fields(street+" "+city+" "+state+" "+zip), " "))}

	s := strings.ToUpper(strings.TrimSpace(street))
	s = strings.NewReplacer(".", "", ",", "", "#", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	// Leading numeric run is the house number.
	if m := reHouseNumber.FindStringSubmatch(s); m != nil {
		result.HouseNumber = m[1]
		s = strings.TrimSpace(s[len(m[1]):])
	}

	// Trailing unit designator is split off before abbreviation mapping.
	if m := ap.reUnit.FindStringSubmatch(s); m != nil {
		result.Unit = m[1] + " " + m[2]
		s = strings.TrimSpace(ap.reUnit.ReplaceAllString(s, ""))
	}

	words := strings.Fields(s)
	for i, w := range words {
		if abbrev, ok := ap.streets[w]; ok {
			words[i] = abbrev
		}
	}
	result.Street = strings.Join(words, " ")

	result.City = normalizeCity(city)
	result.State = ap.normalizeState(state)
	result.Zip = NormalizeZip(zip)
	return result
}

// ParseWithCounty parses an address and carries a county name for the
// committee-matching variant's field-agreement check.
func (ap *AddressParser) ParseWithCounty(street, city, state, zip, county string) Address {
	addr := ap.Parse(street, city, state, zip)
	addr.County = strings.ToUpper(strings.TrimSpace(county))
	return addr
}

func normalizeCity(city string) string {
	c := strings.ToUpper(strings.TrimSpace(city))
	c = strings.Join(strings.Fields(c), " ")
	c = strings.Replace(c, "SAINT ", "ST ", 1)
	c = strings.Replace(c, "MOUNT ", "MT ", 1)
	c = strings.Replace(c, "FORT ", "FT ", 1)
	return c
}

func (ap *AddressParser) normalizeState(state string) string {
	st := strings.ToUpper(strings.TrimSpace(state))
	if len(st) == 2 {
		return st
	}
	if abbrev, ok := ap.states[st]; ok {
		return abbrev
	}
	return st
}

// NormalizeZip reduces a raw ZIP to its five-digit form. ZIP+4 input is
// truncated; short input is zero-padded to match the source files, which
// drop leading zeroes.
func NormalizeZip(zip string) string {
	digits := reDigits.ReplaceAllString(zip, "")
	if len(digits) >= 5 {
		return digits[:5]
	}
	if len(digits) > 0 {
		return strings.Repeat("0", 5-len(digits)) + digits
	}
	return ""
}
