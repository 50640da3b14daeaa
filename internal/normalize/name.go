package normalize

import (
	"regexp"
	"strings"
)

// Person is the six-slot canonical decomposition of a raw donor name.
// Slot fields hold the uppercase working form with periods and commas
// stripped; hyphens and apostrophes are kept so compound surnames like
// SMITH-JONES and O'BRIEN stay one token. Display() renders a title-case
// form for presentation. The raw input is always retained for audit.
type Person struct {
	Prefix string
	First  string
	Middle string
	Last   string
	Suffix string
	Hint   string // nickname found in quotes or parentheses
	Full   string // comparison form of first + middle + last
	Raw    string
}

// IsEmpty reports whether no name slot was populated.
func (p Person) IsEmpty() bool {
	return p.First == "" && p.Middle == "" && p.Last == "" && p.Prefix == "" && p.Suffix == ""
}

// Display returns a title-case rendering of the parsed name.
func (p Person) Display() string {
	parts := []string{}
	for _, s := range []string{p.Prefix, p.First, p.Middle, p.Last, p.Suffix} {
		if s != "" {
			parts = append(parts, Title(s))
		}
	}
	return strings.Join(parts, " ")
}

// Default prefix vocabulary. Honorifics seen in NC BOE donor files. SR is
// deliberately absent: in these files it is the generational suffix, and a
// leading-prefix entry would swallow it.
var defaultPrefixes = []string{
	"MR", "MRS", "MS", "MISS", "DR", "REV", "HON",
	"JUDGE", "SEN", "REP", "GOV", "MAYOR", "PROF",
	"FR", "BROTHER", "SISTER", "PASTOR",
}

// Default suffix vocabulary. Generational and professional suffixes.
var defaultSuffixes = []string{
	"JR", "SR", "II", "III", "IV", "V", "VI", "VII", "VIII",
	"MD", "PHD", "ESQ", "CPA", "DDS", "RN", "JD", "DO",
	"MBA", "MPA", "PE", "RA", "AIA", "FAIA",
}

var reNickname = regexp.MustCompile(`["(]([^")]+)[")]`)

// NameParser splits raw donor names into canonical slots. The prefix and
// suffix vocabularies are fixed per parser instance so that parsing stays a
// pure function of its input.
type NameParser struct {
	prefixes map[string]bool
	suffixes map[string]bool
}

// NewNameParser creates a parser with the default vocabularies.
func NewNameParser() *NameParser {
	return NewNameParserWithVocab(defaultPrefixes, defaultSuffixes)
}

// NewNameParserWithVocab creates a parser with caller-supplied vocabularies.
// A nil slice falls back to the corresponding default.
func NewNameParserWithVocab(prefixes, suffixes []string) *NameParser {
	if prefixes == nil {
		prefixes = defaultPrefixes
	}
	if suffixes == nil {
		suffixes = defaultSuffixes
	}
	p := &NameParser{
		prefixes: make(map[string]bool, len(prefixes)),
		suffixes: make(map[string]bool, len(suffixes)),
	}
	for _, s := range prefixes {
		p.prefixes[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	for _, s := range suffixes {
		p.suffixes[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return p
}

// Parse splits a raw name string into canonical slots.
//
// A comma signals inverted order ("Last, First Middle") and is un-inverted
// before slot extraction. A quoted or parenthesized token is recorded as a
// hint, never merged into first/middle. A single leftover token is taken as
// the last name. Empty input yields an empty Person with only Raw set.
func (np *NameParser) Parse(raw string) Person {
	result := Person{Raw: raw}

	name := strings.ToUpper(strings.TrimSpace(raw))
	if name == "" {
		return result
	}

	// Extract nickname in quotes or parentheses.
	if m := reNickname.FindStringSubmatch(name); m != nil {
		result.Hint = strings.TrimSpace(m[1])
		name = reNickname.ReplaceAllString(name, " ")
	}

	// Strip periods before vocabulary checks ("DR." -> "DR").
	name = strings.ReplaceAll(name, ".", "")

	// Inverted order: "POPE, JAMES ARTHUR" -> "JAMES ARTHUR POPE".
	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		rest := strings.TrimSpace(name[idx+1:])
		name = strings.TrimSpace(rest + " " + last)
	}

	// Leftover commas become separators; other punctuation stays inside
	// its token so compound surnames survive slot extraction.
	name = strings.ReplaceAll(name, ",", " ")
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return result
	}

	if np.prefixes[parts[0]] {
		result.Prefix = parts[0]
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return result
	}

	if np.suffixes[parts[len(parts)-1]] {
		result.Suffix = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	switch len(parts) {
	case 0:
		// Prefix and/or suffix only.
	case 1:
		result.Last = parts[0]
	case 2:
		result.First = parts[0]
		result.Last = parts[1]
	default:
		result.First = parts[0]
		result.Last = parts[len(parts)-1]
		result.Middle = strings.Join(parts[1:len(parts)-1], " ")
	}

	result.Full = joinNonEmpty(result.First, result.Middle, result.Last)
	return result
}

// ComparisonForm normalizes a raw string for equality and hash operations:
// uppercase, punctuation stripped, whitespace collapsed.
func ComparisonForm(raw string) string {
	return stripPunctuation(strings.ToUpper(strings.TrimSpace(raw)))
}

// Title renders a comparison-form string in title case for display.
func Title(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
