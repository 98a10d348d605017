package domain

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// streetAbbreviations expands common street suffix and direction abbreviations
// so that "123 N Main St." and "123 North Main Street" share a natural key.
var streetAbbreviations = map[string]string{
	"ST":   "STREET",
	"STR":  "STREET",
	"AVE":  "AVENUE",
	"AV":   "AVENUE",
	"RD":   "ROAD",
	"BLVD": "BOULEVARD",
	"DR":   "DRIVE",
	"LN":   "LANE",
	"PL":   "PLACE",
	"CT":   "COURT",
	"SQ":   "SQUARE",
	"PKWY": "PARKWAY",
	"HWY":  "HIGHWAY",
	"TER":  "TERRACE",
	"STE":  "SUITE",
	"FL":   "FLOOR",
	"APT":  "APARTMENT",
	"N":    "NORTH",
	"S":    "SOUTH",
	"E":    "EAST",
	"W":    "WEST",
	"NE":   "NORTHEAST",
	"NW":   "NORTHWEST",
	"SE":   "SOUTHEAST",
	"SW":   "SOUTHWEST",
}

// nameNoise are trailing legal-form tokens ignored in business names
var nameNoise = map[string]bool{
	"INC":  true,
	"LLC":  true,
	"LTD":  true,
	"CORP": true,
	"CO":   true,
}

// foldText strips diacritics, upper-cases, replaces punctuation with spaces
// and collapses whitespace. "&" is spelled out so "A&B" and "A and B" agree.
func foldText(s string) string {
	// Transformers carry state, so one chain per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.ToUpper(strings.ReplaceAll(folded, "&", " AND "))

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// drop apostrophes so "JOE'S" == "JOES"
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CanonicalName normalizes a business name for natural-key purposes
func CanonicalName(name string) string {
	tokens := strings.Fields(foldText(name))
	for len(tokens) > 1 && nameNoise[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) > 1 && tokens[0] == "THE" {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

// CanonicalAddress normalizes a street address for natural-key purposes
func CanonicalAddress(address string) string {
	tokens := strings.Fields(foldText(address))
	for i, token := range tokens {
		if expanded, ok := streetAbbreviations[token]; ok {
			tokens[i] = expanded
		}
	}
	return strings.Join(tokens, " ")
}

// NewBusinessNK derives the restaurant natural key from name, address and city
func NewBusinessNK(name, address, city string) string {
	return strings.Join([]string{foldText(city), CanonicalName(name), CanonicalAddress(address)}, NK_SEPARATOR)
}

// NormalizeZip reduces a postal code to its 5-digit form when possible
func NormalizeZip(zip string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, zip)
	if len(digits) >= 5 {
		return digits[:5]
	}
	return strings.TrimSpace(zip)
}

// NewLocationNK derives the location natural key from zip and coordinates.
// Coordinates are rounded to 4 decimals (~11m) to absorb source precision drift.
func NewLocationNK(zip string, lat, lon *float64) string {
	coords := ""
	if lat != nil && lon != nil {
		coords = fmt.Sprintf("%.4f,%.4f", *lat, *lon)
	}
	return NormalizeZip(zip) + NK_SEPARATOR + coords
}
