package unify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// TaxonomyEntry is the canonical description and severity of a source violation code
type TaxonomyEntry struct {
	Description string
	Severity    domain.Severity
}

// Taxonomy is the static violation code taxonomy per source city
type Taxonomy map[domain.SourceCity]map[string]TaxonomyEntry

// Lookup returns the taxonomy entry of a code, matching codes case-insensitively
func (t Taxonomy) Lookup(city domain.SourceCity, code string) (TaxonomyEntry, bool) {
	entry, ok := t[city][strings.ToUpper(strings.TrimSpace(code))]
	return entry, ok
}

// DefaultTaxonomy is the violation taxonomy shipped with the warehouse
var DefaultTaxonomy = Taxonomy{
	domain.SourceCityChicago:      chicagoTaxonomy(),
	domain.SourceCityNewYork:      nycTaxonomy,
	domain.SourceCitySanFrancisco: sfTaxonomy,
}

// chicagoTaxonomy covers the numbered Chicago codes 1-70.
// 1-14 are critical, 15-29 serious and the rest minor.
func chicagoTaxonomy() map[string]TaxonomyEntry {
	named := map[int]string{
		1:  "Person in charge present, demonstrates knowledge",
		2:  "City of Chicago food service sanitation certificate",
		3:  "Management, food employee and conditional employee knowledge",
		5:  "Procedures for responding to vomiting and diarrheal events",
		10: "Adequate handwashing sinks properly supplied and accessible",
		16: "Food-contact surfaces cleaned and sanitized",
		18: "No evidence of rodent or insect outer openings protected",
		21: "Certified food manager on site when potentially hazardous foods are prepared",
		32: "Food and non-food contact surfaces properly designed, constructed and maintained",
		33: "Food and non-food contact equipment utensils clean",
		34: "Floors constructed per code, cleaned, good repair",
		35: "Walls, ceilings, attached equipment constructed per code",
		38: "Ventilation: rooms and equipment vented as required",
		41: "Wiping cloths properly used and stored",
		55: "Physical facilities installed, maintained and clean",
		70: "No smoking regulations",
	}

	entries := make(map[string]TaxonomyEntry, 70)
	for code := 1; code <= 70; code++ {
		severity := domain.SeverityMinor
		switch {
		case code <= 14:
			severity = domain.SeverityCritical
		case code <= 29:
			severity = domain.SeveritySerious
		}
		description, ok := named[code]
		if !ok {
			description = fmt.Sprintf("Chicago violation %d", code)
		}
		entries[strconv.Itoa(code)] = TaxonomyEntry{Description: description, Severity: severity}
	}
	return entries
}

var nycTaxonomy = map[string]TaxonomyEntry{
	"02A": {"Time/temperature control for safety food not cooked to required minimum temperature", domain.SeverityCritical},
	"02B": {"Hot TCS food item not held at or above 140 F", domain.SeverityCritical},
	"02G": {"Cold TCS food item held above 41 F", domain.SeverityCritical},
	"02H": {"Food not cooled by an approved method", domain.SeverityCritical},
	"04A": {"Food Protection Certificate not held by manager or supervisor", domain.SeverityCritical},
	"04H": {"Raw, cooked or prepared food is adulterated or contaminated", domain.SeverityCritical},
	"04K": {"Evidence of rats or live rats in establishment", domain.SeverityCritical},
	"04L": {"Evidence of mice or live mice in establishment", domain.SeverityCritical},
	"04M": {"Live roaches in facility's food or non-food area", domain.SeverityCritical},
	"04N": {"Filth flies or food/refuse/sewage associated flies present", domain.SeverityCritical},
	"05D": {"No hand washing facility in or adjacent to toilet room or within 25 feet of a food preparation area", domain.SeverityCritical},
	"05F": {"Insufficient or no refrigerated or hot holding equipment", domain.SeverityCritical},
	"06A": {"Personal cleanliness inadequate", domain.SeverityCritical},
	"06C": {"Food not protected from potential source of contamination", domain.SeverityCritical},
	"06D": {"Food contact surface not properly washed, rinsed and sanitized", domain.SeverityCritical},
	"06E": {"Sanitized equipment or utensil improperly used or stored", domain.SeverityCritical},
	"06F": {"Wiping cloths soiled or not stored in sanitizing solution", domain.SeverityCritical},
	"08A": {"Establishment is not free of harborage or conditions conducive to rodents, insects or other pests", domain.SeverityMinor},
	"08C": {"Pesticide use not in accordance with label or applicable laws", domain.SeverityMinor},
	"09B": {"Thawing procedure improper", domain.SeverityMinor},
	"09C": {"Food contact surface not properly maintained", domain.SeverityMinor},
	"10A": {"Toilet facility not maintained and provided with toilet paper, waste receptacle and self-closing door", domain.SeverityMinor},
	"10B": {"Plumbing not properly installed or maintained", domain.SeverityMinor},
	"10D": {"Mechanical or natural ventilation not provided, inadequate or improperly installed", domain.SeverityMinor},
	"10F": {"Non-food contact surface improperly constructed or maintained", domain.SeverityMinor},
	"10H": {"Proper sanitization not provided for utensil ware washing operation", domain.SeverityMinor},
}

var sfTaxonomy = map[string]TaxonomyEntry{
	"103101": {"Moldy, adulterated, or contaminated food", domain.SeverityCritical},
	"103102": {"Unclean or degraded floors walls or ceilings", domain.SeverityMinor},
	"103103": {"High risk food holding temperature", domain.SeverityCritical},
	"103105": {"Improper cooling methods", domain.SeverityCritical},
	"103109": {"Unclean or unsanitary food contact surfaces", domain.SeverityCritical},
	"103111": {"Unapproved or unmaintained equipment or utensils", domain.SeveritySerious},
	"103113": {"Unclean hands or improper use of gloves", domain.SeverityCritical},
	"103114": {"High risk vermin infestation", domain.SeverityCritical},
	"103119": {"Inadequate and inaccessible handwashing facilities", domain.SeveritySerious},
	"103120": {"Moderate risk food holding temperature", domain.SeveritySerious},
	"103124": {"Inadequately cleaned or sanitized food contact surfaces", domain.SeveritySerious},
	"103131": {"Moderate risk vermin infestation", domain.SeveritySerious},
	"103133": {"Foods not protected from contamination", domain.SeveritySerious},
	"103139": {"Improper food storage", domain.SeverityMinor},
	"103142": {"Unclean nonfood contact surfaces", domain.SeverityMinor},
	"103144": {"Unapproved or unmaintained equipment or utensils", domain.SeverityMinor},
	"103149": {"Wiping cloths not clean or properly stored or inadequate sanitizer", domain.SeverityMinor},
	"103154": {"Unclean or degraded floors walls or ceilings", domain.SeverityMinor},
	"103157": {"Food safety certificate or food handler card not available", domain.SeverityMinor},
}
