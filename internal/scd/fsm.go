package scd

import (
	"fmt"
	"sort"
	"time"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// Phase is the lifecycle state of a restaurant entity
type Phase int

const (
	// PhaseUnknown means the entity has no version yet
	PhaseUnknown Phase = iota
	// PhaseCurrent means the entity has exactly one, open, version
	PhaseCurrent
	// PhaseHistorical means closed versions precede the open one
	PhaseHistorical
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseCurrent:
		return "current"
	case PhaseHistorical:
		return "historical"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// OutcomeKind is the transition taken for a sighting
type OutcomeKind string

const (
	OutcomeOpened     OutcomeKind = "opened"     // first version created
	OutcomeUnchanged  OutcomeKind = "unchanged"  // tracked attributes equal the version in effect
	OutcomeObserved   OutcomeKind = "observed"   // version in effect seen again at a later date
	OutcomeSuperseded OutcomeKind = "superseded" // current version closed and a new one opened
	OutcomeBackfilled OutcomeKind = "backfilled" // a closed interval was split by a late sighting
	OutcomeReview     OutcomeKind = "review"     // history left unchanged, escalated for manual review
)

// Review reasons
const (
	ReasonBeforeFirstVersion = "sighting predates the first version"
	ReasonSameDayConflict    = "conflicting attributes on a version's effective date"
	ReasonBrokenHistory      = "history does not partition time at the sighting date"
	ReasonObservedLater      = "version in effect was observed unchanged on or after the sighting date"
	ReasonAmbiguousIdentity  = "sighting links several restaurant entities"
)

// Sighting is one observation of a restaurant's tracked attributes on a date
type Sighting struct {
	// RecordNK is the natural key of the inspection the sighting comes from
	RecordNK   string
	SourceCity domain.SourceCity
	// DerivedNK is the business natural key derived from the record itself
	DerivedNK  string
	Date       time.Time
	Attributes domain.RestaurantAttributes
}

// NewSighting builds the sighting carried by a cleaned inspection record
func NewSighting(r domain.InspectionRecord) Sighting {
	return Sighting{
		RecordNK:   r.NaturalKey(),
		SourceCity: r.SourceCity,
		DerivedNK:  r.BusinessNK(),
		Date:       domain.CalendarDate(r.InspectionDate),
		Attributes: r.Attributes(),
	}
}

// ReviewFlag is a sighting the versioner refused to apply
type ReviewFlag struct {
	BusinessNK string    `json:"business_nk"`
	RecordNK   string    `json:"record_nk"`
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
}

func (f ReviewFlag) String() string {
	return fmt.Sprintf("%s %s on %s: %s", f.BusinessNK, f.RecordNK, f.Date.Format(domain.DATE_LAYOUT), f.Reason)
}

// Outcome is the result of applying one sighting
type Outcome struct {
	Kind   OutcomeKind
	Review *ReviewFlag
}

// History is the version list of one entity ordered by effective date.
// Histories are values: transitions return a new History and never modify their input.
type History []domain.RestaurantVersion

// NewHistory copies versions into a history ordered by effective date
func NewHistory(versions []domain.RestaurantVersion) History {
	h := History(versions).clone()
	sort.Slice(h, func(i, j int) bool {
		return h[i].EffectiveDate.Before(h[j].EffectiveDate)
	})
	return h
}

func (h History) clone() History {
	if h == nil {
		return nil
	}
	c := make(History, len(h))
	for i, v := range h {
		if v.EndDate != nil {
			end := *v.EndDate
			v.EndDate = &end
		}
		c[i] = v
	}
	return c
}

// Phase returns the lifecycle state of the entity
func (h History) Phase() Phase {
	switch len(h) {
	case 0:
		return PhaseUnknown
	case 1:
		return PhaseCurrent
	default:
		return PhaseHistorical
	}
}

// Current returns the open version
func (h History) Current() (domain.RestaurantVersion, bool) {
	if len(h) == 0 || !h[len(h)-1].IsCurrent {
		return domain.RestaurantVersion{}, false
	}
	return h[len(h)-1], true
}

// CurrentKey returns the key of the open version, 0 when there is none
func (h History) CurrentKey() int64 {
	current, ok := h.Current()
	if !ok {
		return 0
	}
	return current.RestaurantKey
}

// At returns the indexes of every version whose interval contains date
func (h History) At(date time.Time) []int {
	var idx []int
	for i, v := range h {
		if v.Contains(date) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Check verifies that the versions partition time from the first effective date
// onwards: ordered, contiguous, non-overlapping, with exactly the last one open and current.
func (h History) Check() error {
	if len(h) == 0 {
		return nil
	}

	businessNK := h[0].BusinessNK
	fail := func(format string, args ...any) error {
		return &domain.IntegrityViolation{
			Check:      "interval_partition",
			NaturalKey: businessNK,
			Detail:     fmt.Sprintf(format, args...),
		}
	}

	for i, v := range h {
		if v.BusinessNK != businessNK {
			return fail("version %s belongs to another entity", v)
		}
		last := i == len(h)-1
		if last {
			if v.EndDate != nil || !v.IsCurrent {
				return fail("last version %s is not open and current", v)
			}
			continue
		}
		if v.IsCurrent || v.EndDate == nil {
			return fail("version %s is open but not the last", v)
		}
		if v.EndDate.Before(v.EffectiveDate) {
			return fail("version %s ends before it starts", v)
		}
		next := h[i+1]
		if !next.EffectiveDate.Equal(v.EndDate.AddDate(0, 0, 1)) {
			return fail("versions %s and %s are not contiguous", v, next)
		}
	}
	return nil
}

func review(h History, s Sighting, reason string) (History, Outcome) {
	businessNK := ""
	if len(h) > 0 {
		businessNK = h[0].BusinessNK
	}
	return h, Outcome{Kind: OutcomeReview, Review: &ReviewFlag{
		BusinessNK: businessNK,
		RecordNK:   s.RecordNK,
		Date:       s.Date,
		Reason:     reason,
	}}
}

// Apply takes the transition for one sighting of the entity businessNK.
// New versions carry RestaurantKey 0 until keys are allocated.
//
// A version's interval never shrinks below its LastSeen date: inspections
// already observed under it keep a version that contains them. A conflicting
// sighting on or before that date is escalated instead.
func Apply(h History, businessNK string, s Sighting) (History, Outcome) {
	date := domain.CalendarDate(s.Date)

	// Unknown -> Current
	if len(h) == 0 {
		return History{newVersion(businessNK, s.Attributes, date, nil, true)}, Outcome{Kind: OutcomeOpened}
	}

	if date.Before(h[0].EffectiveDate) {
		return review(h, s, ReasonBeforeFirstVersion)
	}
	idx := h.At(date)
	if len(idx) != 1 {
		return review(h, s, ReasonBrokenHistory)
	}
	i := idx[0]
	target := h[i]

	if target.Attributes().Equal(s.Attributes) {
		if !date.After(target.LastSeen) {
			return h, Outcome{Kind: OutcomeUnchanged}
		}
		next := h.clone()
		next[i].LastSeen = date
		return next, Outcome{Kind: OutcomeObserved}
	}
	if date.Equal(target.EffectiveDate) {
		return review(h, s, ReasonSameDayConflict)
	}
	if !date.After(target.LastSeen) {
		return review(h, s, ReasonObservedLater)
	}

	next := h.clone()
	end := domain.DayBefore(date)
	originalEnd := next[i].EndDate
	next[i].EndDate = &end

	if target.IsCurrent {
		// Current -> Historical: close the open version the day before
		next[i].IsCurrent = false
		next = append(next, newVersion(businessNK, s.Attributes, date, nil, true))
		return next, Outcome{Kind: OutcomeSuperseded}
	}

	// Split the closed interval at the sighting date; later versions are untouched
	inserted := newVersion(businessNK, s.Attributes, date, originalEnd, false)
	next = append(next[:i+1], append(History{inserted}, next[i+1:]...)...)
	return next, Outcome{Kind: OutcomeBackfilled}
}

func newVersion(businessNK string, attrs domain.RestaurantAttributes, effective time.Time, end *time.Time, current bool) domain.RestaurantVersion {
	return domain.RestaurantVersion{
		BusinessNK:    businessNK,
		Name:          attrs.Name,
		Address:       attrs.Address,
		LocationNK:    attrs.LocationNK,
		OwnershipID:   attrs.OwnershipID,
		EffectiveDate: effective,
		EndDate:       end,
		IsCurrent:     current,
		LastSeen:      effective,
	}
}

// Plan is the outcome of applying every sighting of an entity to its history
type Plan struct {
	BusinessNK string
	Base       History
	History    History
	Outcomes   []Outcome
}

// Changed reports whether the plan modifies the base history
func (p Plan) Changed() bool {
	for _, o := range p.Outcomes {
		if o.Kind != OutcomeUnchanged && o.Kind != OutcomeReview {
			return true
		}
	}
	return false
}

// Reviews returns the review flags raised by the plan
func (p Plan) Reviews() []ReviewFlag {
	var flags []ReviewFlag
	for _, o := range p.Outcomes {
		if o.Review != nil {
			flags = append(flags, *o.Review)
		}
	}
	return flags
}

// NewVersions returns the planned versions that still need a key
func (p Plan) NewVersions() []domain.RestaurantVersion {
	var versions []domain.RestaurantVersion
	for _, v := range p.History {
		if v.RestaurantKey == 0 {
			versions = append(versions, v)
		}
	}
	return versions
}

// SortSightings orders sightings by date, then by record natural key
func SortSightings(sightings []Sighting) {
	sort.SliceStable(sightings, func(i, j int) bool {
		a, b := sightings[i], sightings[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.RecordNK < b.RecordNK
	})
}

// PlanEntity applies the sightings of one entity in date order.
// The resulting history is checked; a plan that breaks the partition is an IntegrityViolation.
func PlanEntity(businessNK string, base History, sightings []Sighting) (Plan, error) {
	ordered := make([]Sighting, len(sightings))
	copy(ordered, sightings)
	SortSightings(ordered)

	plan := Plan{BusinessNK: businessNK, Base: base, History: base}
	for _, s := range ordered {
		var outcome Outcome
		plan.History, outcome = Apply(plan.History, businessNK, s)
		if outcome.Review != nil {
			outcome.Review.BusinessNK = businessNK
		}
		plan.Outcomes = append(plan.Outcomes, outcome)
	}

	if err := plan.History.Check(); err != nil {
		return plan, err
	}
	return plan, nil
}
