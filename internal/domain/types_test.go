package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DATE_LAYOUT, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewBusinessNK(t *testing.T) {
	tests := []struct {
		name     string
		a        [3]string
		b        [3]string
		expected bool
	}{
		{
			name:     "case and whitespace drift",
			a:        [3]string{"Joe's Grill", "123 N Main St.", "Chicago"},
			b:        [3]string{"JOES  GRILL", "123 North Main Street", "chicago"},
			expected: true,
		},
		{
			name:     "diacritics and legal suffix",
			a:        [3]string{"Café Olé LLC", "5 Elm Ave", "San Francisco"},
			b:        [3]string{"CAFE OLE", "5 ELM AVENUE", "SAN FRANCISCO"},
			expected: true,
		},
		{
			name:     "ampersand spelled out",
			a:        [3]string{"Fish & Chips", "1 Pier Rd", "NYC"},
			b:        [3]string{"Fish and Chips", "1 Pier Road", "nyc"},
			expected: true,
		},
		{
			name:     "different address",
			a:        [3]string{"Joe's Grill", "123 Main St", "Chicago"},
			b:        [3]string{"Joe's Grill", "125 Main St", "Chicago"},
			expected: false,
		},
		{
			name:     "different city",
			a:        [3]string{"Joe's Grill", "123 Main St", "Chicago"},
			b:        [3]string{"Joe's Grill", "123 Main St", "Evanston"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewBusinessNK(tt.a[0], tt.a[1], tt.a[2])
			b := NewBusinessNK(tt.b[0], tt.b[1], tt.b[2])
			assert.Equal(t, tt.expected, a == b, "%q vs %q", a, b)
		})
	}
}

func TestCanonicalName_KeepsSingleToken(t *testing.T) {
	assert.Equal(t, "INC", CanonicalName("Inc"))
	assert.Equal(t, "THE", CanonicalName("The"))
	assert.Equal(t, "BEAN", CanonicalName("The Bean Co."))
}

func TestNewLocationNK(t *testing.T) {
	lat, lon := 41.881832, -87.623177
	assert.Equal(t, "60601|41.8818,-87.6232", NewLocationNK("60601-1234", &lat, &lon))
	assert.Equal(t, "60601|", NewLocationNK(" 60601 ", nil, nil))
	assert.Equal(t, "|", NewLocationNK("", nil, &lon))
}

func TestNormalizeZip(t *testing.T) {
	assert.Equal(t, "10001", NormalizeZip("10001"))
	assert.Equal(t, "10001", NormalizeZip("10001-0042"))
	assert.Equal(t, "9410", NormalizeZip("9410"))
}

func TestRestaurantVersion_Contains(t *testing.T) {
	end := date("2022-02-28")
	closed := RestaurantVersion{EffectiveDate: date("2021-01-10"), EndDate: &end}
	open := RestaurantVersion{EffectiveDate: date("2022-03-01")}

	assert.True(t, closed.Contains(date("2021-01-10")))
	assert.True(t, closed.Contains(date("2022-02-28")))
	assert.False(t, closed.Contains(date("2022-03-01")))
	assert.False(t, closed.Contains(date("2021-01-09")))

	assert.True(t, open.Contains(date("2030-01-01")))
	assert.False(t, open.Contains(date("2022-02-28")))
}

func TestRestaurantAttributes_Equal(t *testing.T) {
	base := RestaurantAttributes{Name: "Joe's Diner", Address: "123 N Main St.", LocationNK: "60601|", OwnershipID: "1234"}

	tests := []struct {
		name   string
		mutate func(a *RestaurantAttributes)
		equal  bool
	}{
		{name: "identical", mutate: func(a *RestaurantAttributes) {}, equal: true},
		{name: "address abbreviations expanded", mutate: func(a *RestaurantAttributes) { a.Address = "123 North Main Street" }, equal: true},
		{name: "name case and punctuation", mutate: func(a *RestaurantAttributes) { a.Name = "JOES DINER" }, equal: true},
		{name: "ownership padding", mutate: func(a *RestaurantAttributes) { a.OwnershipID = " 1234 " }, equal: true},
		{name: "other address", mutate: func(a *RestaurantAttributes) { a.Address = "125 N Main St" }},
		{name: "other name", mutate: func(a *RestaurantAttributes) { a.Name = "Joe's Grill" }},
		{name: "other location", mutate: func(a *RestaurantAttributes) { a.LocationNK = "60602|" }},
		{name: "other ownership", mutate: func(a *RestaurantAttributes) { a.OwnershipID = "5678" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base
			tt.mutate(&other)
			assert.Equal(t, tt.equal, base.Equal(other))
			assert.Equal(t, tt.equal, other.Equal(base))
		})
	}
}

func TestRestaurantVersion_VersionNK(t *testing.T) {
	v := RestaurantVersion{BusinessNK: "CHICAGO|A|X", EffectiveDate: date("2021-01-10")}
	assert.Equal(t, "CHICAGO|A|X@2021-01-10", v.VersionNK())
}

func TestNewDateDim(t *testing.T) {
	d := NewDateDim(7, date("2022-03-05"))
	assert.Equal(t, int64(7), d.DateKey)
	assert.Equal(t, 2022, d.Year)
	assert.Equal(t, 1, d.Quarter)
	assert.Equal(t, 3, d.Month)
	assert.Equal(t, 5, d.Day)
	assert.Equal(t, "Saturday", d.DayOfWeek)
	assert.True(t, d.IsWeekend)

	d = NewDateDim(8, date("2022-10-03"))
	assert.Equal(t, 4, d.Quarter)
	assert.False(t, d.IsWeekend)
}

func TestDayBefore(t *testing.T) {
	assert.Equal(t, date("2022-02-28"), DayBefore(date("2022-03-01")))
	assert.Equal(t, date("2020-02-29"), DayBefore(date("2020-03-01")))
	assert.Equal(t, date("2021-12-31"), DayBefore(time.Date(2022, 1, 1, 15, 30, 0, 0, time.UTC)))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"schema", &SchemaError{SourceCity: SourceCityChicago, Field: "x"}, ErrorKindSchema},
		{"unmapped code", NewUnmappedCodeError(SourceCityNewYork, "action", "Z"), ErrorKindSchema},
		{"wrapped parse", fmt.Errorf("clean: %w", &ParseError{Field: "date", Value: "x"}), ErrorKindParse},
		{"integrity", &IntegrityViolation{Check: "c"}, ErrorKindIntegrity},
		{"unresolved", &UnresolvedDimensionError{Dimension: DimensionDate}, ErrorKindUnresolvedDimension},
		{"conflict", fmt.Errorf("alloc: %w", ErrConcurrencyConflict), ErrorKindConcurrency},
		{"other", errors.New("boom"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorKind(tt.err))
		})
	}
}

func TestUnmappedCodeError_IsSchemaError(t *testing.T) {
	err := error(NewUnmappedCodeError(SourceCityChicago, "results", "Maybe"))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Maybe", schemaErr.Value)
	assert.Contains(t, err.Error(), "Maybe")
}

func TestWarehouse_DigestStable(t *testing.T) {
	end := date("2022-02-28")
	build := func() *Warehouse {
		return &Warehouse{
			Restaurants: []RestaurantVersion{
				{RestaurantKey: 2, BusinessNK: "A", EffectiveDate: date("2022-03-01"), IsCurrent: true},
				{RestaurantKey: 1, BusinessNK: "A", EffectiveDate: date("2021-01-10"), EndDate: &end},
			},
			Inspections: []FactInspection{{InspectionKey: 1, SourceCity: SourceCityChicago, SourceInspectionID: "1"}},
		}
	}

	a, b := build(), build()
	b.Restaurants[0], b.Restaurants[1] = b.Restaurants[1], b.Restaurants[0]
	a.Sort()
	b.Sort()

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)

	b.Inspections[0].ViolationCount = 3
	dc, err := b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}
