package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// Warehouse is the dimensional snapshot produced by one pipeline run.
// Every table is ordered by its surrogate key.
type Warehouse struct {
	Restaurants     []RestaurantVersion       `json:"dim_restaurant"`
	Locations       []LocationDim             `json:"dim_location"`
	Dates           []DateDim                 `json:"dim_date"`
	Violations      []ViolationDim            `json:"dim_violation"`
	Inspections     []FactInspection          `json:"fact_inspection"`
	InspectionViols []FactInspectionViolation `json:"fact_inspection_violation"`
}

// Sort orders every table by its surrogate key so snapshots compare byte for byte
func (w *Warehouse) Sort() {
	sort.Slice(w.Restaurants, func(i, j int) bool {
		return w.Restaurants[i].RestaurantKey < w.Restaurants[j].RestaurantKey
	})
	sort.Slice(w.Locations, func(i, j int) bool {
		return w.Locations[i].LocationKey < w.Locations[j].LocationKey
	})
	sort.Slice(w.Dates, func(i, j int) bool {
		return w.Dates[i].DateKey < w.Dates[j].DateKey
	})
	sort.Slice(w.Violations, func(i, j int) bool {
		return w.Violations[i].ViolationKey < w.Violations[j].ViolationKey
	})
	sort.Slice(w.Inspections, func(i, j int) bool {
		return w.Inspections[i].InspectionKey < w.Inspections[j].InspectionKey
	})
	sort.Slice(w.InspectionViols, func(i, j int) bool {
		a, b := w.InspectionViols[i], w.InspectionViols[j]
		if a.InspectionKey != b.InspectionKey {
			return a.InspectionKey < b.InspectionKey
		}
		return a.Ordinal < b.Ordinal
	})
}

// Digest returns the hex SHA-256 of the canonical (RFC 8785) JSON form of the snapshot
func (w *Warehouse) Digest() (string, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to marshal warehouse: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize warehouse: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
