package scd

import (
	"sort"
	"time"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

// Snapshot is the committed restaurant history read after versioning.
// It is read-only and safe for concurrent use.
type Snapshot struct {
	versions   []domain.RestaurantVersion
	byEntity   map[string][]domain.RestaurantVersion
	identities map[string]string
}

// NewSnapshot indexes versions by entity. identities maps record natural keys to entities.
func NewSnapshot(versions []domain.RestaurantVersion, identities map[string]string) *Snapshot {
	s := &Snapshot{
		versions:   NewHistory(versions),
		byEntity:   make(map[string][]domain.RestaurantVersion),
		identities: make(map[string]string, len(identities)),
	}
	sort.SliceStable(s.versions, func(i, j int) bool {
		return s.versions[i].RestaurantKey < s.versions[j].RestaurantKey
	})
	for _, v := range s.versions {
		s.byEntity[v.BusinessNK] = append(s.byEntity[v.BusinessNK], v)
	}
	for _, history := range s.byEntity {
		sort.Slice(history, func(i, j int) bool {
			return history[i].EffectiveDate.Before(history[j].EffectiveDate)
		})
	}
	for recordNK, businessNK := range identities {
		s.identities[recordNK] = businessNK
	}
	return s
}

// Versions returns every version ordered by restaurant key
func (s *Snapshot) Versions() []domain.RestaurantVersion {
	return NewHistory(s.versions).sortByKey()
}

// Entity returns the entity a record was assigned to
func (s *Snapshot) Entity(recordNK string) (string, bool) {
	businessNK, ok := s.identities[recordNK]
	return businessNK, ok
}

// History returns the versions of an entity ordered by effective date
func (s *Snapshot) History(businessNK string) History {
	return History(s.byEntity[businessNK]).clone()
}

// VersionsAt returns every version of the entity in effect on date.
// A well formed history returns exactly one for dates on or after its first version.
func (s *Snapshot) VersionsAt(businessNK string, date time.Time) []domain.RestaurantVersion {
	day := domain.CalendarDate(date)
	var matches []domain.RestaurantVersion
	for _, v := range s.byEntity[businessNK] {
		if v.Contains(day) {
			matches = append(matches, v)
		}
	}
	return matches
}

func (h History) sortByKey() []domain.RestaurantVersion {
	sort.SliceStable(h, func(i, j int) bool {
		return h[i].RestaurantKey < h[j].RestaurantKey
	})
	return h
}
