package scd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
)

const (
	aliasNaturalKey = "nk:"
	aliasOwnership  = "anchor:"
)

// Aliases returns the identity aliases of a sighting: its derived business
// natural key and, when the source provides one, its city scoped ownership id.
func (s Sighting) Aliases() []string {
	aliases := []string{aliasNaturalKey + s.DerivedNK}
	if owner := strings.ToUpper(strings.TrimSpace(s.Attributes.OwnershipID)); owner != "" {
		aliases = append(aliases, aliasOwnership+string(s.SourceCity)+domain.NK_SEPARATOR+owner)
	}
	return aliases
}

// Identities is the outcome of entity identification
type Identities struct {
	// ByRecord maps record natural keys to the entity they were assigned to
	ByRecord map[string]string
	// Reviews lists sightings that could not be assigned without guessing
	Reviews []ReviewFlag
}

// identifier assigns sightings to restaurant entities. Sightings sharing an
// alias belong to the same entity; aliases are persisted so an entity keeps
// its business natural key when its name or address changes.
type identifier struct {
	store store.HistoryStore
}

// disjoint is a union-find over sighting indexes
type disjoint []int

func newDisjoint(n int) disjoint {
	d := make(disjoint, n)
	for i := range d {
		d[i] = i
	}
	return d
}

func (d disjoint) find(i int) int {
	for d[i] != i {
		d[i] = d[d[i]]
		i = d[i]
	}
	return i
}

func (d disjoint) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	// Smaller index wins so the grouping is deterministic
	if rb < ra {
		ra, rb = rb, ra
	}
	d[rb] = ra
}

// identify groups sightings and binds each group to an entity.
// sightings must be sorted with SortSightings.
func (i *identifier) identify(ctx context.Context, sightings []Sighting) (*Identities, error) {
	groups := newDisjoint(len(sightings))
	owner := make(map[string]int)
	for idx, s := range sightings {
		for _, alias := range s.Aliases() {
			if first, ok := owner[alias]; ok {
				groups.union(first, idx)
				continue
			}
			owner[alias] = idx
		}
	}

	aliases := make([]string, 0, len(owner))
	for alias := range owner {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	bound, err := i.store.LookupAliases(ctx, aliases)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup entity aliases: %w", err)
	}

	members := make(map[int][]int)
	var roots []int
	for idx := range sightings {
		root := groups.find(idx)
		if _, ok := members[root]; !ok {
			roots = append(roots, root)
		}
		members[root] = append(members[root], idx)
	}

	result := &Identities{ByRecord: make(map[string]string, len(sightings))}
	bindings := make(map[string]string)
	for _, root := range roots {
		groupAliases := make(map[string]struct{})
		known := make(map[string]struct{})
		for _, idx := range members[root] {
			for _, alias := range sightings[idx].Aliases() {
				groupAliases[alias] = struct{}{}
				if businessNK, ok := bound[alias]; ok {
					known[businessNK] = struct{}{}
				}
			}
		}

		var businessNK string
		switch len(known) {
		case 0:
			// Earliest sighting names the entity
			businessNK = sightings[root].DerivedNK
		case 1:
			for nk := range known {
				businessNK = nk
			}
		default:
			entities := make([]string, 0, len(known))
			for nk := range known {
				entities = append(entities, nk)
			}
			sort.Strings(entities)
			logger.WarnCtx(ctx, "Sightings link several restaurant entities, escalating for review",
				zap.Strings("business_nks", entities),
				zap.Int("sightings", len(members[root])))
			for _, idx := range members[root] {
				result.Reviews = append(result.Reviews, ReviewFlag{
					BusinessNK: strings.Join(entities, ","),
					RecordNK:   sightings[idx].RecordNK,
					Date:       sightings[idx].Date,
					Reason:     ReasonAmbiguousIdentity,
				})
			}
			continue
		}

		for _, idx := range members[root] {
			result.ByRecord[sightings[idx].RecordNK] = businessNK
		}
		for alias := range groupAliases {
			if bound[alias] != businessNK {
				bindings[alias] = businessNK
			}
		}
	}

	if len(bindings) > 0 {
		if err := i.store.BindAliases(ctx, bindings); err != nil {
			return nil, fmt.Errorf("failed to bind entity aliases: %w", err)
		}
	}

	return result, nil
}
