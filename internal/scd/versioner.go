package scd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/keys"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
)

// Stage is the stage name recorded on rejections
const Stage = "version"

// Result is the outcome of versioning one run's sightings
type Result struct {
	// Identities maps record natural keys to their entity
	Identities map[string]string
	// Entities lists the business natural keys seen in the run, sorted
	Entities []string
	// Changed lists the entities whose history was committed by the run, sorted
	Changed []string
	Reviews []ReviewFlag
	// Rejected holds the records of entities whose history could not be committed
	Rejected []domain.Rejection
	Outcomes map[OutcomeKind]int
}

// Excluded returns the natural keys of rejected records
func (r *Result) Excluded() map[string]struct{} {
	excluded := make(map[string]struct{}, len(r.Rejected))
	for _, rej := range r.Rejected {
		excluded[rej.NaturalKey] = struct{}{}
	}
	return excluded
}

// Versioner maintains the type-2 restaurant history
type Versioner interface {
	// Version applies the sightings of a run to the restaurant history.
	// Entity level failures are returned in the result; only store or
	// cancellation errors abort.
	Version(ctx context.Context, sightings []Sighting) (*Result, error)
	// Snapshot returns the committed restaurant versions for the assembler
	Snapshot(ctx context.Context, identities map[string]string) (*Snapshot, error)
}

type versioner struct {
	pool     pond.Pool
	store    store.HistoryStore
	resolver keys.Resolver
	identity *identifier
	// locks serializes commits per entity within the process
	locks *xsync.Map[string, *sync.Mutex]
}

// NewVersioner creates a versioner over the history store and key resolver
func NewVersioner(pool pond.Pool, historyStore store.HistoryStore, resolver keys.Resolver) Versioner {
	return &versioner{
		pool:     pool,
		store:    historyStore,
		resolver: resolver,
		identity: &identifier{store: historyStore},
		locks:    xsync.NewMap[string, *sync.Mutex](),
	}
}

// entity is the work unit of one restaurant entity
type entity struct {
	businessNK string
	entityKey  int64
	sightings  []Sighting
	plan       Plan
	err        error
}

func (v *versioner) Version(ctx context.Context, sightings []Sighting) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]Sighting, len(sightings))
	copy(ordered, sightings)
	SortSightings(ordered)

	identities, err := v.identity.identify(ctx, ordered)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Identities: identities.ByRecord,
		Reviews:    identities.Reviews,
		Outcomes:   make(map[OutcomeKind]int),
	}
	result.Outcomes[OutcomeReview] += len(identities.Reviews)

	byEntity := make(map[string][]Sighting)
	for _, s := range ordered {
		businessNK, ok := identities.ByRecord[s.RecordNK]
		if !ok {
			continue
		}
		byEntity[businessNK] = append(byEntity[businessNK], s)
	}
	entities := make([]*entity, 0, len(byEntity))
	for businessNK, ss := range byEntity {
		entities = append(entities, &entity{businessNK: businessNK, sightings: ss})
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].businessNK < entities[j].businessNK
	})

	// Plan every entity against its stored history
	group := v.pool.NewGroupContext(ctx)
	for _, e := range entities {
		group.Submit(func() {
			e.plan, e.err = v.plan(ctx, e.businessNK, e.sightings)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to plan restaurant histories: %w", err)
	}

	// Allocate keys for entities and new versions in sorted order so fresh runs are deterministic
	var entityNKs, versionNKs []string
	for _, e := range entities {
		if err := storeError(e.err); err != nil {
			return nil, err
		}
		if e.err != nil {
			continue
		}
		entityNKs = append(entityNKs, e.businessNK)
		for _, nv := range e.plan.NewVersions() {
			versionNKs = append(versionNKs, nv.VersionNK())
		}
	}
	entityKeys, err := v.resolver.ResolveAll(ctx, domain.DimensionRestaurant, entityNKs)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate restaurant entity keys: %w", err)
	}
	allocated, err := v.resolver.ResolveAll(ctx, domain.DimensionRestaurantVersion, versionNKs)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate restaurant version keys: %w", err)
	}
	for _, e := range entities {
		if e.err == nil {
			e.entityKey = entityKeys[e.businessNK]
			assignKeys(e.plan.History, e.entityKey, allocated)
		}
	}

	group = v.pool.NewGroupContext(ctx)
	for _, e := range entities {
		if e.err != nil || !e.plan.Changed() {
			continue
		}
		group.Submit(func() {
			e.plan, e.err = v.commit(ctx, e)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to commit restaurant histories: %w", err)
	}

	for _, e := range entities {
		result.Entities = append(result.Entities, e.businessNK)
		if err := storeError(e.err); err != nil {
			return nil, err
		}
		if e.err != nil {
			v.reject(ctx, result, e)
			continue
		}
		if e.plan.Changed() {
			result.Changed = append(result.Changed, e.businessNK)
		}
		for _, o := range e.plan.Outcomes {
			result.Outcomes[o.Kind]++
		}
		for _, flag := range e.plan.Reviews() {
			logger.WarnCtx(ctx, "Sighting escalated for manual review",
				zap.String("business_nk", flag.BusinessNK),
				zap.String("record_nk", flag.RecordNK),
				zap.String("reason", flag.Reason))
			result.Reviews = append(result.Reviews, flag)
		}
	}

	logger.InfoCtx(ctx, "Restaurant histories versioned",
		zap.Int("entities", len(entities)),
		zap.Int("opened", result.Outcomes[OutcomeOpened]),
		zap.Int("superseded", result.Outcomes[OutcomeSuperseded]),
		zap.Int("backfilled", result.Outcomes[OutcomeBackfilled]),
		zap.Int("observed", result.Outcomes[OutcomeObserved]),
		zap.Int("reviews", len(result.Reviews)),
		zap.Int("rejected", len(result.Rejected)))

	return result, nil
}

// storeError returns err when it is not an entity level failure
func storeError(err error) error {
	var integrity *domain.IntegrityViolation
	if err == nil || errors.As(err, &integrity) || errors.Is(err, domain.ErrConcurrencyConflict) {
		return nil
	}
	return err
}

// reject drops every record of a failed entity from the run
func (v *versioner) reject(ctx context.Context, result *Result, e *entity) {
	logger.ErrorCtx(ctx, e.err, zap.String("business_nk", e.businessNK), zap.Int("records", len(e.sightings)))
	for _, s := range e.sightings {
		delete(result.Identities, s.RecordNK)
		result.Rejected = append(result.Rejected, domain.NewRejection(Stage, s.RecordNK, e.err, s.Attributes))
	}
}

func (v *versioner) plan(ctx context.Context, businessNK string, sightings []Sighting) (Plan, error) {
	stored, err := v.store.LoadRestaurantHistory(ctx, businessNK)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to load history of %s: %w", businessNK, err)
	}

	base := NewHistory(stored)
	if err := base.Check(); err != nil {
		return Plan{BusinessNK: businessNK, Base: base, History: base}, err
	}
	return PlanEntity(businessNK, base, sightings)
}

// commit saves a planned history, re-planning once against the latest state on conflict
func (v *versioner) commit(ctx context.Context, e *entity) (Plan, error) {
	mu, _ := v.locks.LoadOrStore(e.businessNK, &sync.Mutex{})
	mu.Lock()
	defer mu.Unlock()

	plan := e.plan
	err := v.store.SaveRestaurantHistory(ctx, e.businessNK, plan.Base.CurrentKey(), plan.History)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		return plan, err
	}

	logger.WarnCtx(ctx, "Restaurant history changed concurrently, re-planning",
		zap.String("business_nk", e.businessNK),
		zap.Error(err))

	plan, err = v.plan(ctx, e.businessNK, e.sightings)
	if err != nil || !plan.Changed() {
		return plan, err
	}
	for _, nv := range plan.NewVersions() {
		key, err := v.resolver.Resolve(ctx, domain.DimensionRestaurantVersion, nv.VersionNK())
		if err != nil {
			return plan, fmt.Errorf("failed to allocate restaurant version key: %w", err)
		}
		assignKeys(plan.History, e.entityKey, map[string]int64{nv.VersionNK(): key})
	}
	assignKeys(plan.History, e.entityKey, nil)

	if err := v.store.SaveRestaurantHistory(ctx, e.businessNK, plan.Base.CurrentKey(), plan.History); err != nil {
		return plan, fmt.Errorf("history of %s still conflicting after re-plan: %w", e.businessNK, err)
	}
	return plan, nil
}

// assignKeys fills the entity key and allocated version keys that are still unset
func assignKeys(h History, entityKey int64, allocated map[string]int64) {
	for i := range h {
		if h[i].EntityKey == 0 {
			h[i].EntityKey = entityKey
		}
		if h[i].RestaurantKey != 0 {
			continue
		}
		if key, ok := allocated[h[i].VersionNK()]; ok {
			h[i].RestaurantKey = key
		}
	}
}

func (v *versioner) Snapshot(ctx context.Context, identities map[string]string) (*Snapshot, error) {
	versions, err := v.store.ListRestaurantVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurant versions: %w", err)
	}
	return NewSnapshot(versions, identities), nil
}
