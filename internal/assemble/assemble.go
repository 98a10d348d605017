package assemble

import (
	"context"
	"fmt"
	"sort"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/keys"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/scd"
)

const (
	// Stage is the stage name recorded on rejections
	Stage = "assemble"

	partitionSize = 256
)

// Result is the warehouse snapshot of one run plus the records left out of it
type Result struct {
	Warehouse *domain.Warehouse
	Rejected  []domain.Rejection
}

// Assembler joins cleaned records with the finalized restaurant history
// and resolves dimension keys to produce fact rows
type Assembler interface {
	Assemble(ctx context.Context, records []domain.InspectionRecord, snapshot *scd.Snapshot) (*Result, error)
}

type assembler struct {
	pool     pond.Pool
	resolver keys.Resolver
	lazy     bool
}

// NewAssembler creates an assembler. With lazy dimensions disabled, unknown
// location, date and violation keys reject the record instead of being allocated.
func NewAssembler(pool pond.Pool, resolver keys.Resolver, cfg config.AssemblerConfig) Assembler {
	return &assembler{pool: pool, resolver: resolver, lazy: cfg.AllowLazyDimensions}
}

// matched is a record whose restaurant version and dimensions are known
type matched struct {
	record        domain.InspectionRecord
	restaurantKey int64
}

// naturalKeys holds the dimension natural keys referenced by one record
type naturalKeys struct {
	location   string
	date       string
	violations []string
}

func recordKeys(r domain.InspectionRecord) naturalKeys {
	nks := naturalKeys{
		location: r.LocationNK(),
		date:     domain.CalendarDate(r.InspectionDate).Format(domain.DATE_LAYOUT),
	}
	for _, v := range r.Violations {
		nks.violations = append(nks.violations, domain.NewViolationNK(r.SourceCity, v.Code, v.Severity))
	}
	return nks
}

func (a *assembler) Assemble(ctx context.Context, records []domain.InspectionRecord, snapshot *scd.Snapshot) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ordered := make([]domain.InspectionRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].NaturalKey() < ordered[j].NaturalKey()
	})

	known, err := a.knownDimensions(ctx, ordered)
	if err != nil {
		return nil, err
	}

	// Match every record to its restaurant version
	type matchPartition struct {
		matched  []matched
		rejected []domain.Rejection
	}
	parts := make([]matchPartition, (len(ordered)+partitionSize-1)/partitionSize)
	group := a.pool.NewGroupContext(ctx)
	for i := range parts {
		start := i * partitionSize
		end := min(start+partitionSize, len(ordered))
		group.Submit(func() {
			for _, r := range ordered[start:end] {
				restaurantKey, err := matchRestaurant(r, snapshot)
				if err == nil {
					err = known.check(r)
				}
				if err != nil {
					parts[i].rejected = append(parts[i].rejected, domain.NewRejection(Stage, r.NaturalKey(), err, r))
					continue
				}
				parts[i].matched = append(parts[i].matched, matched{record: r, restaurantKey: restaurantKey})
			}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to match restaurant versions: %w", err)
	}

	result := &Result{}
	var accepted []matched
	for _, p := range parts {
		accepted = append(accepted, p.matched...)
		result.Rejected = append(result.Rejected, p.rejected...)
	}
	for _, rej := range result.Rejected {
		logger.WarnCtx(ctx, "Record rejected",
			zap.String("natural_key", rej.NaturalKey),
			zap.String("kind", rej.Kind),
			zap.String("reason", rej.Message))
	}

	resolved, err := a.resolveKeys(ctx, accepted)
	if err != nil {
		return nil, err
	}

	w := build(accepted, resolved)
	w.Restaurants = snapshot.Versions()
	w.Sort()
	result.Warehouse = w

	logger.InfoCtx(ctx, "Facts assembled",
		zap.Int("facts", len(w.Inspections)),
		zap.Int("citations", len(w.InspectionViols)),
		zap.Int("rejected", len(result.Rejected)))

	return result, nil
}

// matchRestaurant returns the key of the single restaurant version in effect on the inspection date
func matchRestaurant(r domain.InspectionRecord, snapshot *scd.Snapshot) (int64, error) {
	businessNK, ok := snapshot.Entity(r.NaturalKey())
	if !ok {
		return 0, &domain.IntegrityViolation{
			Check:      "restaurant_identity",
			NaturalKey: r.NaturalKey(),
			Detail:     "record is not assigned to a restaurant entity",
		}
	}

	matches := snapshot.VersionsAt(businessNK, r.InspectionDate)
	switch len(matches) {
	case 1:
		return matches[0].RestaurantKey, nil
	case 0:
		return 0, &domain.IntegrityViolation{
			Check:      "restaurant_version_match",
			NaturalKey: r.NaturalKey(),
			Detail: fmt.Sprintf("no version of %s in effect on %s",
				businessNK, r.InspectionDate.Format(domain.DATE_LAYOUT)),
		}
	default:
		versions := make([]string, 0, len(matches))
		for _, v := range matches {
			versions = append(versions, v.String())
		}
		return 0, &domain.IntegrityViolation{
			Check:      "restaurant_version_match",
			NaturalKey: r.NaturalKey(),
			Detail: fmt.Sprintf("%d versions in effect on %s: %v",
				len(matches), r.InspectionDate.Format(domain.DATE_LAYOUT), versions),
		}
	}
}

// dimensions is the set of dimension keys already present in the store.
// A nil set means lazy creation is allowed.
type dimensions map[domain.Dimension]map[string]struct{}

func (d dimensions) has(dim domain.Dimension, nk string) error {
	if d == nil {
		return nil
	}
	if _, ok := d[dim][nk]; !ok {
		return &domain.UnresolvedDimensionError{Dimension: dim, NaturalKey: nk}
	}
	return nil
}

func (d dimensions) check(r domain.InspectionRecord) error {
	nks := recordKeys(r)
	if err := d.has(domain.DimensionLocation, nks.location); err != nil {
		return err
	}
	if err := d.has(domain.DimensionDate, nks.date); err != nil {
		return err
	}
	for _, nk := range nks.violations {
		if err := d.has(domain.DimensionViolation, nk); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) knownDimensions(ctx context.Context, records []domain.InspectionRecord) (dimensions, error) {
	if a.lazy {
		return nil, nil
	}

	wanted := make(map[domain.Dimension]map[string]struct{})
	add := func(dim domain.Dimension, nk string) {
		if wanted[dim] == nil {
			wanted[dim] = make(map[string]struct{})
		}
		wanted[dim][nk] = struct{}{}
	}
	for _, r := range records {
		nks := recordKeys(r)
		add(domain.DimensionLocation, nks.location)
		add(domain.DimensionDate, nks.date)
		for _, nk := range nks.violations {
			add(domain.DimensionViolation, nk)
		}
	}

	known := make(dimensions)
	for dim, nks := range wanted {
		known[dim] = make(map[string]struct{})
		for nk := range nks {
			_, found, err := a.resolver.Lookup(ctx, dim, nk)
			if err != nil {
				return nil, err
			}
			if found {
				known[dim][nk] = struct{}{}
			}
		}
	}
	return known, nil
}

// resolvedKeys holds surrogate keys by dimension and natural key
type resolvedKeys map[domain.Dimension]map[string]int64

func (a *assembler) resolveKeys(ctx context.Context, accepted []matched) (resolvedKeys, error) {
	wanted := make(map[domain.Dimension][]string)
	for _, m := range accepted {
		nks := recordKeys(m.record)
		wanted[domain.DimensionInspection] = append(wanted[domain.DimensionInspection], m.record.NaturalKey())
		wanted[domain.DimensionLocation] = append(wanted[domain.DimensionLocation], nks.location)
		wanted[domain.DimensionDate] = append(wanted[domain.DimensionDate], nks.date)
		wanted[domain.DimensionViolation] = append(wanted[domain.DimensionViolation], nks.violations...)
	}

	// Fixed dimension order keeps fresh allocations deterministic
	resolved := make(resolvedKeys)
	for _, dim := range []domain.Dimension{
		domain.DimensionLocation,
		domain.DimensionDate,
		domain.DimensionViolation,
		domain.DimensionInspection,
	} {
		allocated, err := a.resolver.ResolveAll(ctx, dim, wanted[dim])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s keys: %w", dim, err)
		}
		resolved[dim] = allocated
	}
	return resolved, nil
}

// build creates the fact rows and the dimension rows they reference
func build(accepted []matched, resolved resolvedKeys) *domain.Warehouse {
	w := &domain.Warehouse{}
	locations := make(map[int64]struct{})
	dates := make(map[int64]struct{})
	violations := make(map[int64]struct{})

	for _, m := range accepted {
		r := m.record
		nks := recordKeys(r)
		locationKey := resolved[domain.DimensionLocation][nks.location]
		dateKey := resolved[domain.DimensionDate][nks.date]
		inspectionKey := resolved[domain.DimensionInspection][r.NaturalKey()]

		if _, ok := locations[locationKey]; !ok {
			locations[locationKey] = struct{}{}
			w.Locations = append(w.Locations, domain.LocationDim{
				LocationKey: locationKey,
				LocationNK:  nks.location,
				Zip:         domain.NormalizeZip(r.Zip),
				Latitude:    r.Latitude,
				Longitude:   r.Longitude,
			})
		}
		if _, ok := dates[dateKey]; !ok {
			dates[dateKey] = struct{}{}
			w.Dates = append(w.Dates, domain.NewDateDim(dateKey, domain.CalendarDate(r.InspectionDate)))
		}

		w.Inspections = append(w.Inspections, domain.FactInspection{
			InspectionKey:      inspectionKey,
			SourceCity:         r.SourceCity,
			SourceInspectionID: r.SourceInspectionID,
			RestaurantKey:      m.restaurantKey,
			LocationKey:        locationKey,
			DateKey:            dateKey,
			InspectionDate:     domain.CalendarDate(r.InspectionDate),
			ResultCode:         r.ResultCode,
			FacilityType:       r.FacilityType,
			InspectorID:        r.InspectorID,
			ViolationCount:     len(r.Violations),
		})

		for i, citation := range r.Violations {
			violationKey := resolved[domain.DimensionViolation][nks.violations[i]]
			if _, ok := violations[violationKey]; !ok {
				violations[violationKey] = struct{}{}
				w.Violations = append(w.Violations, domain.ViolationDim{
					ViolationKey: violationKey,
					ViolationNK:  nks.violations[i],
					SourceCity:   r.SourceCity,
					Code:         citation.Code,
					Description:  citation.Description,
					Severity:     citation.Severity,
				})
			}
			w.InspectionViols = append(w.InspectionViols, domain.FactInspectionViolation{
				InspectionKey: inspectionKey,
				ViolationKey:  violationKey,
				Ordinal:       i + 1,
				Comment:       citation.Comment,
			})
		}
	}
	return w
}
