package store

import (
	"context"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
)

// KeyStore is the persistent natural key to surrogate key registry
type KeyStore interface {
	// GetOrAllocateKey returns the surrogate key of a natural key, allocating the next
	// unused key of the dimension if it has none. Allocation is atomic; a race lost to
	// another writer returns domain.ErrConcurrencyConflict.
	GetOrAllocateKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error)
	// LookupKey returns the surrogate key of a natural key without allocating
	LookupKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error)
}

// HistoryStore persists the type-2 restaurant history
type HistoryStore interface {
	// LoadRestaurantHistory returns the versions of an entity ordered by effective date
	LoadRestaurantHistory(ctx context.Context, businessNK string) ([]domain.RestaurantVersion, error)
	// SaveRestaurantHistory writes the versions of one entity in a single transaction.
	// expectedCurrentKey is the key of the current version the history was planned
	// against (0 for a new entity); a mismatch returns domain.ErrConcurrencyConflict.
	SaveRestaurantHistory(ctx context.Context, businessNK string, expectedCurrentKey int64, versions []domain.RestaurantVersion) error
	// ListRestaurantVersions returns every version ordered by restaurant key
	ListRestaurantVersions(ctx context.Context) ([]domain.RestaurantVersion, error)
	// LookupAliases returns the entity bound to each known alias
	LookupAliases(ctx context.Context, aliases []string) (map[string]string, error)
	// BindAliases binds aliases to entities. Binding an alias to the entity it is
	// already bound to is a no-op; rebinding returns domain.ErrConcurrencyConflict.
	BindAliases(ctx context.Context, aliases map[string]string) error
}

// Store defines the interface for warehouse database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore,KeyStore=MockKeyStore,HistoryStore=MockHistoryStore
type Store interface {
	KeyStore
	HistoryStore

	// SaveWarehouse upserts the dimension and fact rows of a snapshot
	SaveWarehouse(ctx context.Context, w *domain.Warehouse) error
	// ListInspectionFacts returns the persisted inspection facts attached to the
	// given restaurant versions, ordered by inspection key
	ListInspectionFacts(ctx context.Context, restaurantKeys []int64) ([]domain.FactInspection, error)
	// SaveRun creates or updates a pipeline run audit row
	SaveRun(ctx context.Context, run *schema.PipelineRun) error
	// GetRun retrieves a pipeline run by ID, nil if it does not exist
	GetRun(ctx context.Context, runID string) (*schema.PipelineRun, error)
	// SaveRejections appends rejected records to the rejected-records log
	SaveRejections(ctx context.Context, records []schema.RejectedRecord) error
	// GetRejections returns the rejected records of a run ordered by ID
	GetRejections(ctx context.Context, runID string) ([]schema.RejectedRecord, error)
}
