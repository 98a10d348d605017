package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/store/schema"
)

// retryingStore retries transient failures of the wrapped store with a bounded
// exponential backoff. Any other error is returned immediately.
type retryingStore struct {
	store Store
	cfg   config.RetryConfig
}

// NewRetryingStore wraps a store with bounded retries of domain.ErrTransientStore failures
func NewRetryingStore(store Store, cfg config.RetryConfig) Store {
	return &retryingStore{store: store, cfg: cfg}
}

func (s *retryingStore) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if s.cfg.InitialInterval > 0 {
		b.InitialInterval = s.cfg.InitialInterval
	}
	if s.cfg.MaxInterval > 0 {
		b.MaxInterval = s.cfg.MaxInterval
	}
	b.MaxElapsedTime = s.cfg.MaxElapsedTime
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var bo backoff.BackOff = b
	if s.cfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(bo, s.cfg.MaxRetries)
	}
	return backoff.WithContext(bo, ctx)
}

// retry runs fn until it succeeds, fails permanently or the policy is exhausted
func retry[T any](ctx context.Context, s *retryingStore, op string, fn func() (T, error)) (T, error) {
	var attempts int
	operation := func() (T, error) {
		v, err := fn()
		if err != nil && !errors.Is(err, domain.ErrTransientStore) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, next time.Duration) {
		attempts++
		logger.WarnCtx(ctx, "Store operation failed, retrying",
			zap.String("operation", op),
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Duration("next_retry_in", next))
	}

	v, err := backoff.RetryNotifyWithData(operation, s.newBackOff(ctx), notify)
	if err != nil {
		if attempts > 0 {
			return v, fmt.Errorf("%s failed after %d attempts: %w", op, attempts+1, err)
		}
		return v, err
	}
	return v, nil
}

func retryErr(ctx context.Context, s *retryingStore, op string, fn func() error) error {
	_, err := retry(ctx, s, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (s *retryingStore) GetOrAllocateKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, error) {
	return retry(ctx, s, "get_or_allocate_key", func() (int64, error) {
		return s.store.GetOrAllocateKey(ctx, dim, naturalKey)
	})
}

func (s *retryingStore) LookupKey(ctx context.Context, dim domain.Dimension, naturalKey string) (int64, bool, error) {
	type lookup struct {
		key   int64
		found bool
	}
	r, err := retry(ctx, s, "lookup_key", func() (lookup, error) {
		key, found, err := s.store.LookupKey(ctx, dim, naturalKey)
		return lookup{key, found}, err
	})
	return r.key, r.found, err
}

func (s *retryingStore) LoadRestaurantHistory(ctx context.Context, businessNK string) ([]domain.RestaurantVersion, error) {
	return retry(ctx, s, "load_restaurant_history", func() ([]domain.RestaurantVersion, error) {
		return s.store.LoadRestaurantHistory(ctx, businessNK)
	})
}

func (s *retryingStore) SaveRestaurantHistory(ctx context.Context, businessNK string, expectedCurrentKey int64, versions []domain.RestaurantVersion) error {
	return retryErr(ctx, s, "save_restaurant_history", func() error {
		return s.store.SaveRestaurantHistory(ctx, businessNK, expectedCurrentKey, versions)
	})
}

func (s *retryingStore) ListRestaurantVersions(ctx context.Context) ([]domain.RestaurantVersion, error) {
	return retry(ctx, s, "list_restaurant_versions", func() ([]domain.RestaurantVersion, error) {
		return s.store.ListRestaurantVersions(ctx)
	})
}

func (s *retryingStore) LookupAliases(ctx context.Context, aliases []string) (map[string]string, error) {
	return retry(ctx, s, "lookup_aliases", func() (map[string]string, error) {
		return s.store.LookupAliases(ctx, aliases)
	})
}

func (s *retryingStore) BindAliases(ctx context.Context, aliases map[string]string) error {
	return retryErr(ctx, s, "bind_aliases", func() error {
		return s.store.BindAliases(ctx, aliases)
	})
}

func (s *retryingStore) SaveWarehouse(ctx context.Context, w *domain.Warehouse) error {
	return retryErr(ctx, s, "save_warehouse", func() error {
		return s.store.SaveWarehouse(ctx, w)
	})
}

func (s *retryingStore) ListInspectionFacts(ctx context.Context, restaurantKeys []int64) ([]domain.FactInspection, error) {
	return retry(ctx, s, "list_inspection_facts", func() ([]domain.FactInspection, error) {
		return s.store.ListInspectionFacts(ctx, restaurantKeys)
	})
}

func (s *retryingStore) SaveRun(ctx context.Context, run *schema.PipelineRun) error {
	return retryErr(ctx, s, "save_run", func() error {
		return s.store.SaveRun(ctx, run)
	})
}

func (s *retryingStore) GetRun(ctx context.Context, runID string) (*schema.PipelineRun, error) {
	return retry(ctx, s, "get_run", func() (*schema.PipelineRun, error) {
		return s.store.GetRun(ctx, runID)
	})
}

func (s *retryingStore) SaveRejections(ctx context.Context, records []schema.RejectedRecord) error {
	return retryErr(ctx, s, "save_rejections", func() error {
		return s.store.SaveRejections(ctx, records)
	})
}

func (s *retryingStore) GetRejections(ctx context.Context, runID string) ([]schema.RejectedRecord, error) {
	return retry(ctx, s, "get_rejections", func() ([]schema.RejectedRecord, error) {
		return s.store.GetRejections(ctx, runID)
	})
}
