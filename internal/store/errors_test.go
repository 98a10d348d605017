package store

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantConflict  bool
		wantTransient bool
	}{
		{name: "nil", err: nil},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, wantConflict: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: "40001"}, wantTransient: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, wantTransient: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, wantTransient: true},
		{name: "wrapped bad conn", err: fmt.Errorf("query: %w", driver.ErrBadConn), wantTransient: true},
		{name: "syntax error", err: &pgconn.PgError{Code: "42601"}},
		{name: "already classified", err: domain.ErrConcurrencyConflict, wantConflict: true},
		{name: "other", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.wantConflict, errors.Is(got, domain.ErrConcurrencyConflict))
			assert.Equal(t, tt.wantTransient, errors.Is(got, domain.ErrTransientStore))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestCalculateSafeBatchSize(t *testing.T) {
	assert.Equal(t, 10, calculateSafeBatchSize(10, 5))
	assert.Equal(t, 6453, calculateSafeBatchSize(100000, 10))
	assert.Equal(t, 1, calculateSafeBatchSize(5, 100000))
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
	assert.Equal(t, 20, open)
	assert.Equal(t, 5, idle)
	assert.NotZero(t, lifetime)
	assert.NotZero(t, idleTime)

	open, idle, _, _ = NormalizeConnectionPoolSettings(3, 10, 1, 1)
	assert.Equal(t, 3, open)
	assert.Equal(t, 3, idle)
}
