package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"alexandria/internal/util"
)

// newGormStore connects to the Postgres named by STOREFRONT_TEST_DATABASE_URL
// and skips the test when it is unset.
func newGormStore(t *testing.T, ttl time.Duration) *GormSessionStore {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DATABASE_URL not set")
	}
	s, err := NewGormSessionStore(dsn, ttl)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return s
}

func countRows(t *testing.T, s *GormSessionStore, id string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&SessionModel{}).Where("id = ?", id).Count(&n).Error)
	return n
}

func TestGormSessionStoreLifecycle(t *testing.T) {
	exerciseLifecycle(t, newGormStore(t, time.Hour))
}

func TestGormSessionStoreClearsUndecodableRecords(t *testing.T) {
	s := newGormStore(t, time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name   string
		record string
	}{
		{name: "record without user", record: `{"id":"orphan"}`},
		{name: "record for another session", record: `{"id":"someone-else","user":{"userID":7,"username":"alice","Role":"Customer"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := util.NewID()
			require.NoError(t, s.db.Create(&SessionModel{
				ID:        id,
				UserID:    7,
				Record:    datatypes.JSON(tt.record),
				CreatedAt: now,
				UpdatedAt: now,
			}).Error)

			_, ok, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Zero(t, countRows(t, s, id))
		})
	}
}

func TestGormSessionStorePurgeExpired(t *testing.T) {
	s := newGormStore(t, time.Hour)
	ctx := context.Background()

	s.now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	stale, err := s.Create(ctx, alice)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().UTC() }
	live, err := s.Create(ctx, alice)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Delete(ctx, live.ID) })

	_, ok, err := s.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, ok, "expired sessions are not returned")

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, purged, int64(1))
	assert.Zero(t, countRows(t, s, stale.ID))
	assert.EqualValues(t, 1, countRows(t, s, live.ID))
}
