package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/afyacare/clinic-api/internal/domain/entity"
)

func newIdempotencyDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entity.IdempotencyKey{}))
	return db
}

func TestIdempotencyRepository(t *testing.T) {
	repo := NewIdempotencyRepository(newIdempotencyDB(t))
	ctx := context.Background()
	userID := uuid.New()

	t.Run("stores a key and replays it for the same user", func(t *testing.T) {
		ikey := &entity.IdempotencyKey{
			Key:          "pay-7c1f",
			UserID:       userID,
			Endpoint:     "POST /api/v1/billing/invoices/:id/payments",
			ResponseCode: 201,
			ResponseBody: `{"success":true}`,
			ExpiresAt:    time.Now().Add(time.Hour),
		}
		require.NoError(t, repo.Create(ctx, ikey))
		assert.NotEqual(t, uuid.Nil, ikey.ID)

		found, err := repo.GetByKey(ctx, "pay-7c1f", userID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 201, found.ResponseCode)
		assert.False(t, found.IsExpired())
	})

	t.Run("key is scoped to the user who sent it", func(t *testing.T) {
		found, err := repo.GetByKey(ctx, "pay-7c1f", uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("expired keys are purged", func(t *testing.T) {
		stale := &entity.IdempotencyKey{
			Key:          "pay-old",
			UserID:       userID,
			Endpoint:     "POST /api/v1/payments/mobile",
			ResponseCode: 200,
			ExpiresAt:    time.Now().Add(-time.Minute),
		}
		require.NoError(t, repo.Create(ctx, stale))
		require.NoError(t, repo.DeleteExpired(ctx))

		found, err := repo.GetByKey(ctx, "pay-old", userID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
