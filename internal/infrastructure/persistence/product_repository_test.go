package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/shared"
	"github.com/storefront/landedcost/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newSQLiteRepository opens an in-memory catalog store with the schema applied
func newSQLiteRepository(t *testing.T) *GormProductRepository {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())
	return NewGormProductRepository(db.DB)
}

// newMockProductRepository creates a GormProductRepository with a mocked SQL connection
func newMockProductRepository(t *testing.T) (*GormProductRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, TranslateError: true})
	require.NoError(t, err)

	return NewGormProductRepository(gormDB), mock, mockDB
}

func newLinkedProduct(t *testing.T, title, slug, externalID string) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(title, slug)
	require.NoError(t, err)
	require.NoError(t, p.LinkExternalID(externalID))
	return p
}

func TestGormProductRepository_CreateAndFind(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
	require.NoError(t, p.SetPrice(decimal.RequireFromString("101.95")))
	p.SetStock(4)
	p.SetImages([]string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"})
	p.SetVideoURL("https://cdn.example.com/v.mp4")
	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.MarkSynced(synced)

	require.NoError(t, repo.Create(ctx, p))

	found, err := repo.FindByExternalID(ctx, "SUP-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, "linen-shirt", found.Slug)
	assert.True(t, decimal.RequireFromString("101.95").Equal(found.Price), "got %s", found.Price)
	assert.Equal(t, int64(4), found.Stock)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, found.Images)
	assert.Equal(t, "https://cdn.example.com/v.mp4", found.VideoURL)
	assert.Equal(t, p.GetVersion(), found.GetVersion())
	require.NotNil(t, found.SyncedAt)
	assert.WithinDuration(t, synced, *found.SyncedAt, time.Second)
	assert.Empty(t, found.GetDomainEvents())

	byID, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", byID.Title)
}

func TestGormProductRepository_NotFound(t *testing.T) {
	repo := newSQLiteRepository(t)

	_, err := repo.FindByExternalID(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProductRepository_UniqueViolations(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")))

	t.Run("same slug", func(t *testing.T) {
		err := repo.Create(ctx, newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-2"))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("same external id", func(t *testing.T) {
		err := repo.Create(ctx, newLinkedProduct(t, "Linen Shirt", "linen-shirt-9", "SUP-1"))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	exists, err := repo.ExistsBySlug(ctx, "linen-shirt")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsBySlug(ctx, "linen-shirt-2")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := repo.CountByExternalID(ctx, "SUP-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormProductRepository_UpdateWritesOnlyListedFields(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
	p.SetImages([]string{"https://cdn.example.com/old.jpg"})
	require.NoError(t, p.SetPrice(decimal.NewFromInt(50)))
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, p.Rename("Linen Shirt v2"))
	p.SetImages([]string{"https://cdn.example.com/new.jpg"})
	require.NoError(t, p.SetPrice(decimal.NewFromInt(60)))
	p.SetStock(9)
	p.MarkSynced(time.Now())

	require.NoError(t, repo.Update(ctx, p, catalog.FieldTitle, catalog.FieldStock, catalog.FieldSyncedAt))

	found, err := repo.FindByExternalID(ctx, "SUP-1")
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt v2", found.Title)
	assert.Equal(t, int64(9), found.Stock)
	assert.Equal(t, []string{"https://cdn.example.com/old.jpg"}, found.Images)
	assert.True(t, decimal.NewFromInt(50).Equal(found.Price))
	assert.Equal(t, p.GetVersion(), found.GetVersion())
	assert.NotNil(t, found.SyncedAt)
}

func TestGormProductRepository_UpdateMissingProduct(t *testing.T) {
	repo := newSQLiteRepository(t)
	p := newLinkedProduct(t, "Ghost", "ghost", "SUP-404")

	err := repo.Update(context.Background(), p, catalog.FieldTitle)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProductRepository_UpdateUnknownField(t *testing.T) {
	repo := newSQLiteRepository(t)
	p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
	require.NoError(t, repo.Create(context.Background(), p))

	err := repo.Update(context.Background(), p, catalog.Field("colour"))
	require.Error(t, err)
	assert.Equal(t, "INVALID_FIELD", shared.ErrorCode(err))
}

func TestGormProductRepository_ReplaceVariants(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
	require.NoError(t, repo.Create(ctx, p))

	build := func(labels ...string) []catalog.Variant {
		out := make([]catalog.Variant, 0, len(labels))
		for i, l := range labels {
			v, err := catalog.NewVariant(p.ID, l, "SKU-"+l, decimal.NewFromInt(int64(10+i)), int64(i))
			require.NoError(t, err)
			v.Position = i
			out = append(out, *v)
		}
		return out
	}

	require.NoError(t, repo.ReplaceVariants(ctx, p.ID, build("S", "M", "L")))
	variants, err := repo.FindVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, variants, 3)
	assert.Equal(t, []string{"S", "M", "L"}, []string{variants[0].OptionLabel, variants[1].OptionLabel, variants[2].OptionLabel})
	assert.True(t, decimal.NewFromInt(12).Equal(variants[2].Price))

	require.NoError(t, repo.ReplaceVariants(ctx, p.ID, build("XL")))
	variants, err = repo.FindVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "XL", variants[0].OptionLabel)

	require.NoError(t, repo.ReplaceVariants(ctx, p.ID, nil))
	variants, err = repo.FindVariants(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestGormProductRepository_DatabaseErrors(t *testing.T) {
	t.Run("lookup error is returned as is", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "catalog_products" WHERE external_id = \$1`).
			WillReturnError(errors.New("connection reset by peer"))

		_, err := repo.FindByExternalID(context.Background(), "SUP-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset by peer")
		assert.NotErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update with no matching row", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "catalog_products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
		err := repo.Update(context.Background(), p, catalog.FieldTitle)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("variant replacement rolls back on insert failure", func(t *testing.T) {
		repo, mock, mockDB := newMockProductRepository(t)
		defer mockDB.Close()

		productID := uuid.New()
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "catalog_variants" WHERE product_id = \$1`).
			WithArgs(productID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO "catalog_variants"`).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		v, err := catalog.NewVariant(productID, "M", "SKU-M", decimal.NewFromInt(10), 1)
		require.NoError(t, err)
		err = repo.ReplaceVariants(context.Background(), productID, []catalog.Variant{*v})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
