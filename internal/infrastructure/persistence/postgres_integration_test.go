package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/landedcost/internal/domain/catalog"
	"github.com/storefront/landedcost/internal/domain/shared"
	"github.com/storefront/landedcost/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresRepository starts a throwaway PostgreSQL container and applies
// the embedded migrations. Set LANDEDCOST_INTEGRATION=1 to run it.
func newPostgresRepository(t *testing.T) *GormProductRepository {
	t.Helper()
	if testing.Short() || os.Getenv("LANDEDCOST_INTEGRATION") == "" {
		t.Skip("set LANDEDCOST_INTEGRATION=1 to run PostgreSQL integration tests")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("landedcost_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return NewGormProductRepository(db)
}

func TestPostgres_ProductLifecycle(t *testing.T) {
	repo := newPostgresRepository(t)
	ctx := context.Background()

	p := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-1")
	require.NoError(t, p.SetPrice(decimal.RequireFromString("101.95")))
	p.SetImages([]string{"https://cdn.example.com/a.jpg"})
	p.MarkSynced(time.Now())
	require.NoError(t, repo.Create(ctx, p))

	dup := newLinkedProduct(t, "Linen Shirt", "linen-shirt", "SUP-2")
	assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)

	v, err := catalog.NewVariant(p.ID, "M", "SKU-M", decimal.RequireFromString("101.95"), 3)
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceVariants(ctx, p.ID, []catalog.Variant{*v}))

	require.NoError(t, p.SetPrice(decimal.RequireFromString("103.95")))
	p.MarkSynced(time.Now())
	require.NoError(t, repo.Update(ctx, p, catalog.FieldPrice, catalog.FieldSyncedAt))

	found, err := repo.FindByExternalID(ctx, "SUP-1")
	require.NoError(t, err)
	assert.Equal(t, "103.95", found.Price.StringFixed(2))
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, found.Images)

	variants, err := repo.FindVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "SKU-M", variants[0].ExternalSKU)
}
