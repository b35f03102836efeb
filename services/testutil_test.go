package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shelf-guard/models"
)

// testDBSeq macht den DSN pro Fixture eindeutig, damit jeder Test seine
// eigene Datenbank bekommt und Autoincrement-IDs bei 1 beginnen.
var testDBSeq atomic.Int64

// newTestDB öffnet eine frische in-memory SQLite-DB mit migriertem Schema und
// geseedetem Händler-Referenzset (Kroger hat ID 3, wie in den Szenarien).
// cache=shared hält die benannte DB über alle Pool-Verbindungen hinweg am Leben.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "should open in-memory sqlite")

	err = db.AutoMigrate(&models.Retailer{}, &models.ProductGroup{}, &models.ProductListing{},
		&models.IngredientSnapshot{}, &models.ConcernIngredient{})
	require.NoError(t, err, "auto-migration should succeed")

	retailers := DefaultRetailers()
	require.NoError(t, db.Create(&retailers).Error, "retailer seeding should succeed")

	return db
}

// Zwei aufeinanderfolgende Fixtures dürfen sich weder Daten noch
// Autoincrement-Stände teilen: Kroger muss in jeder DB die ID 3 haben.
func TestFixturesAreIsolated(t *testing.T) {
	for i := 0; i < 2; i++ {
		db := newTestDB(t)

		var kroger models.Retailer
		require.NoError(t, db.First(&kroger, 3).Error, "fixture %d", i)
		require.Equal(t, "Kroger", kroger.Name, "fixture %d", i)

		var retailerCount, groupCount int64
		db.Model(&models.Retailer{}).Count(&retailerCount)
		db.Model(&models.ProductGroup{}).Count(&groupCount)
		require.EqualValues(t, 5, retailerCount, "fixture %d", i)
		require.Zero(t, groupCount, "fixture %d", i)

		require.NoError(t, db.Create(&models.ProductGroup{
			Brand: "Kroger", BaseName: "Leftover Snack",
			NormalizedBrand: "kroger", NormalizedBaseName: fmt.Sprintf("leftover snack %d", i),
		}).Error)
	}
}

// newTestResolver baut einen Resolver mit geladenem Default-Referenzset.
func newTestResolver(t *testing.T, db *gorm.DB) *ProductIdentityResolver {
	t.Helper()

	matcher := NewIngredientMatcher(zap.NewNop())
	matcher.Load(DefaultConcernIngredients())
	return NewProductIdentityResolver(db, NewNameNormalizer(), matcher, zap.NewNop())
}
