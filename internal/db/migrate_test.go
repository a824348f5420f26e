package db

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEnsureIndexes_Postgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(ActiveCartIndexSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(PendingOutboxIndexSQL)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureIndexes(gdb))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureIndexes_StopsOnFirstError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(ActiveCartIndexSQL)).
		WillReturnError(assert.AnError)

	assert.ErrorIs(t, EnsureIndexes(gdb), assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureIndexes_RejectsSecondActiveCart(t *testing.T) {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(testDB)

	require.NoError(t, EnsureIndexes(testDB))

	require.NoError(t, testDB.Create(&model.Cart{UserID: 1, Active: true}).Error)
	assert.Error(t, testDB.Create(&model.Cart{UserID: 1, Active: true}).Error)

	// Inactive history rows are unrestricted.
	now := time.Now()
	assert.NoError(t, testDB.Create(&model.Cart{UserID: 1, Active: false, CheckedOutAt: &now}).Error)
	assert.NoError(t, testDB.Create(&model.Cart{UserID: 1, Active: false, CheckedOutAt: &now}).Error)
	assert.NoError(t, testDB.Create(&model.Cart{UserID: 2, Active: true}).Error)
}

func TestSeedProducts_OnlyWhenEmpty(t *testing.T) {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(testDB)

	require.NoError(t, seedProducts(testDB))
	var count int64
	testDB.Model(&model.Product{}).Count(&count)
	assert.Equal(t, int64(4), count)

	require.NoError(t, seedProducts(testDB))
	testDB.Model(&model.Product{}).Count(&count)
	assert.Equal(t, int64(4), count)
}

func TestTruncateAllTables(t *testing.T) {
	testDB, err := SetupTestDB()
	require.NoError(t, err)
	defer CleanupTestDB(testDB)

	require.NoError(t, seedProducts(testDB))
	require.NoError(t, TruncateAllTables(testDB))

	var count int64
	testDB.Model(&model.Product{}).Count(&count)
	assert.Zero(t, count)
}
