package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/crmwarm/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/crm.sqlite"

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(context.Background(), db))
	require.FileExists(t, path)
}

func TestAutoMigrateCreatesClientProjection(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	status := "active"
	require.NoError(t, db.Create(&models.Client{ID: 7, Status: &status}).Error)

	var loaded models.Client
	require.NoError(t, db.First(&loaded, 7).Error)
	require.Equal(t, "active", *loaded.Status)
	require.Nil(t, loaded.Name)
	require.Nil(t, loaded.NextFollowUpAt)

	require.True(t, db.Migrator().HasTable(&models.CacheEntry{}))
}

func TestPingNilHandle(t *testing.T) {
	require.Error(t, Ping(context.Background(), nil))
	require.NoError(t, Close(nil))
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
