package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/crmwarm/internal/database"
	"github.com/charlesng35/crmwarm/internal/models"
)

// TestDBOption configures MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	clients     []models.Client
}

// WithAutoMigrate creates the clients and cache tables.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithClients migrates the schema and inserts the supplied client rows.
func WithClients(clients ...models.Client) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.clients = append(cfg.clients, clients...)
	}
}

// MustOpenTestDB opens an in-memory SQLite database private to the calling test.
// It is closed when the test ends.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	for i := range cfg.clients {
		require.NoError(t, db.Create(&cfg.clients[i]).Error)
	}

	return db
}

// Ptr returns a pointer to v, for building nullable client columns.
func Ptr[T any](v T) *T {
	return &v
}
