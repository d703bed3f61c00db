package database

import (
	"testing"

	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectorByType(t *testing.T) {
	cases := map[string]string{
		"mysql":     "mysql",
		"mariadb":   "mysql",
		"postgres":  "postgres",
		"sqlite":    "sqlite",
		"sqlite3":   "sqlite",
		"sqlserver": "sqlserver",
	}
	for dbType, name := range cases {
		cfg := &config.Config{DBType: dbType, DBHost: "db", DBPort: "1", DBDatabase: "nodues"}
		d, err := Dialector(cfg, "u", "p")
		require.NoError(t, err, dbType)
		assert.Equal(t, name, d.Name(), dbType)
	}

	_, err := Dialector(&config.Config{DBType: "oracle"}, "u", "p")
	assert.EqualError(t, err, "unsupported database type: oracle")
}

func TestConnectSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{
		DBType:               "sqlite3",
		DBDatabase:           "file:connect_test?mode=memory&cache=shared",
		DBAppConnectionLimit: 8,
	}
	db, err := Connect(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Application{}))
	assert.True(t, db.Migrator().HasTable(&models.ApprovalRecord{}))
	assert.True(t, db.Migrator().HasTable(&models.AuditEntry{}))
	assert.True(t, db.Migrator().HasIndex(&models.ApprovalRecord{}, "idx_approval_application_department"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}
