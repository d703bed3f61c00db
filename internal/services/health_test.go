package services

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/localnerve/nodues/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func closedAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestHealthCheckHealthy(t *testing.T) {
	cfg := &config.Config{DBType: "sqlite3", DBDatabase: "nodues", AuthMode: "header"}
	result := HealthCheck(context.Background(), cfg, testDB(t), zerolog.Nop())

	assert.Equal(t, "healthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Empty(t, result.Authorizer)
	assert.Empty(t, result.ErrorMessage)
}

func TestHealthCheckReportsUnreachableCollaborators(t *testing.T) {
	cfg := &config.Config{
		DBType:    "sqlite3",
		AuthMode:  "header",
		NATSURL:   "nats://" + closedAddress(t),
		RedisAddr: closedAddress(t),
	}
	result := HealthCheck(context.Background(), cfg, testDB(t), zerolog.Nop())

	assert.Equal(t, "unhealthy", result.Status)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "unreachable", result.Broker)
	assert.Equal(t, "unreachable", result.Queue)
	assert.Contains(t, result.ErrorMessage, "NATS ping failed")
	assert.Contains(t, result.ErrorMessage, "Redis ping failed")
}

func TestValidateSessionRequiresClient(t *testing.T) {
	_, err := ValidateSession("cookie", "admin")
	assert.ErrorContains(t, err, "not initialized")
}
