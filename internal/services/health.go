package services

import (
	"context"
	"fmt"
	"time"

	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const probeTimeout = 1500 * time.Millisecond

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer,omitempty"`
	Broker       string            `json:"broker,omitempty"`
	Queue        string            `json:"queue,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(component, detail string, err error) {
	r.Status = "unhealthy"
	r.Details[component+"_error"] = err.Error()
	msg := fmt.Sprintf("%s: %v", detail, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage += "; " + msg
	}
}

// HealthCheck performs a comprehensive health check of the service. Optional
// collaborators (authorizer, NATS, Redis) are only probed when configured.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, log zerolog.Logger) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.fail("database", "Database connection error", err)
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			result.Database = "unreachable"
			result.fail("database_ping", "Database ping failed", err)
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	if cfg.AuthMode == "authorizer" {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.Authorizer = "unreachable"
			result.fail("authorizer", "Authorizer ping failed", err)
		} else {
			result.Authorizer = "ok"
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if cfg.NATSURL != "" {
		if err := utils.PingService(cfg.NATSURL, probeTimeout); err != nil {
			result.Broker = "unreachable"
			result.fail("broker", "NATS ping failed", err)
		} else {
			result.Broker = "ok"
		}
	}

	if cfg.RedisAddr != "" {
		if err := utils.PingAddress(cfg.RedisAddr, probeTimeout); err != nil {
			result.Queue = "unreachable"
			result.fail("queue", "Redis ping failed", err)
		} else {
			result.Queue = "ok"
		}
	}

	if result.Status == "healthy" {
		log.Debug().Msg("health check passed")
	} else {
		log.Warn().Str("error", result.ErrorMessage).Msg("health check failed")
	}

	return result
}
