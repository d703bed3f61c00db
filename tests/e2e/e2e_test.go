// e2e_test.go
//
// Multi-department "no dues" clearance workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of nodues.
// nodues is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// nodues is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with nodues.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/localnerve/nodues/internal/certificates"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/handlers"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/services"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/localnerve/nodues/tests/helpers"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/localnerve/nodues/docs/api"
)

type fullStack struct {
	cfg    *config.Config
	app    *fiber.App
	engine *workflow.Engine
	nc     *nats.Conn
}

// TestE2EWithFullStack tests the entire service stack
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	tc, err := helpers.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to start test containers: %v", err)
	}
	defer tc.Terminate(t)

	s := startStack(t, tc)

	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, s)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/swagger/index.html", nil, "")
		helpers.AssertStatus(t, resp, http.StatusOK)
	})

	t.Run("Clearance", func(t *testing.T) {
		testClearance(t, s)
	})

	t.Run("Authorization", func(t *testing.T) {
		testAuthorization(t, s)
	})

	if tc.AuthorizerContainer != nil {
		t.Run("AuthorizerAccount", func(t *testing.T) {
			email := "e2e-" + time.Now().Format("150405.000") + "@nodues.test"
			account := helpers.AcquireAccount(t, tc.Env["AUTHZ_URL"], email, helpers.GeneratePassword(), []string{"student"})
			assert.NotEmpty(t, account.AccessToken)
			assert.NotEmpty(t, account.UserID)
		})
	}
}

func startStack(t *testing.T, tc *helpers.TestContainers) *fullStack {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()

	cfg := tc.DB.Config()
	cfg.RedisAddr = tc.Env["REDIS_ADDR"]
	cfg.NATSURL = tc.Env["NATS_URL"]
	cfg.NATSSubjectPrefix = "nodues.e2e"
	cfg.NotifyBuffer = 16
	cfg.S3Endpoint = tc.Env["S3_ENDPOINT"]
	cfg.S3AccessKey = tc.Env["S3_ACCESS_KEY"]
	cfg.S3SecretKey = tc.Env["S3_SECRET_KEY"]

	db, err := database.Connect(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, database.AutoMigrate(db))

	reg, err := registry.FromList(cfg.Departments)
	require.NoError(t, err)

	publisher, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })
	hub := notify.NewHub(cfg.NotifyBuffer, log)

	redisOpt := certificates.RedisOpt(cfg)
	client := asynq.NewClient(redisOpt)
	t.Cleanup(func() { _ = client.Close() })
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() { _ = inspector.Close() })

	engine := workflow.New(db, reg,
		workflow.WithPublisher(notify.Multi{hub, publisher}),
		workflow.WithCertificateTrigger(certificates.NewEnqueuer(client, inspector, cfg.CertQueue, log)),
		workflow.WithLogger(log),
	)

	objects, err := certificates.NewStorage(cfg)
	require.NoError(t, err)
	require.NoError(t, objects.EnsureBucket(ctx))

	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{cfg.CertQueue: 1},
	})
	processor := certificates.NewProcessor(engine, objects, certificates.NewRenderer(reg), log)
	require.NoError(t, worker.Start(processor.Handler()))
	t.Cleanup(worker.Shutdown)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler, Immutable: true})
	app.Get("/swagger/*", swagger.HandlerDefault)
	api := app.Group("/api/v1")
	api.Use(middleware.VersionMiddleware())
	handlers.Register(api, handlers.Dependencies{
		Config:       cfg,
		DB:           db,
		Engine:       engine,
		Registry:     reg,
		Hub:          hub,
		Certificates: objects,
		CertURLTTL:   time.Minute,
		Resolver:     middleware.HeaderResolver{},
		Log:          log,
	})

	nc, err := nats.Connect(cfg.NATSURL)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	return &fullStack{cfg: cfg, app: app, engine: engine, nc: nc}
}

func (s *fullStack) do(t *testing.T, method, path string, body interface{}, id string, roles ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	helpers.SetIdentity(req, id, roles...)
	resp, err := s.app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func testHealthCheck(t *testing.T, s *fullStack) {
	resp := s.do(t, http.MethodGet, "/api/v1/health", nil, "")
	helpers.AssertStatus(t, resp, http.StatusOK)

	var result services.HealthCheckResult
	helpers.ParseJSON(t, resp, &result)
	assert.Equal(t, "healthy", result.Status, result.ErrorMessage)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "ok", result.Broker)
	assert.Equal(t, "ok", result.Queue)
}

func testClearance(t *testing.T, s *fullStack) {
	var (
		mu     sync.Mutex
		events []notify.Event
	)
	sub, err := s.nc.Subscribe(s.cfg.NATSSubjectPrefix+".>", func(m *nats.Msg) {
		var e notify.Event
		if json.Unmarshal(m.Data, &e) == nil {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()
	require.NoError(t, s.nc.Flush())

	resp := s.do(t, http.MethodPost, "/api/v1/applications", map[string]interface{}{
		"registration_no": "e2e-001",
		"departments":     []string{"library", "accounts"},
	}, "student-1", "student")
	helpers.AssertStatus(t, resp, http.StatusCreated)
	var state workflow.ApplicationState
	helpers.ParseJSON(t, resp, &state)
	require.Len(t, state.Approvals, 2)

	resp = s.do(t, http.MethodPost, "/api/v1/applications/"+state.ID+"/departments/accounts/decision",
		map[string]string{"decision": "rejected", "reason": "library fine"}, "cashier", "department:accounts")
	helpers.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodPost, "/api/v1/applications/"+state.ID+"/reapply",
		map[string]string{"department": "accounts", "message": "paid"}, "student-1", "student")
	helpers.AssertStatus(t, resp, http.StatusOK)

	for _, dept := range []string{"library", "accounts"} {
		resp = s.do(t, http.MethodPost, "/api/v1/applications/"+state.ID+"/departments/"+dept+"/decision",
			map[string]string{"decision": "approved"}, "staff-"+dept, "department:"+dept)
		helpers.AssertStatus(t, resp, http.StatusOK)
	}

	var cert handlers.CertificateResponse
	require.Eventually(t, func() bool {
		resp := s.do(t, http.MethodGet, "/api/v1/applications/"+state.ID+"/certificate", nil, "student-1", "student")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		helpers.ParseJSON(t, resp, &cert)
		return cert.URL != ""
	}, 30*time.Second, 250*time.Millisecond)

	download, err := http.Get(cert.URL)
	require.NoError(t, err)
	defer download.Body.Close()
	require.Equal(t, http.StatusOK, download.StatusCode)
	text, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "E2E-001")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		seen := map[notify.EventType]bool{}
		for _, e := range events {
			if e.ApplicationID == state.ID {
				seen[e.Type] = true
			}
		}
		return seen[notify.DepartmentDecided] && seen[notify.Reapplied] && seen[notify.CertificateChanged]
	}, 10*time.Second, 100*time.Millisecond)
}

func testAuthorization(t *testing.T, s *fullStack) {
	resp := s.do(t, http.MethodPost, "/api/v1/applications", map[string]string{
		"registration_no": "e2e-002",
	}, "")
	helpers.AssertErrorType(t, resp, http.StatusForbidden, "authorization")

	resp = s.do(t, http.MethodPost, "/api/v1/applications", map[string]string{
		"registration_no": "e2e-002",
	}, "student-2", "student")
	helpers.AssertStatus(t, resp, http.StatusCreated)
	var state workflow.ApplicationState
	helpers.ParseJSON(t, resp, &state)

	// A department may only decide for itself
	resp = s.do(t, http.MethodPost, "/api/v1/applications/"+state.ID+"/departments/library/decision",
		map[string]string{"decision": "approved"}, "cashier", "department:accounts")
	helpers.AssertErrorType(t, resp, http.StatusForbidden, "authorization")

	resp = s.do(t, http.MethodPost, "/api/v1/applications", map[string]string{
		"registration_no": "e2e-002",
	}, "student-2", "student")
	helpers.AssertErrorType(t, resp, http.StatusConflict, "duplicate_application")
}
