package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/handlers"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an isolated in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

type presigner struct{}

func (presigner) Put(context.Context, string, []byte) error { return nil }

func (presigner) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?sig=1", nil
}

type testServer struct {
	app    *fiber.App
	engine *workflow.Engine
	hub    *notify.Hub
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db := setupTestDB(t)
	reg, err := registry.FromList("library,accounts")
	require.NoError(t, err)
	hub := notify.NewHub(64, zerolog.Nop())
	engine := workflow.New(db, reg, workflow.WithPublisher(hub))

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	handlers.Register(app.Group("/api/v1"), handlers.Dependencies{
		Config:       &config.Config{DBType: "sqlite3", AuthMode: "header"},
		DB:           db,
		Engine:       engine,
		Registry:     reg,
		Certificates: presigner{},
		CertURLTTL:   time.Minute,
		Resolver:     middleware.HeaderResolver{},
		Hub:          hub,
		Log:          zerolog.Nop(),
	})
	return &testServer{app: app, engine: engine, hub: hub}
}

type identity struct {
	id    string
	roles string
}

var (
	student   = identity{"s-100", "student"}
	librarian = identity{"librarian", "department:library"}
	cashier   = identity{"cashier", "department:accounts"}
	registrar = identity{"registrar", "admin"}
)

func (s *testServer) do(t *testing.T, who identity, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who.id != "" {
		req.Header.Set(middleware.HeaderActorID, who.id)
		req.Header.Set(middleware.HeaderActorRole, who.roles)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (s *testServer) create(t *testing.T, regNo string) string {
	t.Helper()
	resp, body := s.do(t, student, "POST", "/api/v1/applications", map[string]interface{}{
		"registration_no": regNo,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	return body["id"].(string)
}

func TestCreateApplicationRoute(t *testing.T) {
	s := setupServer(t)

	resp, body := s.do(t, student, "POST", "/api/v1/applications", map[string]interface{}{
		"registration_no": "cs-2026-001",
		"departments":     "library, accounts",
		"profile":         map[string]string{"name": "Asha"},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "CS-2026-001", body["registration_no"])
	assert.Equal(t, "pending", body["aggregate_status"])
	assert.Len(t, body["approvals"], 2)

	resp, body = s.do(t, student, "POST", "/api/v1/applications", map[string]interface{}{
		"registration_no": "CS-2026-001",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_application", body["type"])

	resp, body = s.do(t, student, "POST", "/api/v1/applications", map[string]interface{}{
		"entry_kind": "express",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	fields := body["fields"].(map[string]interface{})
	assert.Contains(t, fields, "registration_no")
	assert.Contains(t, fields, "entry_kind")

	resp, _ = s.do(t, librarian, "POST", "/api/v1/applications", map[string]interface{}{
		"registration_no": "CS-2026-002",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, identity{}, "GET", "/api/v1/applications/by-registration/cs-2026-001", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, cashier, "GET", "/api/v1/applications/by-registration/cs-2026-001", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Asha", body["profile"].(map[string]interface{})["name"])
}

func TestDecisionRoutes(t *testing.T) {
	s := setupServer(t)
	id := s.create(t, "A1")
	decide := func(who identity, department string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
		return s.do(t, who, "POST", "/api/v1/applications/"+id+"/departments/"+department+"/decision", body)
	}

	resp, _ := decide(cashier, "library", map[string]interface{}{"decision": "approved"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := decide(librarian, "library", map[string]interface{}{"decision": "rejected"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "reason")

	resp, body = decide(librarian, "library", map[string]interface{}{"decision": "approved", "remarks": "all books returned"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_progress", body["aggregate_status"])

	resp, body = decide(librarian, "library", map[string]interface{}{"decision": "approved"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["type"])
	assert.Equal(t, false, body["conflict"])

	resp, body = decide(cashier, "accounts", map[string]interface{}{"decision": "rejected", "reason": "fee due"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "rejected", body["aggregate_status"])

	resp, body = s.do(t, student, "POST", "/api/v1/applications/"+id+"/reapply", map[string]interface{}{
		"department": "accounts",
		"message":    "paid",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_progress", body["aggregate_status"])
	assert.Equal(t, float64(1), body["reapplication_count"])

	resp, body = s.do(t, student, "POST", "/api/v1/applications/"+id+"/reapply", map[string]interface{}{
		"department": "ALL",
		"message":    "again",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "nothing_to_reapply", body["type"])

	resp, _ = decide(registrar, "accounts", map[string]interface{}{"decision": "approved"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body = s.do(t, student, "GET", "/api/v1/applications/"+id, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["aggregate_status"])
	assert.Equal(t, "pending", body["certificate_state"])

	resp, body = s.do(t, student, "GET", "/api/v1/applications/"+id+"/audit?page_size=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(5), meta["total"])
	assert.Equal(t, true, meta["has_next"])
	assert.Len(t, body["entries"], 2)

	resp, _ = s.do(t, cashier, "GET", "/api/v1/departments/library/audit", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, librarian, "GET", "/api/v1/departments/library/audit", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["entries"], 1)
}

func TestDecisionEventsKeepTheirDepartment(t *testing.T) {
	s := setupServer(t)
	first := s.create(t, "EV-1")
	second := s.create(t, "EV-2")

	events, cancel := s.hub.Subscribe()
	defer cancel()

	resp, _ := s.do(t, librarian, "POST", "/api/v1/applications/"+first+"/departments/library/decision", map[string]interface{}{"decision": "approved"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	for i := 0; i < 5; i++ {
		s.do(t, cashier, "POST", "/api/v1/applications/"+second+"/departments/accounts/decision", map[string]interface{}{"decision": "approved"})
	}
	resp, _ = s.do(t, librarian, "POST", "/api/v1/departments/library/decisions/bulk", map[string]interface{}{
		"application_ids": []string{second},
		"decision":        "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got []notify.Event
	for len(got) < 3 {
		select {
		case e := <-events:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("received %d of 3 events", len(got))
		}
	}
	assert.Equal(t, first, got[0].ApplicationID)
	assert.Equal(t, []string{"library"}, got[0].Departments)
	assert.Equal(t, "librarian", got[0].Actor)
	assert.Equal(t, []string{"accounts"}, got[1].Departments)
	assert.Equal(t, "cashier", got[1].Actor)
	assert.Equal(t, second, got[2].ApplicationID)
	assert.Equal(t, []string{"library"}, got[2].Departments)
}

func TestBulkDecideRoute(t *testing.T) {
	s := setupServer(t)
	ids := []string{s.create(t, "B1"), s.create(t, "B2"), s.create(t, "B3")}

	resp, _ := s.do(t, librarian, "POST", "/api/v1/applications/"+ids[1]+"/departments/library/decision", map[string]interface{}{
		"decision": "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := s.do(t, librarian, "POST", "/api/v1/departments/library/decisions/bulk", map[string]interface{}{
		"application_ids": append(ids, "missing"),
		"decision":        "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["succeeded"])
	assert.Equal(t, float64(2), body["failed"])

	results := body["results"].([]interface{})
	require.Len(t, results, 4)
	codes := make([]string, len(results))
	for i, r := range results {
		codes[i] = r.(map[string]interface{})["code"].(string)
	}
	assert.Equal(t, []string{"ok", "invalid_transition", "ok", "not_found"}, codes)

	resp, body = s.do(t, librarian, "POST", "/api/v1/departments/library/decisions/bulk", map[string]interface{}{
		"application_ids": []string{},
		"decision":        "approved",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "application_ids")

	resp, body = s.do(t, librarian, "GET", "/api/v1/departments/library/approvals?status=approved", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 3)

	resp, body = s.do(t, cashier, "GET", "/api/v1/departments/accounts/approvals?status=pending&page=2&page_size=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 1)
}

func TestManualAndCertificateRoutes(t *testing.T) {
	s := setupServer(t)

	resp, body := s.do(t, registrar, "POST", "/api/v1/applications", map[string]interface{}{
		"registration_no": "M1",
		"entry_kind":      "manual",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	id := body["id"].(string)

	resp, body = s.do(t, librarian, "POST", "/api/v1/applications/"+id+"/departments/library/decision", map[string]interface{}{
		"decision": "approved",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "unsupported_entry_kind", body["type"])

	resp, _ = s.do(t, student, "POST", "/api/v1/applications/"+id+"/manual-review", map[string]interface{}{
		"decision": "approved",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, registrar, "POST", "/api/v1/applications/"+id+"/manual-review", map[string]interface{}{
		"decision": "approved",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["aggregate_status"])

	resp, body = s.do(t, student, "GET", "/api/v1/applications/"+id+"/certificate", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["certificate_state"])
	assert.NotContains(t, body, "url")

	_, err := s.engine.RecordCertificate(context.Background(), workflow.CertificateInput{
		ApplicationID: id,
		Outcome:       models.CertificateGenerated,
		Reference:     "certificates/M1.txt",
		Actor:         workflow.SystemActor,
	})
	require.NoError(t, err)

	resp, body = s.do(t, student, "GET", "/api/v1/applications/"+id+"/certificate", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "generated", body["certificate_state"])
	assert.Equal(t, "https://objects.test/certificates/M1.txt?sig=1", body["url"])

	resp, body = s.do(t, registrar, "POST", "/api/v1/applications/"+id+"/certificate/retry", nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", body["type"])
}

func TestDepartmentsAndHealthRoutes(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest("GET", "/api/v1/departments", nil)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var departments []handlers.DepartmentView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&departments))
	require.Len(t, departments, 2)
	assert.Equal(t, "library", departments[0].Name)
	assert.True(t, departments[0].Active)

	resp, body := s.do(t, identity{}, "GET", "/api/v1/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = s.do(t, student, "GET", "/api/v1/applications/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["type"])
}
