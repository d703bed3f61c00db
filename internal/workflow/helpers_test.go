package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) Trigger(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *recordingTrigger) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type fixture struct {
	db        *gorm.DB
	engine    *Engine
	publisher *recordingPublisher
	trigger   *recordingTrigger
}

// setupTestDB creates an isolated in-memory SQLite database
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

func setup(t *testing.T, departments string) *fixture {
	t.Helper()
	db := setupTestDB(t)
	reg, err := registry.FromList(departments)
	require.NoError(t, err)

	f := &fixture{db: db, publisher: &recordingPublisher{}, trigger: &recordingTrigger{}}
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.engine = New(db, reg,
		WithPublisher(f.publisher),
		WithCertificateTrigger(f.trigger),
		WithClock(func() time.Time { return clock }),
	)
	return f
}

var (
	student = Actor{ID: "student-1", Role: RoleStudent}
	staff   = Actor{ID: "librarian", Role: RoleDepartment}
	admin   = Actor{ID: "registrar", Role: RoleAdmin}
)

func (f *fixture) create(t *testing.T, regNo string, departments ...string) *ApplicationState {
	t.Helper()
	state, err := f.engine.CreateApplication(context.Background(), CreateInput{
		RegistrationNo: regNo,
		Departments:    departments,
		Actor:          student,
	})
	require.NoError(t, err)
	return state
}

func (f *fixture) decide(t *testing.T, id, department string, decision models.ApprovalStatus, reason string) *ApplicationState {
	t.Helper()
	state, err := f.engine.Decide(context.Background(), DecisionInput{
		ApplicationID: id,
		Department:    department,
		Decision:      decision,
		Actor:         staff,
		Reason:        reason,
	})
	require.NoError(t, err)
	return state
}

func (f *fixture) auditCount(t *testing.T, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.AuditEntry{}).Where(where, args...).Count(&n).Error)
	return n
}

func requireTransition(t *testing.T, err error, conflict bool) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidTransition), "expected invalid transition, got %v", err)
	require.Equal(t, conflict, IsConflict(err))
}
