// Package workflow is the multi-department approval engine. It owns every
// state transition of applications and their approval records; callers are
// trusted to have authorized the actor before invoking it.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/localnerve/nodues/internal/metrics"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/store"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Actor roles as supplied by the identity provider.
const (
	RoleAdmin      = "admin"
	RoleStudent    = "student"
	RoleDepartment = "department"
	RoleSystem     = "system"
)

// AllDepartments selects global reapplication.
const AllDepartments = "ALL"

// Actor is the already authenticated identity behind a command.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// SystemActor is used for transitions the service performs on its own.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// Registry is the department lookup the engine validates against.
type Registry interface {
	Known(name string) bool
	IsActive(name string) bool
	ActiveNames() []string
}

// CertificateTrigger starts certificate generation for a completed application.
// It is called after commit whenever certificate_state becomes pending.
type CertificateTrigger interface {
	Trigger(ctx context.Context, applicationID string) error
}

// Engine applies workflow commands against the store.
type Engine struct {
	db        *gorm.DB
	reader    *gorm.DB
	registry  Registry
	publisher notify.Publisher
	certs     CertificateTrigger
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithReader routes audit and queue projections to a separate pool.
func WithReader(db *gorm.DB) Option {
	return func(e *Engine) { e.reader = db }
}

// WithPublisher sets the change notification channel.
func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithCertificateTrigger sets the certificate collaborator.
func WithCertificateTrigger(t CertificateTrigger) Option {
	return func(e *Engine) { e.certs = t }
}

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over db.
func New(db *gorm.DB, registry Registry, opts ...Option) *Engine {
	e := &Engine{
		db:        db,
		registry:  registry,
		publisher: notify.Nop{},
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reader == nil {
		e.reader = db
	}
	e.log = e.log.With().Str("component", "workflow").Logger()
	return e
}

// transaction runs fn in one database transaction. Once started it runs to
// commit or rollback even if the caller goes away, so no partial state is
// ever exposed.
func (e *Engine) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return e.db.WithContext(context.WithoutCancel(ctx)).Transaction(fn)
}

// stamp returns a timestamp strictly after prev.
func (e *Engine) stamp(prev time.Time) time.Time {
	now := e.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &e.log
}

// publish sends a committed transition. Failures are logged only.
func (e *Engine) publish(ctx context.Context, ev notify.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		metrics.NotificationsFailed.WithLabelValues(string(ev.Type)).Inc()
		e.logger(ctx).Warn().Err(err).
			Str("event_type", string(ev.Type)).
			Str("application_id", ev.ApplicationID).
			Msg("notification publish failed (non-fatal)")
	}
}

// triggerCertificate hands a completed application to the certificate
// collaborator. The pending state is durable, so a failed trigger can be
// retried later.
func (e *Engine) triggerCertificate(ctx context.Context, app *models.Application) {
	if e.certs == nil || app.CertificateState != models.CertificatePending {
		return
	}
	if err := e.certs.Trigger(ctx, app.ID); err != nil {
		e.logger(ctx).Error().Err(err).
			Str("application_id", app.ID).
			Msg("certificate trigger failed, retry required")
	}
}

func (e *Engine) observe(operation string, err error) {
	outcome := Code(err)
	metrics.Transitions.WithLabelValues(operation, outcome).Inc()
	if outcome == "conflict" {
		metrics.Conflicts.WithLabelValues(operation).Inc()
	}
}

func (e *Engine) event(t notify.EventType, app *models.Application, actor Actor, departments []string) notify.Event {
	ev := notify.NewEvent(t, app.ID, app.UpdatedAt)
	ev.RegistrationNo = app.RegistrationNo
	for _, d := range departments {
		ev.Departments = append(ev.Departments, strings.Clone(d))
	}
	ev.AggregateStatus = string(app.AggregateStatus)
	ev.CertificateState = string(app.CertificateState)
	ev.Actor = strings.Clone(actor.ID)
	return ev
}

// loadApplication reads an application, mapping absence to ErrNotFound.
func loadApplication(db *gorm.DB, id string) (*models.Application, error) {
	app, err := store.FindApplication(db, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &notFound{what: "application", key: id}
	}
	return app, err
}

// lockApplication takes the row lock that serializes writers on an application.
func lockApplication(tx *gorm.DB, id string) (*models.Application, error) {
	app, err := store.LockApplication(tx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &notFound{what: "application", key: id}
	}
	return app, err
}

// saveApplication writes fields under the version compare-and-swap.
func saveApplication(tx *gorm.DB, app *models.Application, fields map[string]interface{}) error {
	err := store.UpdateApplication(tx, app, fields)
	if errors.Is(err, store.ErrStale) {
		return &TransitionError{Subject: "application " + app.ID, Conflict: true}
	}
	return err
}

type notFound struct {
	what string
	key  string
}

func (e *notFound) Error() string { return e.what + " " + e.key + ": " + ErrNotFound.Error() }
func (e *notFound) Unwrap() error { return ErrNotFound }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
