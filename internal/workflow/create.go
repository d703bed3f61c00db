package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/store"
	"gorm.io/gorm"
)

const maxRegistrationLen = 64

// CreateInput describes a new clearance submission.
type CreateInput struct {
	RegistrationNo string
	EntryKind      models.EntryKind
	// Departments receiving a pending obligation. Empty means every active
	// department. Ignored for manual entries.
	Departments []string
	Profile     map[string]interface{}
	Actor       Actor
}

// CreateApplication creates an application and, for standard entries, one
// pending approval record per department, in a single transaction.
func (e *Engine) CreateApplication(ctx context.Context, in CreateInput) (*ApplicationState, error) {
	state, err := e.createApplication(ctx, in)
	e.observe("create", err)
	return state, err
}

func (e *Engine) createApplication(ctx context.Context, in CreateInput) (*ApplicationState, error) {
	regNo := models.NormalizeRegistration(in.RegistrationNo)
	kind := in.EntryKind
	if kind == "" {
		kind = models.EntryStandard
	}

	v := invalid{}
	switch {
	case regNo == "":
		v.add("registration_no", "is required")
	case len(regNo) > maxRegistrationLen:
		v.add("registration_no", "is too long")
	}
	if !kind.Valid() {
		v.add("entry_kind", "must be standard or manual")
	}

	var departments []string
	if kind == models.EntryStandard {
		departments = e.fanOut(in.Departments, v)
	}
	var profile models.JSON
	if len(in.Profile) > 0 {
		var err error
		if profile, err = models.NewJSON(in.Profile); err != nil {
			v.add("profile", "is not valid JSON")
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	now := e.stamp(time.Time{})
	app := &models.Application{
		ID:               uuid.NewString(),
		RegistrationNo:   regNo,
		EntryKind:        kind,
		AggregateStatus:  models.AggregatePending,
		CertificateState: models.CertificateNotApplicable,
		Profile:          profile,
		SubmittedBy:      in.Actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if kind == models.EntryManual {
		review := models.ManualPendingReview
		app.ManualStatus = &review
	}

	recs := make([]models.ApprovalRecord, len(departments))
	for i, d := range departments {
		recs[i] = models.ApprovalRecord{
			ID:             uuid.NewString(),
			ApplicationID:  app.ID,
			DepartmentName: d,
			Status:         models.ApprovalPending,
			Attempt:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	err := e.transaction(ctx, func(tx *gorm.DB) error {
		exists, err := store.ApplicationExists(tx, regNo)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateApplication
		}
		return store.InsertApplication(tx, app, recs)
	})
	if errors.Is(err, store.ErrDuplicate) || errors.Is(err, ErrDuplicateApplication) {
		return nil, &duplicate{registrationNo: regNo}
	}
	if err != nil {
		return nil, err
	}

	e.logger(ctx).Info().
		Str("application_id", app.ID).
		Str("registration_no", regNo).
		Str("entry_kind", string(kind)).
		Strs("departments", departments).
		Msg("application created")

	e.publish(ctx, e.event(notify.ApplicationCreated, app, in.Actor, departments))
	return newState(app, sortedByDepartment(recs)), nil
}

// fanOut resolves the departments of a standard entry against the registry.
func (e *Engine) fanOut(requested []string, v invalid) []string {
	if len(requested) == 0 {
		requested = e.registry.ActiveNames()
	}
	seen := make(map[string]struct{}, len(requested))
	out := make([]string, 0, len(requested))
	var unknown []string
	for _, name := range requested {
		name = registry.NormalizeName(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if !e.registry.IsActive(name) {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, name)
	}
	if len(unknown) > 0 {
		v.add("departments", "unknown or inactive: "+strings.Join(unknown, ", "))
	} else if len(out) == 0 {
		v.add("departments", "at least one department is required")
	}
	return out
}

type duplicate struct {
	registrationNo string
}

func (d *duplicate) Error() string {
	return "registration " + d.registrationNo + ": " + ErrDuplicateApplication.Error()
}

func (d *duplicate) Unwrap() error { return ErrDuplicateApplication }
