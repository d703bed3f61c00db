package workflow

import (
	"context"
	"strings"

	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/store"
	"gorm.io/gorm"
)

// CertificateInput reports the outcome of certificate generation.
type CertificateInput struct {
	ApplicationID string
	// Outcome is generated or failed.
	Outcome models.CertificateState
	// Reference locates the generated artifact, required when generated.
	Reference string
	Detail    string
	Actor     Actor
}

// RecordCertificate moves a pending certificate to generated or failed.
// A certificate only leaves not_applicable once the application is completed.
func (e *Engine) RecordCertificate(ctx context.Context, in CertificateInput) (*ApplicationState, error) {
	state, err := e.recordCertificate(ctx, in)
	e.observe("record_certificate", err)
	return state, err
}

func (e *Engine) recordCertificate(ctx context.Context, in CertificateInput) (*ApplicationState, error) {
	ref := strings.TrimSpace(in.Reference)
	v := invalid{}
	if strings.TrimSpace(in.ApplicationID) == "" {
		v.add("application_id", "is required")
	}
	switch in.Outcome {
	case models.CertificateGenerated:
		if ref == "" {
			v.add("reference", "is required for a generated certificate")
		}
	case models.CertificateFailed:
	default:
		v.add("outcome", "must be generated or failed")
	}
	if strings.TrimSpace(in.Actor.ID) == "" {
		v.add("actor", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"certificate_state": in.Outcome}
	if in.Outcome == models.CertificateGenerated {
		fields["certificate_ref"] = ref
	}
	meta := map[string]interface{}{}
	if ref != "" {
		meta["reference"] = ref
	}

	app, recs, err := e.moveCertificate(ctx, strings.TrimSpace(in.ApplicationID), models.CertificatePending, in.Outcome, in.Actor, in.Detail, fields, meta)
	if err != nil {
		return nil, err
	}
	if in.Outcome == models.CertificateGenerated {
		app.CertificateRef = &ref
	}
	return newState(app, recs), nil
}

// RetryCertificate re-arms a failed certificate and triggers generation again.
// A certificate that is still pending is simply triggered again.
func (e *Engine) RetryCertificate(ctx context.Context, applicationID string, actor Actor) (*ApplicationState, error) {
	state, err := e.retryCertificate(ctx, strings.TrimSpace(applicationID), actor)
	e.observe("retry_certificate", err)
	return state, err
}

func (e *Engine) retryCertificate(ctx context.Context, applicationID string, actor Actor) (*ApplicationState, error) {
	if applicationID == "" {
		return nil, &ValidationError{Fields: map[string]string{"application_id": "is required"}}
	}
	if strings.TrimSpace(actor.ID) == "" {
		return nil, &ValidationError{Fields: map[string]string{"actor": "is required"}}
	}

	current, err := e.GetApplicationState(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if current.CertificateState == models.CertificatePending {
		e.triggerCertificate(ctx, &models.Application{ID: current.ID, CertificateState: current.CertificateState})
		return current, nil
	}

	app, recs, err := e.moveCertificate(ctx, applicationID, models.CertificateFailed, models.CertificatePending, actor, "retry",
		map[string]interface{}{"certificate_state": models.CertificatePending}, nil)
	if err != nil {
		return nil, err
	}
	e.triggerCertificate(ctx, app)
	return newState(app, recs), nil
}

// moveCertificate applies one certificate_state transition under the
// application lock, audits it and publishes it.
func (e *Engine) moveCertificate(ctx context.Context, applicationID string, from, to models.CertificateState, actor Actor, reason string, fields, meta map[string]interface{}) (*models.Application, []models.ApprovalRecord, error) {
	var (
		app  *models.Application
		recs []models.ApprovalRecord
	)
	err := e.transaction(ctx, func(tx *gorm.DB) error {
		observed, err := loadApplication(tx, applicationID)
		if err != nil {
			return err
		}
		if err := certificateAllowed(observed, from, to, false); err != nil {
			return err
		}

		app, err = lockApplication(tx, observed.ID)
		if err != nil {
			return err
		}
		if err := certificateAllowed(app, from, to, true); err != nil {
			return err
		}

		at := e.stamp(app.UpdatedAt)
		fields["updated_at"] = at
		if err := saveApplication(tx, app, fields); err != nil {
			return err
		}
		entry := auditEntry(app, nil, models.ActionCertificate, string(from), string(to), actor, reason, meta, at)
		if err := store.AppendAudit(tx, entry); err != nil {
			return err
		}
		app.CertificateState = to
		app.UpdatedAt = at

		recs, err = store.Siblings(tx, app.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger(ctx).Info().
		Str("application_id", app.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("certificate state changed")
	e.publish(ctx, e.event(notify.CertificateChanged, app, actor, nil))
	return app, recs, nil
}

func certificateAllowed(app *models.Application, from, to models.CertificateState, locked bool) error {
	if app.AggregateStatus != models.AggregateCompleted {
		return &TransitionError{
			Subject: "certificate of " + string(app.AggregateStatus) + " application",
			From:    string(app.CertificateState),
			To:      string(to),
		}
	}
	if app.CertificateState != from {
		return &TransitionError{
			Subject:  "certificate",
			From:     string(app.CertificateState),
			To:       string(to),
			Conflict: locked,
		}
	}
	return nil
}
