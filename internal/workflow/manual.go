package workflow

import (
	"context"
	"strings"

	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/store"
	"gorm.io/gorm"
)

// ManualReviewInput is an admin's verdict on a manual entry.
type ManualReviewInput struct {
	ApplicationID string
	Decision      models.ManualStatus
	Reason        string
	Actor         Actor
}

// ReviewManual settles a manual entry: pending_review -> approved | rejected.
// Only admins review manual entries, and standard entries are refused.
func (e *Engine) ReviewManual(ctx context.Context, in ManualReviewInput) (*ApplicationState, error) {
	state, err := e.reviewManual(ctx, in)
	e.observe("manual_review", err)
	return state, err
}

func (e *Engine) reviewManual(ctx context.Context, in ManualReviewInput) (*ApplicationState, error) {
	decision := models.ManualStatus(strings.ToLower(strings.TrimSpace(string(in.Decision))))
	reason := strings.TrimSpace(in.Reason)

	v := invalid{}
	if strings.TrimSpace(in.ApplicationID) == "" {
		v.add("application_id", "is required")
	}
	if decision != models.ManualApproved && decision != models.ManualRejected {
		v.add("decision", "must be approved or rejected")
	}
	if decision == models.ManualRejected && reason == "" {
		v.add("reason", "is required when rejecting")
	}
	switch {
	case strings.TrimSpace(in.Actor.ID) == "":
		v.add("actor", "is required")
	case in.Actor.Role != RoleAdmin:
		v.add("actor", "manual entries are reviewed by an admin")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		app         *models.Application
		certPending bool
	)
	err := e.transaction(ctx, func(tx *gorm.DB) error {
		observed, err := loadApplication(tx, strings.TrimSpace(in.ApplicationID))
		if err != nil {
			return err
		}
		if observed.EntryKind != models.EntryManual {
			return unsupported(observed, "manual review")
		}
		if current := manualStatusOf(observed); current != models.ManualPendingReview {
			return &TransitionError{Subject: "manual entry", From: string(current), To: string(decision)}
		}

		app, err = lockApplication(tx, observed.ID)
		if err != nil {
			return err
		}
		if current := manualStatusOf(app); current != models.ManualPendingReview {
			return &TransitionError{Subject: "manual entry", From: string(current), To: string(decision), Conflict: true}
		}

		at := e.stamp(app.UpdatedAt)
		aggregate := manualAggregate(decision)
		fields := map[string]interface{}{
			"manual_status":    decision,
			"aggregate_status": aggregate,
			"updated_at":       at,
		}
		certPending = aggregate == models.AggregateCompleted && app.CertificateState == models.CertificateNotApplicable
		if certPending {
			fields["certificate_state"] = models.CertificatePending
		}
		if err := saveApplication(tx, app, fields); err != nil {
			return err
		}

		entries := []models.AuditEntry{auditEntry(app, nil, models.ActionManualReview,
			string(models.ManualPendingReview), string(decision), in.Actor, reason, nil, at)}
		if certPending {
			entries = append(entries, auditEntry(app, nil, models.ActionCertificate,
				string(models.CertificateNotApplicable), string(models.CertificatePending),
				in.Actor, "", nil, at))
		}
		if err := store.AppendAudit(tx, entries...); err != nil {
			return err
		}

		app.ManualStatus = &decision
		app.AggregateStatus = aggregate
		app.UpdatedAt = at
		if certPending {
			app.CertificateState = models.CertificatePending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger(ctx).Info().
		Str("application_id", app.ID).
		Str("decision", string(decision)).
		Str("actor", in.Actor.ID).
		Msg("manual review committed")

	e.publish(ctx, e.event(notify.ManualReviewed, app, in.Actor, nil))
	if certPending {
		e.triggerCertificate(ctx, app)
	}
	return newState(app, nil), nil
}

func manualStatusOf(app *models.Application) models.ManualStatus {
	if app.ManualStatus == nil {
		return models.ManualPendingReview
	}
	return *app.ManualStatus
}
