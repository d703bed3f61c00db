package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/store"
	"gorm.io/gorm"
)

// MaxBulk bounds the number of applications in one bulk decision.
const MaxBulk = 500

// DecisionInput is one department's decision on one application.
type DecisionInput struct {
	ApplicationID string
	Department    string
	Decision      models.ApprovalStatus
	Actor         Actor
	Remarks       string
	// Reason is mandatory when rejecting.
	Reason string
}

// Decide approves or rejects one pending approval record and re-derives the
// application's aggregate status in the same transaction.
func (e *Engine) Decide(ctx context.Context, in DecisionInput) (*ApplicationState, error) {
	in = normalizeDecision(in)
	v := e.checkDecision(in.Department, in.Decision, in.Reason, in.Actor)
	if strings.TrimSpace(in.ApplicationID) == "" {
		v.add("application_id", "is required")
	}
	if err := v.err(); err != nil {
		e.observe("decide", err)
		return nil, err
	}

	state, err := e.applyDecision(ctx, in)
	e.observe("decide", err)
	return state, err
}

// normalizeDecision canonicalizes in. The result shares no memory with the
// caller's strings; events keep them after the call returns.
func normalizeDecision(in DecisionInput) DecisionInput {
	in.ApplicationID = strings.Clone(strings.TrimSpace(in.ApplicationID))
	in.Department = strings.Clone(registry.NormalizeName(in.Department))
	in.Decision = models.ApprovalStatus(strings.ToLower(strings.TrimSpace(string(in.Decision))))
	in.Remarks = strings.Clone(strings.TrimSpace(in.Remarks))
	in.Reason = strings.Clone(strings.TrimSpace(in.Reason))
	in.Actor.ID = strings.Clone(in.Actor.ID)
	return in
}

func (e *Engine) checkDecision(department string, decision models.ApprovalStatus, reason string, actor Actor) invalid {
	v := invalid{}
	if department == "" {
		v.add("department", "is required")
	} else if !e.registry.Known(department) {
		v.add("department", "unknown department "+department)
	}
	if decision != models.ApprovalApproved && decision != models.ApprovalRejected {
		v.add("decision", "must be approved or rejected")
	}
	if decision == models.ApprovalRejected && reason == "" {
		v.add("reason", "is required when rejecting")
	}
	if strings.TrimSpace(actor.ID) == "" {
		v.add("actor", "is required")
	}
	return v
}

func (e *Engine) applyDecision(ctx context.Context, in DecisionInput) (*ApplicationState, error) {
	var (
		app         *models.Application
		recs        []models.ApprovalRecord
		certPending bool
	)

	err := e.transaction(ctx, func(tx *gorm.DB) error {
		observed, err := loadApplication(tx, in.ApplicationID)
		if err != nil {
			return err
		}
		if observed.EntryKind != models.EntryStandard {
			return unsupported(observed, "department decision")
		}

		rec, err := store.FindApproval(tx, observed.ID, in.Department)
		if errors.Is(err, store.ErrNotFound) {
			return &notFound{what: "approval", key: observed.ID + "/" + in.Department}
		}
		if err != nil {
			return err
		}
		if rec.Status != models.ApprovalPending {
			return &TransitionError{
				Subject: "approval " + in.Department,
				From:    string(rec.Status),
				To:      string(in.Decision),
			}
		}

		app, err = lockApplication(tx, observed.ID)
		if err != nil {
			return err
		}

		at := e.stamp(later(app.UpdatedAt, rec.UpdatedAt))
		var rejection *string
		if in.Decision == models.ApprovalRejected {
			rejection = strPtr(in.Reason)
		}
		err = store.TransitionApproval(tx, rec.ID, models.ApprovalPending, map[string]interface{}{
			"status":           in.Decision,
			"action_by":        in.Actor.ID,
			"action_at":        at,
			"remarks":          strPtr(in.Remarks),
			"rejection_reason": rejection,
			"updated_at":       at,
		})
		if errors.Is(err, store.ErrStale) {
			return &TransitionError{
				Subject:  "approval " + in.Department,
				From:     string(models.ApprovalPending),
				To:       string(in.Decision),
				Conflict: true,
			}
		}
		if err != nil {
			return err
		}

		reason := in.Reason
		if reason == "" {
			reason = in.Remarks
		}
		var meta map[string]interface{}
		if in.Remarks != "" && in.Reason != "" {
			meta = map[string]interface{}{"remarks": in.Remarks}
		}
		entry := auditEntry(app, rec, models.ActionDecision,
			string(models.ApprovalPending), string(in.Decision), in.Actor, reason, meta, at)
		if err := store.AppendAudit(tx, entry); err != nil {
			return err
		}

		recs, certPending, err = e.settle(tx, app, in.Actor, at, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger(ctx).Info().
		Str("application_id", app.ID).
		Str("department", in.Department).
		Str("decision", string(in.Decision)).
		Str("aggregate_status", string(app.AggregateStatus)).
		Str("actor", in.Actor.ID).
		Msg("department decision committed")

	e.publish(ctx, e.event(notify.DepartmentDecided, app, in.Actor, []string{in.Department}))
	if certPending {
		e.triggerCertificate(ctx, app)
	}
	return newState(app, recs), nil
}

// BulkDecisionInput applies one decision for one department to many applications.
type BulkDecisionInput struct {
	ApplicationIDs []string
	Department     string
	Decision       models.ApprovalStatus
	Actor          Actor
	Remarks        string
	Reason         string
}

// BulkResult is the outcome of one item of a bulk decision.
type BulkResult struct {
	ApplicationID   string                 `json:"application_id"`
	OK              bool                   `json:"ok"`
	Code            string                 `json:"code"`
	Error           string                 `json:"error,omitempty"`
	Conflict        bool                   `json:"conflict,omitempty"`
	AggregateStatus models.AggregateStatus `json:"aggregate_status,omitempty"`
	Err             error                  `json:"-"`
}

// BulkDecide runs Decide for each application independently. There is no
// atomicity across items: each result stands on its own and a mix of
// successes and failures is a normal outcome. The returned error is only set
// when the shared input is malformed.
func (e *Engine) BulkDecide(ctx context.Context, in BulkDecisionInput) ([]BulkResult, error) {
	shared := normalizeDecision(DecisionInput{
		Department: in.Department,
		Decision:   in.Decision,
		Actor:      in.Actor,
		Remarks:    in.Remarks,
		Reason:     in.Reason,
	})
	v := e.checkDecision(shared.Department, shared.Decision, shared.Reason, shared.Actor)
	switch {
	case len(in.ApplicationIDs) == 0:
		v.add("application_ids", "at least one application is required")
	case len(in.ApplicationIDs) > MaxBulk:
		v.add("application_ids", "too many applications in one batch")
	}
	if err := v.err(); err != nil {
		e.observe("bulk_decide", err)
		return nil, err
	}

	results := make([]BulkResult, 0, len(in.ApplicationIDs))
	succeeded := 0
	for _, id := range in.ApplicationIDs {
		item := shared
		item.ApplicationID = strings.Clone(strings.TrimSpace(id))

		var (
			state *ApplicationState
			err   error
		)
		if err = ctx.Err(); err == nil {
			state, err = e.applyDecision(ctx, item)
		}
		e.observe("bulk_decide", err)

		r := BulkResult{ApplicationID: item.ApplicationID, OK: err == nil, Code: Code(err), Err: err}
		if err != nil {
			r.Error = err.Error()
			r.Conflict = IsConflict(err)
		} else {
			r.AggregateStatus = state.AggregateStatus
			succeeded++
		}
		results = append(results, r)
	}

	e.logger(ctx).Info().
		Str("department", shared.Department).
		Str("decision", string(shared.Decision)).
		Int("requested", len(in.ApplicationIDs)).
		Int("succeeded", succeeded).
		Msg("bulk decision finished")
	return results, nil
}
