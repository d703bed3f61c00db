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

const maxMessageLen = 2048

// ReapplyInput is a student's response to one or more rejections.
type ReapplyInput struct {
	ApplicationID string
	// Department names the rejected record to reset, or AllDepartments to
	// reset every rejected record at once.
	Department string
	Message    string
	Actor      Actor
}

// Global reports whether the input targets every rejected department.
func (in ReapplyInput) Global() bool {
	return strings.EqualFold(strings.TrimSpace(in.Department), AllDepartments)
}

// Reapply resets rejected approval records back to pending. A targeted
// reapplication resets one record; a global one resets every rejected record
// in one transaction. Either way reapplication_count grows by exactly one.
func (e *Engine) Reapply(ctx context.Context, in ReapplyInput) (*ApplicationState, error) {
	state, err := e.reapply(ctx, in)
	e.observe("reapply", err)
	return state, err
}

func (e *Engine) reapply(ctx context.Context, in ReapplyInput) (*ApplicationState, error) {
	global := in.Global()
	department := registry.NormalizeName(in.Department)
	message := strings.TrimSpace(in.Message)

	v := invalid{}
	if strings.TrimSpace(in.ApplicationID) == "" {
		v.add("application_id", "is required")
	}
	switch {
	case global:
	case department == "":
		v.add("department", "is required, use ALL for every rejected department")
	case !e.registry.Known(department):
		v.add("department", "unknown department "+department)
	}
	switch {
	case message == "":
		v.add("message", "is required")
	case len(message) > maxMessageLen:
		v.add("message", "is too long")
	}
	if strings.TrimSpace(in.Actor.ID) == "" {
		v.add("actor", "is required")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	var (
		app     *models.Application
		recs    []models.ApprovalRecord
		targets []string
	)

	err := e.transaction(ctx, func(tx *gorm.DB) error {
		observed, err := loadApplication(tx, strings.TrimSpace(in.ApplicationID))
		if err != nil {
			return err
		}
		if observed.EntryKind != models.EntryStandard {
			return unsupported(observed, "reapplication")
		}

		// Precondition on the unlocked read: a miss here is caller misuse.
		if global {
			siblings, err := store.Siblings(tx, observed.ID)
			if err != nil {
				return err
			}
			if len(rejectedOf(siblings)) == 0 {
				return ErrNothingToReapply
			}
		} else {
			rec, err := store.FindApproval(tx, observed.ID, department)
			if errors.Is(err, store.ErrNotFound) {
				return &notFound{what: "approval", key: observed.ID + "/" + department}
			}
			if err != nil {
				return err
			}
			if rec.Status != models.ApprovalRejected {
				return &TransitionError{
					Subject: "approval " + department,
					From:    string(rec.Status),
					To:      string(models.ApprovalPending),
				}
			}
		}

		app, err = lockApplication(tx, observed.ID)
		if err != nil {
			return err
		}
		locked, err := store.LockSiblings(tx, app.ID)
		if err != nil {
			return err
		}

		var reset []models.ApprovalRecord
		if global {
			reset = rejectedOf(locked)
		} else {
			for _, r := range locked {
				if r.DepartmentName == department && r.Status == models.ApprovalRejected {
					reset = append(reset, r)
				}
			}
		}
		if len(reset) == 0 {
			// Another writer reset the record between the read and the lock.
			return &TransitionError{
				Subject:  "approval " + reapplyScope(global, department),
				From:     string(models.ApprovalRejected),
				To:       string(models.ApprovalPending),
				Conflict: true,
			}
		}

		at := e.stamp(app.UpdatedAt)
		mode := "targeted"
		if global {
			mode = "all"
		}
		entries := make([]models.AuditEntry, 0, len(reset))
		for i := range reset {
			rec := &reset[i]
			err := store.TransitionApproval(tx, rec.ID, models.ApprovalRejected, map[string]interface{}{
				"status":           models.ApprovalPending,
				"rejection_reason": nil,
				"action_by":        nil,
				"action_at":        nil,
				"remarks":          nil,
				"student_response": message,
				"attempt":          rec.Attempt + 1,
				"updated_at":       at,
			})
			if errors.Is(err, store.ErrStale) {
				return &TransitionError{
					Subject:  "approval " + rec.DepartmentName,
					From:     string(models.ApprovalRejected),
					To:       string(models.ApprovalPending),
					Conflict: true,
				}
			}
			if err != nil {
				return err
			}

			meta := map[string]interface{}{
				"mode":    mode,
				"attempt": rec.Attempt + 1,
			}
			if rec.RejectionReason != nil {
				meta["previous_reason"] = *rec.RejectionReason
			}
			entries = append(entries, auditEntry(app, rec, models.ActionReapply,
				string(models.ApprovalRejected), string(models.ApprovalPending),
				in.Actor, message, meta, at))
			targets = append(targets, rec.DepartmentName)
		}
		if err := store.AppendAudit(tx, entries...); err != nil {
			return err
		}

		count := app.ReapplicationCount + 1
		recs, _, err = e.settle(tx, app, in.Actor, at, map[string]interface{}{
			"reapplication_count": count,
		})
		if err != nil {
			return err
		}
		app.ReapplicationCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger(ctx).Info().
		Str("application_id", app.ID).
		Strs("departments", targets).
		Uint("reapplication_count", app.ReapplicationCount).
		Str("aggregate_status", string(app.AggregateStatus)).
		Msg("reapplication committed")

	e.publish(ctx, e.event(notify.Reapplied, app, in.Actor, targets))
	return newState(app, recs), nil
}

func rejectedOf(recs []models.ApprovalRecord) []models.ApprovalRecord {
	var out []models.ApprovalRecord
	for _, r := range recs {
		if r.Status == models.ApprovalRejected {
			out = append(out, r)
		}
	}
	return out
}

func reapplyScope(global bool, department string) string {
	if global {
		return "rejected departments"
	}
	return department
}
