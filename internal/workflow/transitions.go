package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/store"
	"gorm.io/gorm"
)

// settle re-reads every sibling of app inside tx, derives the aggregate and
// writes it together with fields. It reports whether the certificate became
// pending, in which case the certificate transition is audited too.
func (e *Engine) settle(tx *gorm.DB, app *models.Application, actor Actor, at time.Time, fields map[string]interface{}) ([]models.ApprovalRecord, bool, error) {
	recs, err := store.LockSiblings(tx, app.ID)
	if err != nil {
		return nil, false, err
	}

	next := DeriveAggregate(app.AggregateStatus, statusesOf(recs))
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["aggregate_status"] = next
	fields["updated_at"] = at

	certPending := next == models.AggregateCompleted && app.CertificateState == models.CertificateNotApplicable
	if certPending {
		fields["certificate_state"] = models.CertificatePending
	}

	if err := saveApplication(tx, app, fields); err != nil {
		return nil, false, err
	}
	app.AggregateStatus = next
	app.UpdatedAt = at

	if certPending {
		app.CertificateState = models.CertificatePending
		entry := auditEntry(app, nil, models.ActionCertificate,
			string(models.CertificateNotApplicable), string(models.CertificatePending),
			actor, "", nil, at)
		if err := store.AppendAudit(tx, entry); err != nil {
			return nil, false, err
		}
	}
	return recs, certPending, nil
}

func auditEntry(app *models.Application, rec *models.ApprovalRecord, action models.AuditAction, from, to string, actor Actor, reason string, meta map[string]interface{}, at time.Time) models.AuditEntry {
	entry := models.AuditEntry{
		ID:            uuid.NewString(),
		ApplicationID: app.ID,
		Action:        action,
		FromStatus:    from,
		ToStatus:      to,
		Actor:         actor.ID,
		ActorRole:     actor.Role,
		Reason:        strPtr(reason),
		CreatedAt:     at,
	}
	if rec != nil {
		entry.ApprovalRecordID = &rec.ID
		entry.DepartmentName = &rec.DepartmentName
	}
	if len(meta) > 0 {
		if j, err := models.NewJSON(meta); err == nil {
			entry.Metadata = j
		}
	}
	return entry
}

func unsupported(app *models.Application, operation string) error {
	return fmt.Errorf("%s on %s entry %s: %w", operation, app.EntryKind, app.ID, ErrUnsupportedEntryKind)
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
