package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/store"
)

// ApprovalView is one department's sub-status as seen by callers.
type ApprovalView struct {
	Department      string                `json:"department"`
	Status          models.ApprovalStatus `json:"status"`
	ActionBy        *string               `json:"action_by,omitempty"`
	ActionAt        *time.Time            `json:"action_at,omitempty"`
	Remarks         *string               `json:"remarks,omitempty"`
	RejectionReason *string               `json:"rejection_reason,omitempty"`
	StudentResponse *string               `json:"student_response,omitempty"`
	Attempt         uint                  `json:"attempt"`
}

// ApplicationState is the full committed state of one application.
type ApplicationState struct {
	ID                 string                  `json:"id"`
	RegistrationNo     string                  `json:"registration_no"`
	EntryKind          models.EntryKind        `json:"entry_kind"`
	AggregateStatus    models.AggregateStatus  `json:"aggregate_status"`
	ManualStatus       *models.ManualStatus    `json:"manual_status,omitempty"`
	ReapplicationCount uint                    `json:"reapplication_count"`
	CertificateState   models.CertificateState `json:"certificate_state"`
	CertificateRef     *string                 `json:"certificate_ref,omitempty"`
	Profile            json.RawMessage         `json:"profile,omitempty" swaggertype:"object"`
	Version            uint64                  `json:"version"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
	Approvals          []ApprovalView          `json:"approvals"`
}

// Approval returns the named department's view.
func (s *ApplicationState) Approval(department string) (ApprovalView, bool) {
	for _, a := range s.Approvals {
		if a.Department == department {
			return a, true
		}
	}
	return ApprovalView{}, false
}

func newState(app *models.Application, recs []models.ApprovalRecord) *ApplicationState {
	s := &ApplicationState{
		ID:                 app.ID,
		RegistrationNo:     app.RegistrationNo,
		EntryKind:          app.EntryKind,
		AggregateStatus:    app.AggregateStatus,
		ManualStatus:       app.ManualStatus,
		ReapplicationCount: app.ReapplicationCount,
		CertificateState:   app.CertificateState,
		CertificateRef:     app.CertificateRef,
		Profile:            app.Profile.Raw(),
		Version:            app.Version,
		CreatedAt:          app.CreatedAt,
		UpdatedAt:          app.UpdatedAt,
		Approvals:          make([]ApprovalView, len(recs)),
	}
	for i, r := range recs {
		s.Approvals[i] = ApprovalView{
			Department:      r.DepartmentName,
			Status:          r.Status,
			ActionBy:        r.ActionBy,
			ActionAt:        r.ActionAt,
			Remarks:         r.Remarks,
			RejectionReason: r.RejectionReason,
			StudentResponse: r.StudentResponse,
			Attempt:         r.Attempt,
		}
	}
	return s
}

func sortedByDepartment(recs []models.ApprovalRecord) []models.ApprovalRecord {
	out := make([]models.ApprovalRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].DepartmentName < out[j].DepartmentName })
	return out
}

// GetApplicationState returns the committed state of an application.
func (e *Engine) GetApplicationState(ctx context.Context, applicationID string) (*ApplicationState, error) {
	db := e.db.WithContext(ctx)
	app, err := loadApplication(db, applicationID)
	if err != nil {
		return nil, err
	}
	recs, err := store.Siblings(db, app.ID)
	if err != nil {
		return nil, err
	}
	return newState(app, recs), nil
}

// GetByRegistration returns the committed state of the application holding
// registrationNo.
func (e *Engine) GetByRegistration(ctx context.Context, registrationNo string) (*ApplicationState, error) {
	key := models.NormalizeRegistration(registrationNo)
	db := e.db.WithContext(ctx)
	app, err := store.FindApplicationByRegistration(db, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &notFound{what: "registration", key: key}
	}
	if err != nil {
		return nil, err
	}
	recs, err := store.Siblings(db, app.ID)
	if err != nil {
		return nil, err
	}
	return newState(app, recs), nil
}

// AuditQuery selects audit entries by application, department, or both.
type AuditQuery struct {
	ApplicationID string
	Department    string
	Page          store.Page
}

// AuditView is one audit entry joined with its registration number.
type AuditView struct {
	ID             string             `json:"id"`
	ApplicationID  string             `json:"application_id"`
	RegistrationNo string             `json:"registration_no"`
	Department     *string            `json:"department,omitempty"`
	Action         models.AuditAction `json:"action"`
	FromStatus     string             `json:"from_status"`
	ToStatus       string             `json:"to_status"`
	Actor          string             `json:"actor"`
	ActorRole      string             `json:"actor_role,omitempty"`
	Reason         *string            `json:"reason,omitempty"`
	Metadata       json.RawMessage    `json:"metadata,omitempty" swaggertype:"object"`
	Seq            uint64             `json:"seq"`
	CreatedAt      time.Time          `json:"created_at"`
}

// AuditPage is a page of audit entries, newest first.
type AuditPage struct {
	Entries []AuditView `json:"entries"`
	Meta    store.Meta  `json:"meta"`
}

// ListAudit pages through the append-only audit log.
func (e *Engine) ListAudit(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	q.Department = registry.NormalizeName(q.Department)
	q.ApplicationID = strings.TrimSpace(q.ApplicationID)
	if q.ApplicationID == "" && q.Department == "" {
		return nil, &ValidationError{Fields: map[string]string{"filter": "application or department is required"}}
	}
	if q.Department != "" && !e.registry.Known(q.Department) {
		return nil, &ValidationError{Fields: map[string]string{"department": "unknown department " + q.Department}}
	}

	page := q.Page.Normalize()
	rows, total, err := store.QueryAudit(e.reader.WithContext(ctx), store.AuditFilter{
		ApplicationID:  q.ApplicationID,
		DepartmentName: q.Department,
	}, page)
	if err != nil {
		return nil, err
	}

	out := &AuditPage{Entries: make([]AuditView, len(rows)), Meta: store.BuildMeta(total, page)}
	for i, r := range rows {
		out.Entries[i] = AuditView{
			ID:             r.ID,
			ApplicationID:  r.ApplicationID,
			RegistrationNo: r.RegistrationNo,
			Department:     r.DepartmentName,
			Action:         r.Action,
			FromStatus:     r.FromStatus,
			ToStatus:       r.ToStatus,
			Actor:          r.Actor,
			ActorRole:      r.ActorRole,
			Reason:         r.Reason,
			Metadata:       r.Metadata.Raw(),
			Seq:            r.Seq,
			CreatedAt:      r.CreatedAt,
		}
	}
	return out, nil
}

// ApprovalQuery selects a department's work queue.
type ApprovalQuery struct {
	Department string
	Status     models.ApprovalStatus
	Page       store.Page
}

// QueueItem is one approval record in a department queue.
type QueueItem struct {
	ApplicationID   string                 `json:"application_id"`
	RegistrationNo  string                 `json:"registration_no"`
	Department      string                 `json:"department"`
	Status          models.ApprovalStatus  `json:"status"`
	ActionBy        *string                `json:"action_by,omitempty"`
	ActionAt        *time.Time             `json:"action_at,omitempty"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
	StudentResponse *string                `json:"student_response,omitempty"`
	Attempt         uint                   `json:"attempt"`
	AggregateStatus models.AggregateStatus `json:"aggregate_status"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// QueuePage is a page of a department queue.
type QueuePage struct {
	Items []QueueItem `json:"items"`
	Meta  store.Meta  `json:"meta"`
}

// ListApprovals pages through a department's approval records.
func (e *Engine) ListApprovals(ctx context.Context, q ApprovalQuery) (*QueuePage, error) {
	q.Department = registry.NormalizeName(q.Department)
	v := invalid{}
	if !e.registry.Known(q.Department) {
		v.add("department", "unknown department "+q.Department)
	}
	if q.Status != "" && !q.Status.Valid() {
		v.add("status", "must be pending, approved or rejected")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	page := q.Page.Normalize()
	rows, total, err := store.QueryApprovals(e.reader.WithContext(ctx), store.ApprovalFilter{
		DepartmentName: q.Department,
		Status:         q.Status,
	}, page)
	if err != nil {
		return nil, err
	}

	out := &QueuePage{Items: make([]QueueItem, len(rows)), Meta: store.BuildMeta(total, page)}
	for i, r := range rows {
		out.Items[i] = QueueItem{
			ApplicationID:   r.ApplicationID,
			RegistrationNo:  r.RegistrationNo,
			Department:      r.DepartmentName,
			Status:          r.Status,
			ActionBy:        r.ActionBy,
			ActionAt:        r.ActionAt,
			RejectionReason: r.RejectionReason,
			StudentResponse: r.StudentResponse,
			Attempt:         r.Attempt,
			AggregateStatus: r.AggregateStatus,
			UpdatedAt:       r.UpdatedAt,
		}
	}
	return out, nil
}
