package store

import (
	"time"

	"github.com/localnerve/nodues/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// AppendAudit inserts audit entries in the given order. Each entry takes the
// next sequence number of its application, so the caller must hold the
// application row lock. Entries are never touched again.
func AppendAudit(tx *gorm.DB, entries ...models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	last := make(map[string]uint64)
	for i := range entries {
		id := entries[i].ApplicationID
		seq, ok := last[id]
		if !ok {
			var err error
			if seq, err = lastSequence(tx, id); err != nil {
				return err
			}
		}
		seq++
		entries[i].Seq = seq
		last[id] = seq
	}
	return tx.Create(&entries).Error
}

func lastSequence(tx *gorm.DB, applicationID string) (uint64, error) {
	var seq uint64
	err := tx.Model(&models.AuditEntry{}).
		Select("COALESCE(MAX(seq), 0)").
		Where("application_id = ?", applicationID).
		Scan(&seq).Error
	return seq, err
}

// AuditFilter selects audit entries by application or department.
type AuditFilter struct {
	ApplicationID  string
	DepartmentName string
}

// AuditRow is an audit entry joined with its application's registration number.
type AuditRow struct {
	models.AuditEntry
	RegistrationNo string
}

// QueryAudit returns matching audit entries newest first, and the total count.
func QueryAudit(db *gorm.DB, f AuditFilter, p Page) ([]AuditRow, int64, error) {
	p = p.Normalize()

	base := db.Model(&models.AuditEntry{}).
		Clauses(hints.Comment("select", "nodues:audit"))
	if f.ApplicationID != "" {
		base = base.Where("audit_entries.application_id = ?", f.ApplicationID)
	}
	if f.DepartmentName != "" {
		base = base.Where("audit_entries.department_name = ?", f.DepartmentName)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AuditRow
	err := base.Session(&gorm.Session{}).
		Select("audit_entries.*, applications.registration_no").
		Joins("JOIN applications ON applications.id = audit_entries.application_id").
		Order("audit_entries.created_at DESC").
		Order("audit_entries.seq DESC").
		Order("audit_entries.id DESC").
		Limit(p.Size).
		Offset(p.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ApprovalFilter selects a department's work queue.
type ApprovalFilter struct {
	DepartmentName string
	Status         models.ApprovalStatus
}

// QueueRow is an approval record joined with application metadata.
type QueueRow struct {
	ID              string
	ApplicationID   string
	RegistrationNo  string
	DepartmentName  string
	Status          models.ApprovalStatus
	ActionBy        *string
	ActionAt        *time.Time
	RejectionReason *string
	StudentResponse *string
	Attempt         uint
	AggregateStatus models.AggregateStatus
	UpdatedAt       time.Time
}

// QueryApprovals lists a department's approval records, oldest change first.
func QueryApprovals(db *gorm.DB, f ApprovalFilter, p Page) ([]QueueRow, int64, error) {
	p = p.Normalize()

	base := db.Model(&models.ApprovalRecord{}).
		Clauses(hints.Comment("select", "nodues:queue")).
		Where("approval_records.department_name = ?", f.DepartmentName)
	if f.Status != "" {
		base = base.Where("approval_records.status = ?", f.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []QueueRow
	err := base.Session(&gorm.Session{}).
		Select("approval_records.id, approval_records.application_id, applications.registration_no, " +
			"approval_records.department_name, approval_records.status, approval_records.action_by, " +
			"approval_records.action_at, approval_records.rejection_reason, approval_records.student_response, " +
			"approval_records.attempt, applications.aggregate_status, approval_records.updated_at").
		Joins("JOIN applications ON applications.id = approval_records.application_id").
		Order("approval_records.updated_at ASC").
		Order("approval_records.id ASC").
		Limit(p.Size).
		Offset(p.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
