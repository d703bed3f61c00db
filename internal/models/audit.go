package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAuditImmutable is returned when anything tries to rewrite history.
var ErrAuditImmutable = errors.New("audit entries are append-only")

// AuditEntry records one committed transition. Rows are never updated or deleted.
type AuditEntry struct {
	ID               string      `gorm:"type:char(36);primaryKey"`
	ApplicationID    string      `gorm:"type:char(36);not null;index:idx_audit_application_created,priority:1;uniqueIndex:idx_audit_application_sequence,priority:1"`
	Seq              uint64      `gorm:"column:seq;not null;default:0;uniqueIndex:idx_audit_application_sequence,priority:2"`
	ApprovalRecordID *string     `gorm:"type:char(36);index"`
	DepartmentName   *string     `gorm:"size:64;index:idx_audit_department_created,priority:1"`
	Action           AuditAction `gorm:"size:32;not null"`
	FromStatus       string      `gorm:"size:32;not null"`
	ToStatus         string      `gorm:"size:32;not null"`
	Actor            string      `gorm:"size:128;not null"`
	ActorRole        string      `gorm:"size:32"`
	Reason           *string     `gorm:"size:2048"`
	Metadata         JSON
	CreatedAt        time.Time `gorm:"not null;index:idx_audit_application_created,priority:2;index:idx_audit_department_created,priority:2"`
}

// TableName overrides the table name for AuditEntry
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// BeforeUpdate refuses every update.
func (a *AuditEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete refuses every delete.
func (a *AuditEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
