package models

// EntryKind classifies how an application is cleared.
type EntryKind string

const (
	EntryStandard EntryKind = "standard"
	EntryManual   EntryKind = "manual"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	return k == EntryStandard || k == EntryManual
}

// AggregateStatus is the application level status derived from its approvals.
type AggregateStatus string

const (
	AggregatePending    AggregateStatus = "pending"
	AggregateInProgress AggregateStatus = "in_progress"
	AggregateCompleted  AggregateStatus = "completed"
	AggregateRejected   AggregateStatus = "rejected"
)

// ApprovalStatus is one department's decision state.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether s is a known approval status.
func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// ManualStatus is the admin controlled status of a manual entry.
type ManualStatus string

const (
	ManualPendingReview ManualStatus = "pending_review"
	ManualApproved      ManualStatus = "approved"
	ManualRejected      ManualStatus = "rejected"
)

// CertificateState tracks the clearance certificate side effect.
type CertificateState string

const (
	CertificateNotApplicable CertificateState = "not_applicable"
	CertificatePending       CertificateState = "pending"
	CertificateGenerated     CertificateState = "generated"
	CertificateFailed        CertificateState = "failed"
)

// AuditAction names the kind of transition an audit entry records.
type AuditAction string

const (
	ActionDecision     AuditAction = "decision"
	ActionReapply      AuditAction = "reapply"
	ActionManualReview AuditAction = "manual_review"
	ActionCertificate  AuditAction = "certificate"
)
