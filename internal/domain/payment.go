// Package domain defines the persistence models and value types of the
// payroll approval bot. The GORM models here are shared by the repository,
// cache, and service layers; the remaining types (statuses, categories,
// inbound actions) are plain values with no storage dependency.
package domain

import (
	"time"
)

// Status is the workflow state of a PaymentRecord.
type Status string

const (
	StatusNew                 Status = "new"
	StatusAgreePendingVerify  Status = "agree_pending_verify"
	StatusAgreePendingPro     Status = "agree_pending_pro"
	StatusAgreed              Status = "agreed"
	StatusAgreeDataMismatch   Status = "agree_data_mismatch"
	StatusAgreeProPending     Status = "agree_pro_pending"
	StatusDisagreeSelectPoint Status = "disagree_select_point"
	StatusDisagreed           Status = "disagreed"
)

// Terminal reports whether no dialogue step may move the record further.
func (s Status) Terminal() bool {
	return s == StatusAgreed || s == StatusDisagreed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusAgreePendingVerify, StatusAgreePendingPro, StatusAgreed,
		StatusAgreeDataMismatch, StatusAgreeProPending, StatusDisagreeSelectPoint, StatusDisagreed:
		return true
	}
	return false
}

// Kind distinguishes the two statement templates.
type Kind string

const (
	KindCurator Kind = "curator"
	KindTutor   Kind = "tutor"
)

// ImportState tracks whether the initial prompt for a record went out. It is
// kept apart from ImportToken so that identity and announcement progress never
// share a column.
type ImportState string

const (
	ImportPending       ImportState = "pending"
	ImportAnnounced     ImportState = "announced"
	ImportSkipZeroTotal ImportState = "skip_zero_total"
	ImportUndeliverable ImportState = "undeliverable"
)

// PaymentRecord is one recipient's line within one published batch.
//
// ID is the canonical identity used in button payloads. ImportToken is a
// random per-row value with a unique index; it exists for external
// correlation and is never derived from batch-level data. ArchiveAt is stored
// (CreatedAt + retention window) so that warning and archive sweeps are plain
// range scans.
type PaymentRecord struct {
	ID             uint        `json:"id"              gorm:"primaryKey;autoIncrement"`
	RecipientID    int64       `json:"recipient_id"    gorm:"not null;index:idx_payment_recipient"`
	BatchFile      string      `json:"batch_file"      gorm:"type:varchar(255);not null;index:idx_payment_batch"`
	ContentRef     string      `json:"content_ref"     gorm:"type:text;not null"`
	ImportToken    string      `json:"import_token"    gorm:"type:char(36);not null;uniqueIndex:ux_payment_import_token"`
	ImportState    ImportState `json:"import_state"    gorm:"type:varchar(32);not null;default:'pending';index:idx_payment_import_state"`
	Kind           Kind        `json:"kind"            gorm:"type:varchar(16);not null;default:'curator'"`
	Status         Status      `json:"status"          gorm:"type:varchar(32);not null;default:'new';index:idx_payment_status"`
	DisagreeReason *string     `json:"disagree_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time   `json:"created_at"      gorm:"not null"`
	ArchiveAt      time.Time   `json:"archive_at"      gorm:"not null;index:idx_payment_archive_at"`
	ConfirmedAt    *time.Time  `json:"confirmed_at,omitempty"`
	WarningSent    bool        `json:"warning_sent"    gorm:"not null;default:false"`
	WarningSentAt  *time.Time  `json:"warning_sent_at,omitempty"`
	LastAttemptAt  *time.Time  `json:"last_attempt_at,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for PaymentRecord.
func (PaymentRecord) TableName() string { return "payment_records" }

// Reason returns the disagreement reason or "".
func (p PaymentRecord) Reason() string {
	if p.DisagreeReason == nil {
		return ""
	}
	return *p.DisagreeReason
}

// NewRecord is one row handed to RecordStore.InsertBatch.
type NewRecord struct {
	RecipientID int64
	ContentRef  string
}

// BatchStats aggregates the records of one batch by status.
type BatchStats struct {
	BatchFile string         `json:"batch_file"`
	Total     int64          `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	Warned    int64          `json:"warned"`
	ArchiveAt *time.Time     `json:"archive_at,omitempty"`
}
