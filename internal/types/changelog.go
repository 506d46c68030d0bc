package types

import (
	"time"
)

// ChangeLog is the primary-bind field-level audit row. OldValue carries the
// sentinel "∅" for inserts; long values are truncated by the audit package.
type ChangeLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CaseID    uint      `gorm:"index;not null" json:"case_id"`
	FieldName string    `gorm:"size:64;not null" json:"field_name"`
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	EditedBy  string    `gorm:"size:128;not null" json:"edited_by"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

func (ChangeLog) TableName() string {
	return "change_log"
}

// AuditAction is the coarse per-action audit trail kept alongside the
// field-level change log.
type AuditAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	Role      string    `gorm:"size:20;not null" json:"role"`
	Action    string    `gorm:"size:256;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
}

func (AuditAction) TableName() string {
	return "audit_log"
}
