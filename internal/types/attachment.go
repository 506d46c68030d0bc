package types

import (
	"time"
)

// CaseAttachment records a file stored in the per-case upload folder.
// Uploader is a display label, mirroring how cases reference users.
type CaseAttachment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CaseID     uint      `gorm:"index;not null" json:"case_id"`
	Filename   string    `gorm:"size:256;not null" json:"filename"`
	Category   string    `gorm:"size:64" json:"category"`
	Uploader   string    `gorm:"size:128;not null" json:"uploader"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (CaseAttachment) TableName() string {
	return "uploaded_file"
}
