package types

import (
	"time"

	"gorm.io/datatypes"
)

// Assignment types for investigations.
const (
	AssignmentInstitutional  = "INSTITUTIONAL"
	AssignmentExpertAssigned = "EXPERT_ASSIGNED"
)

// Investigation lives on the examination bind. User references are bare
// integer handles into the primary bind, resolved at read time; readers must
// tolerate dangling handles.
type Investigation struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CaseNumber         string         `gorm:"size:16;uniqueIndex;not null" json:"case_number"`
	ExternalCaseNumber string         `gorm:"size:64" json:"external_case_number"`
	OtherIdentifier    string         `gorm:"size:64" json:"other_identifier"`
	SubjectName        string         `gorm:"size:128;not null;index" json:"subject_name"`
	MaidenName         string         `gorm:"size:128" json:"maiden_name"`
	MotherName         string         `gorm:"size:128;not null" json:"mother_name"`
	BirthPlace         string         `gorm:"size:128;not null" json:"birth_place"`
	BirthDate          datatypes.Date `gorm:"not null" json:"birth_date"`
	TAJNumber          string         `gorm:"size:16;not null;index" json:"taj_number"`
	Residence          string         `gorm:"size:255;not null" json:"residence"`
	Citizenship        string         `gorm:"size:255;not null" json:"citizenship"`
	InstitutionName    string         `gorm:"size:128;not null;index" json:"institution_name"`
	InvestigationType  string         `gorm:"size:64" json:"investigation_type"`
	AssignmentType     string         `gorm:"size:32" json:"assignment_type"`
	AssignedExpertID   uint           `json:"assigned_expert_id"`
	Expert1ID          uint           `json:"expert1_id"`
	Expert2ID          uint           `json:"expert2_id"`
	DescriberID        uint           `json:"describer_id"`
	Status             string         `gorm:"size:32;not null;default:received" json:"status"`
	RegistrationTime   time.Time      `json:"registration_time"`
	Deadline           time.Time      `json:"deadline"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CreatedAt          time.Time      `json:"created_at"`
}

func (Investigation) TableName() string {
	return "investigation"
}

// AuditParentID marks Investigation as tracked by the examination-bind audit
// plugin.
func (i *Investigation) AuditParentID() uint {
	return i.ID
}

type InvestigationNote struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	InvestigationID uint      `gorm:"index;not null" json:"investigation_id"`
	AuthorID        uint      `gorm:"not null" json:"author_id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	Timestamp       time.Time `json:"timestamp"`
}

func (InvestigationNote) TableName() string {
	return "investigation_note"
}

type InvestigationAttachment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	InvestigationID uint      `gorm:"index;not null" json:"investigation_id"`
	Filename        string    `gorm:"size:255;not null" json:"filename"`
	Category        string    `gorm:"size:64" json:"category"`
	UploadedBy      uint      `gorm:"not null" json:"uploaded_by"`
	UploadedAt      time.Time `json:"uploaded_at"`
}

func (InvestigationAttachment) TableName() string {
	return "investigation_attachment"
}

// InvestigationChangeLog is the examination-bind audit row. EditedBy is the
// acting user's id on the primary bind, 0 when no request actor exists.
type InvestigationChangeLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	InvestigationID uint      `gorm:"index;not null" json:"investigation_id"`
	FieldName       string    `gorm:"size:64;not null" json:"field_name"`
	OldValue        string    `gorm:"type:text" json:"old_value"`
	NewValue        string    `gorm:"type:text" json:"new_value"`
	EditedBy        uint      `gorm:"not null" json:"edited_by"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
}

func (InvestigationChangeLog) TableName() string {
	return "investigation_change_log"
}
