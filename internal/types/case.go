package types

import (
	"time"

	"gorm.io/datatypes"
)

// Case is the autopsy workflow record on the primary bind. Expert and
// describer fields hold display labels (screen name or username), not foreign
// keys; resolution back to users happens at read time.
type Case struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	CaseNumber         string         `gorm:"size:32;uniqueIndex;not null" json:"case_number"`
	ExternalCaseNumber string         `gorm:"size:64" json:"external_case_number"`
	TempID             string         `gorm:"size:64" json:"temp_id"`
	DeceasedName       string         `gorm:"size:128" json:"deceased_name"`
	MaidenName         string         `gorm:"size:128" json:"maiden_name"`
	MotherName         string         `gorm:"size:128" json:"mother_name"`
	BirthPlace         string         `gorm:"size:128" json:"birth_place"`
	BirthDate          datatypes.Date `json:"birth_date"`
	TAJNumber          string         `gorm:"size:16" json:"taj_number"`
	CaseType           string         `gorm:"size:64" json:"case_type"`
	ArrivalMode        string         `gorm:"size:32" json:"arrival_mode"`
	Poseidon           string         `gorm:"size:64" json:"poseidon"`
	Status             string         `gorm:"size:32;not null;default:received" json:"status"`
	InstitutionName    string         `gorm:"size:128" json:"institution_name"`
	RegistrationTime   time.Time      `json:"registration_time"`
	Deadline           time.Time      `json:"deadline"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CreatedAt          time.Time      `json:"created_at"`

	Expert1   string `gorm:"column:expert_1;size:128" json:"expert_1"`
	Expert2   string `gorm:"column:expert_2;size:128" json:"expert_2"`
	Describer string `gorm:"size:128" json:"describer"`
	ToxExpert string `gorm:"size:128" json:"tox_expert"`

	Notes     string `gorm:"type:text" json:"notes"`
	ToxOrders string `gorm:"type:text" json:"tox_orders"`

	StartedByExpert   bool       `json:"started_by_expert"`
	ToxOrdered        bool       `json:"tox_ordered"`
	ToxViewedByExpert bool       `json:"tox_viewed_by_expert"`
	ToxViewedAt       *time.Time `json:"tox_viewed_at"`
	ToxCompleted      bool       `json:"tox_completed"`

	CertificateGenerated   bool       `json:"certificate_generated"`
	CertificateGeneratedAt *time.Time `json:"certificate_generated_at"`
	ToxDocGenerated        bool       `json:"tox_doc_generated"`
	ToxDocGeneratedAt      *time.Time `json:"tox_doc_generated_at"`
	ToxDocGeneratedBy      string     `gorm:"size:128" json:"tox_doc_generated_by"`

	// Toxicology orders: result text plus an ordered flag per assay.
	AlcoholBlood         string `gorm:"size:128" json:"alcohol_blood"`
	AlcoholBloodOrdered  bool   `json:"alcohol_blood_ordered"`
	AlcoholUrine         string `gorm:"size:128" json:"alcohol_urine"`
	AlcoholUrineOrdered  bool   `json:"alcohol_urine_ordered"`
	AlcoholLiquor        string `gorm:"size:128" json:"alcohol_liquor"`
	AlcoholLiquorOrdered bool   `json:"alcohol_liquor_ordered"`
	OtherAlcohol         string `gorm:"type:text" json:"other_alcohol"`
	OtherAlcoholOrdered  bool   `json:"other_alcohol_ordered"`

	ToxDrugBlood          string `gorm:"size:128" json:"tox_drug_blood"`
	ToxDrugBloodOrdered   bool   `json:"tox_drug_blood_ordered"`
	ToxDrugUrine          string `gorm:"size:128" json:"tox_drug_urine"`
	ToxDrugUrineOrdered   bool   `json:"tox_drug_urine_ordered"`
	ToxDrugStomach        string `gorm:"size:128" json:"tox_drug_stomach"`
	ToxDrugStomachOrdered bool   `json:"tox_drug_stomach_ordered"`
	ToxDrugLiver          string `gorm:"size:128" json:"tox_drug_liver"`
	ToxDrugLiverOrdered   bool   `json:"tox_drug_liver_ordered"`

	ToxNarcoticBlood        string `gorm:"size:128" json:"tox_narcotic_blood"`
	ToxNarcoticBloodOrdered bool   `json:"tox_narcotic_blood_ordered"`
	ToxNarcoticUrine        string `gorm:"size:128" json:"tox_narcotic_urine"`
	ToxNarcoticUrineOrdered bool   `json:"tox_narcotic_urine_ordered"`

	ToxCPK              string `gorm:"size:128" json:"tox_cpk"`
	ToxCPKOrdered       bool   `json:"tox_cpk_ordered"`
	ToxDryMatter        string `gorm:"size:128" json:"tox_dry_matter"`
	ToxDryMatterOrdered bool   `json:"tox_dry_matter_ordered"`
	ToxDiatom           string `gorm:"size:128" json:"tox_diatom"`
	ToxDiatomOrdered    bool   `json:"tox_diatom_ordered"`
	ToxCO               string `gorm:"size:128" json:"tox_co"`
	ToxCOOrdered        bool   `json:"tox_co_ordered"`
	OtherTox            string `gorm:"type:text" json:"other_tox"`
	OtherToxOrdered     bool   `json:"other_tox_ordered"`

	// Organ examinations: special stain / immunohistochemistry per organ.
	HeartSpec       bool   `json:"heart_spec"`
	HeartImmun      bool   `json:"heart_immun"`
	LungSpec        bool   `json:"lung_spec"`
	LungImmun       bool   `json:"lung_immun"`
	LiverSpec       bool   `json:"liver_spec"`
	LiverImmun      bool   `json:"liver_immun"`
	KidneySpec      bool   `json:"kidney_spec"`
	KidneyImmun     bool   `json:"kidney_immun"`
	BrainSpec       bool   `json:"brain_spec"`
	BrainImmun      bool   `json:"brain_immun"`
	AdrenalSpec     bool   `json:"adrenal_spec"`
	AdrenalImmun    bool   `json:"adrenal_immun"`
	ThyroidSpec     bool   `json:"thyroid_spec"`
	ThyroidImmun    bool   `json:"thyroid_immun"`
	PancreasSpec    bool   `json:"pancreas_spec"`
	PancreasImmun   bool   `json:"pancreas_immun"`
	SpleenSpec      bool   `json:"spleen_spec"`
	SpleenImmun     bool   `json:"spleen_immun"`
	OtherOrgan      string `gorm:"size:128" json:"other_organ"`
	OtherOrganSpec  bool   `json:"other_organ_spec"`
	OtherOrganImmun bool   `json:"other_organ_immun"`

	// Death certificate block.
	CauseByPathologist    bool   `json:"cause_by_pathologist"`
	CauseByAttending      bool   `json:"cause_by_attending"`
	CauseByOtherDoctor    bool   `json:"cause_by_other_doctor"`
	AutopsyPerformed      bool   `json:"autopsy_performed"`
	FurtherExamExpected   bool   `json:"further_exam_expected"`
	DirectCause           string `gorm:"size:256" json:"direct_cause"`
	DirectCauseInterval   string `gorm:"size:64" json:"direct_cause_interval"`
	UnderlyingComplic     string `gorm:"size:256" json:"underlying_complications"`
	UnderlyingComplicTime string `gorm:"size:64" json:"underlying_complications_interval"`
	UnderlyingDisease     string `gorm:"size:256" json:"underlying_disease"`
	UnderlyingDiseaseTime string `gorm:"size:64" json:"underlying_disease_interval"`
	ContributingDiseases  string `gorm:"type:text" json:"contributing_diseases"`
}

func (Case) TableName() string {
	return "case"
}

// AuditParentID marks Case as tracked by the primary-bind audit plugin.
func (c *Case) AuditParentID() uint {
	return c.ID
}
