package models

import "time"

// CertificateType distinguishes the two certificate tiers.
type CertificateType string

const (
	CertificateVirtual  CertificateType = "VIRTUAL"
	CertificateComplete CertificateType = "COMPLETE"
)

// Valid reports whether the type is a known certificate tier.
func (t CertificateType) Valid() bool {
	return t == CertificateVirtual || t == CertificateComplete
}

// Prefix returns the certificate number prefix for the tier.
func (t CertificateType) Prefix() string {
	if t == CertificateComplete {
		return "CMP"
	}
	return "VRT"
}

// Certificate is one issuance for an enrollment. At most one valid row may
// exist per (enrollment, type); invalidation keeps the row for audit.
type Certificate struct {
	ID                 string          `db:"id" json:"id"`
	EnrollmentID       string          `db:"enrollment_id" json:"enrollment_id"`
	StudentID          string          `db:"student_id" json:"student_id"`
	CourseID           string          `db:"course_id" json:"course_id"`
	Type               CertificateType `db:"type" json:"type"`
	CertificateNumber  string          `db:"certificate_number" json:"certificate_number"`
	IssuedAt           time.Time       `db:"issued_at" json:"issued_at"`
	FinalScore         float64         `db:"final_score" json:"final_score"`
	CourseProgress     float64         `db:"course_progress" json:"course_progress"`
	InteractiveAverage float64         `db:"interactive_average" json:"interactive_average"`
	ActivitiesAverage  float64         `db:"activities_average" json:"activities_average"`
	FilePath           *string         `db:"file_path" json:"file_path,omitempty"`
	Valid              bool            `db:"valid" json:"valid"`
	InvalidationReason *string         `db:"invalidation_reason" json:"invalidation_reason,omitempty"`
}
