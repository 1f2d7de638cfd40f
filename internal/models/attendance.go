package models

import (
	"fmt"
	"time"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// ApprovalStatus tracks the review state of an attendance record.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// AttendanceKey is the natural key an attendance record must be unique on.
// The subject dimension is resolved by id when available and by name
// otherwise. A nil Period is itself a distinct key value (whole-day record),
// not a wildcard.
type AttendanceKey struct {
	StudentID   string
	Date        time.Time
	SubjectID   *string
	SubjectName *string
	Period      *int
}

// String renders the key for logs and per-row failure reasons.
func (k AttendanceKey) String() string {
	subject := "-"
	if k.SubjectID != nil {
		subject = *k.SubjectID
	} else if k.SubjectName != nil {
		subject = *k.SubjectName
	}
	period := "day"
	if k.Period != nil {
		period = fmt.Sprintf("p%d", *k.Period)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.StudentID, k.Date.Format("2006-01-02"), subject, period)
}

// AttendanceRecord is the stored attendance fact.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	Date           time.Time        `db:"date" json:"date"`
	SubjectID      *string          `db:"subject_id" json:"subject_id,omitempty"`
	SubjectName    *string          `db:"subject_name" json:"subject_name,omitempty"`
	Period         *int             `db:"period" json:"period,omitempty"`
	Status         AttendanceStatus `db:"status" json:"status"`
	SectionID      *string          `db:"section_id" json:"section_id,omitempty"`
	DepartmentID   *string          `db:"department_id" json:"department_id,omitempty"`
	CollegeID      *string          `db:"college_id" json:"college_id,omitempty"`
	MarkedBy       string           `db:"marked_by" json:"marked_by"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	ApprovalStatus ApprovalStatus   `db:"approval_status" json:"approval_status"`
	ApprovedBy     *string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalNotes  *string          `db:"approval_notes" json:"approval_notes,omitempty"`
	ApprovalDate   *time.Time       `db:"approval_date" json:"approval_date,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Key extracts the natural key of a stored record.
func (r AttendanceRecord) Key() AttendanceKey {
	return AttendanceKey{
		StudentID:   r.StudentID,
		Date:        r.Date,
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		Period:      r.Period,
	}
}

// AttendanceInput is one row of a batch mark request.
type AttendanceInput struct {
	StudentID   string  `json:"student_id" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	SubjectID   *string `json:"subject_id"`
	SubjectName *string `json:"subject_name"`
	Period      *int    `json:"period" validate:"omitempty,min=1,max=12"`
	Status      string  `json:"status" validate:"required,attendance_status"`
	SectionID   *string `json:"section_id"`
	Notes       *string `json:"notes"`
}

// AttendanceFailure pairs a rejected input with the reason it was rejected.
type AttendanceFailure struct {
	Input  AttendanceInput `json:"input"`
	Reason string          `json:"reason"`
}

// AttendanceBatchResult reports a partially successful batch.
type AttendanceBatchResult struct {
	Succeeded []AttendanceRecord  `json:"succeeded"`
	Failed    []AttendanceFailure `json:"failed"`
}

// AttendanceFilter defines listing filters.
type AttendanceFilter struct {
	StudentID string
	SectionID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Status    *AttendanceStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
