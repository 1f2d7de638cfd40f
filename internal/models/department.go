package models

import "time"

// College is a member institution of the network.
type College struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Department belongs to a college. HODUserID is a plain back-reference to the
// current head of department; at most one active HOD per department is
// enforced at the point of reassignment.
type Department struct {
	ID        string    `db:"id" json:"id"`
	CollegeID string    `db:"college_id" json:"college_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	HODUserID *string   `db:"hod_user_id" json:"hod_user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Section is a named cohort within a department and year. Sections in
// different departments may share display names; identity is always by id.
type Section struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	CollegeID    string    `db:"college_id" json:"college_id"`
	Name         string    `db:"name" json:"name"`
	Year         int       `db:"year" json:"year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// StudentProfile links a user to their organisational position. YearRaw keeps
// the uploaded form ("3", "3rd", "Third"); it is normalized on read.
type StudentProfile struct {
	UserID         string  `db:"user_id" json:"user_id"`
	RollNumber     string  `db:"roll_number" json:"roll_number"`
	CollegeID      *string `db:"college_id" json:"college_id,omitempty"`
	DepartmentID   *string `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
	DepartmentCode *string `db:"department_code" json:"department_code,omitempty"`
	SectionID      *string `db:"section_id" json:"section_id,omitempty"`
	YearRaw        *string `db:"year_raw" json:"year_raw,omitempty"`
}

// StaffProfile links a staff user to their organisational position.
type StaffProfile struct {
	UserID         string  `db:"user_id" json:"user_id"`
	CollegeID      *string `db:"college_id" json:"college_id,omitempty"`
	DepartmentID   *string `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
	DepartmentCode *string `db:"department_code" json:"department_code,omitempty"`
}
