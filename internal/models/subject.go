package models

import "time"

// Subject represents an academic subject offered by a college.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	CollegeID    *string   `db:"college_id" json:"college_id,omitempty"`
	DepartmentID *string   `db:"department_id" json:"department_id,omitempty"`
	Credits      int       `db:"credits" json:"credits"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	CollegeID    string
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
