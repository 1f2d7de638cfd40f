package models

import "time"

// ContentType distinguishes the kinds of distributable content.
type ContentType string

const (
	ContentTypeQuiz   ContentType = "QUIZ"
	ContentTypeCoding ContentType = "CODING_PROBLEM"
)

// Valid reports whether the content type is supported.
func (t ContentType) Valid() bool {
	return t == ContentTypeQuiz || t == ContentTypeCoding
}

// ContentItem is a distributable content record (quiz or coding problem).
// The scope_* columns are the flattened persistence form of the scope
// descriptor; they are parsed into a typed scope before any visibility
// decision is made.
type ContentItem struct {
	ID             string      `db:"id" json:"id"`
	Type           ContentType `db:"content_type" json:"content_type"`
	Title          string      `db:"title" json:"title"`
	Body           string      `db:"body" json:"body"`
	ScopeKind      string      `db:"scope_kind" json:"scope_kind"`
	CollegeID      *string     `db:"college_id" json:"college_id,omitempty"`
	DepartmentName *string     `db:"department_name" json:"department_name,omitempty"`
	SectionID      *string     `db:"section_id" json:"section_id,omitempty"`
	Year           *int        `db:"year" json:"year,omitempty"`
	CreatedBy      string      `db:"created_by" json:"created_by"`
	Active         bool        `db:"active" json:"active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ContentInput is the create/update request payload. Scope fields are
// requests, not grants; the service pins them to the creator's position for
// non-super-admins.
type ContentInput struct {
	Type           ContentType `json:"content_type" validate:"required,content_type"`
	Title          string      `json:"title" validate:"required,min=3,max=200"`
	Body           string      `json:"body" validate:"required"`
	ScopeKind      string      `json:"scope_kind"`
	CollegeID      *string     `json:"college_id"`
	DepartmentName *string     `json:"department_name"`
	SectionID      *string     `json:"section_id"`
	Year           *int        `json:"year" validate:"omitempty,min=1,max=5"`
	Active         *bool       `json:"active"`
}

// ContentFilter defines listing filters combined with the scope predicate.
type ContentFilter struct {
	Type      *ContentType
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
