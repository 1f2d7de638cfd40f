package models

// ActorContext is the viewer's resolved position in the organisation,
// materialised once per request from the authenticated identity plus the
// matching profile row. Nil pointers mean the dimension does not apply to the
// role (a super admin carries none of them) or could not be resolved.
type ActorContext struct {
	UserID         string   `json:"user_id"`
	Role           UserRole `json:"role"`
	CollegeID      *string  `json:"college_id,omitempty"`
	DepartmentID   *string  `json:"department_id,omitempty"`
	DepartmentName *string  `json:"department_name,omitempty"`
	DepartmentCode *string  `json:"department_code,omitempty"`
	SectionID      *string  `json:"section_id,omitempty"`
	Year           *int     `json:"year,omitempty"`
}

// CollegeOf returns the actor's college id or empty string.
func (a ActorContext) CollegeOf() string {
	if a.CollegeID == nil {
		return ""
	}
	return *a.CollegeID
}

// HasYear reports whether the actor's academic year is known.
func (a ActorContext) HasYear() bool {
	return a.Year != nil
}
