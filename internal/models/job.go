package models

import (
	"time"

	"github.com/lib/pq"
)

// EligibilityType selects how a job posting restricts by branch.
type EligibilityType string

const (
	EligibilityAllStudents EligibilityType = "ALL_STUDENTS"
	EligibilityBranch      EligibilityType = "BRANCH"
)

// JobPosting is a placement opportunity, global to all colleges by default.
type JobPosting struct {
	ID              string          `db:"id" json:"id"`
	CompanyName     string          `db:"company_name" json:"company_name"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	EligibilityType EligibilityType `db:"eligibility_type" json:"eligibility_type"`
	// EligibleBranches holds department names or codes; uploads reference
	// departments inconsistently, so matching tries both.
	EligibleBranches pq.StringArray `db:"eligible_branches" json:"eligible_branches"`
	// EligibleYears is stored as raw strings ("3", "3rd") and normalized at
	// match time. Empty means no year restriction.
	EligibleYears pq.StringArray `db:"eligible_years" json:"eligible_years"`
	Deadline      *time.Time     `db:"deadline" json:"deadline,omitempty"`
	PostedBy      string         `db:"posted_by" json:"posted_by"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// JobInput is the create/update request payload for a posting.
type JobInput struct {
	CompanyName      string     `json:"company_name" validate:"required,min=2,max=200"`
	Title            string     `json:"title" validate:"required,min=2,max=200"`
	Description      string     `json:"description"`
	EligibilityType  string     `json:"eligibility_type" validate:"omitempty,eligibility_type"`
	EligibleBranches []string   `json:"eligible_branches"`
	EligibleYears    []string   `json:"eligible_years"`
	Deadline         *time.Time `json:"deadline"`
	Active           *bool      `json:"active"`
}

// RoundInput is the create request payload for a selection round.
type RoundInput struct {
	Name       string `json:"name" validate:"required,min=2,max=100"`
	RoundOrder int    `json:"round_order" validate:"required,min=1"`
}

// JobFilter defines listing filters for postings.
type JobFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// RoundStatus is the state of a student's membership in a round.
type RoundStatus string

const (
	RoundStatusPending  RoundStatus = "PENDING"
	RoundStatusCleared  RoundStatus = "CLEARED"
	RoundStatusRejected RoundStatus = "REJECTED"
)

// AppliedRoundOrder is the reserved order of the implicit "Applied" round.
// That round is created with the posting, cannot be renamed, reordered or
// deleted, and guarantees every application has at least one membership.
const AppliedRoundOrder = 0

// AppliedRoundName is the fixed name of the order-0 round.
const AppliedRoundName = "Applied"

// JobRound is an ordered selection stage of a posting.
type JobRound struct {
	ID         string    `db:"id" json:"id"`
	JobID      string    `db:"job_id" json:"job_id"`
	Name       string    `db:"name" json:"name"`
	RoundOrder int       `db:"round_order" json:"round_order"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RoundMembership records that a student reached a round. Memberships are
// never deleted on promotion; the current view of a round filters out
// students that also appear in the next round.
type RoundMembership struct {
	ID        string      `db:"id" json:"id"`
	RoundID   string      `db:"round_id" json:"round_id"`
	JobID     string      `db:"job_id" json:"job_id"`
	StudentID string      `db:"student_id" json:"student_id"`
	Status    RoundStatus `db:"status" json:"status"`
	Notes     *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// RoundMemberRow is a current-view member of a round with student metadata.
type RoundMemberRow struct {
	RoundMembership
	StudentName string `db:"student_name" json:"student_name"`
}
