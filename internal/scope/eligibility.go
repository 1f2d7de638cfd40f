package scope

import (
	"strings"

	"github.com/svnapro/campuscore-api/internal/models"
)

// IsEligible decides whether the actor may see a job posting. Postings are
// global to all colleges by default, so this axis is independent of the
// content scope model: branch matching is by department name OR code (uploads
// reference departments inconsistently), and the year rule is an exact match
// against the cohort list, deliberately stricter than content scoping's
// "year or earlier" relation.
func IsEligible(actor models.ActorContext, job models.JobPosting) bool {
	// Staff manage postings and the institution class is never filtered.
	if actor.Role.Staff() || actor.Role == models.RoleInstitutionStudent {
		return true
	}

	switch normalizeEligibilityType(job.EligibilityType) {
	case models.EligibilityAllStudents:
		// Branch-unrestricted.
	case models.EligibilityBranch:
		if !branchMatches(actor, job.EligibleBranches) {
			return false
		}
	default:
		// Unknown eligibility types fail closed.
		return false
	}

	if len(job.EligibleYears) > 0 && !yearListMatches(actor.Year, job.EligibleYears) {
		return false
	}

	return true
}

// FilterEligible returns the postings the actor may see, preserving order.
func FilterEligible(actor models.ActorContext, jobs []models.JobPosting) []models.JobPosting {
	eligible := make([]models.JobPosting, 0, len(jobs))
	for _, job := range jobs {
		if IsEligible(actor, job) {
			eligible = append(eligible, job)
		}
	}
	return eligible
}

func normalizeEligibilityType(t models.EligibilityType) models.EligibilityType {
	normalized := models.EligibilityType(strings.ToUpper(strings.TrimSpace(string(t))))
	if normalized == "" {
		return models.EligibilityAllStudents
	}
	return normalized
}

// branchMatches tries the actor's department name and code against each
// entry before concluding ineligibility. Actors with no resolvable
// department are ineligible for branch-restricted postings.
func branchMatches(actor models.ActorContext, branches []string) bool {
	identifiers := make([]string, 0, 2)
	if actor.DepartmentName != nil {
		identifiers = append(identifiers, strings.TrimSpace(*actor.DepartmentName))
	}
	if actor.DepartmentCode != nil {
		identifiers = append(identifiers, strings.TrimSpace(*actor.DepartmentCode))
	}
	if len(identifiers) == 0 {
		return false
	}
	for _, branch := range branches {
		branch = strings.TrimSpace(branch)
		if branch == "" {
			continue
		}
		for _, id := range identifiers {
			if strings.EqualFold(branch, id) {
				return true
			}
		}
	}
	return false
}

// yearListMatches requires the actor's normalized year to equal one
// normalized list entry. Unparseable entries are skipped; an actor with no
// resolvable year is ineligible when the posting restricts on years.
func yearListMatches(actorYear *int, years []string) bool {
	if actorYear == nil {
		return false
	}
	normalized, ok := NormalizeYear(*actorYear)
	if !ok {
		return false
	}
	for _, entry := range years {
		if entryYear, entryOK := NormalizeYear(entry); entryOK && entryYear == normalized {
			return true
		}
	}
	return false
}
