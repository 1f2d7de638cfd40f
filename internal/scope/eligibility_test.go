package scope

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/svnapro/campuscore-api/internal/models"
)

func branchJob(branches []string, years []string) models.JobPosting {
	return models.JobPosting{
		ID:               "job-1",
		CompanyName:      "Acme",
		EligibilityType:  models.EligibilityBranch,
		EligibleBranches: pq.StringArray(branches),
		EligibleYears:    pq.StringArray(years),
	}
}

func TestIsEligibleAllStudentsDefault(t *testing.T) {
	actor := studentActor()

	assert.True(t, IsEligible(actor, models.JobPosting{EligibilityType: models.EligibilityAllStudents}))
	// Missing/empty type is treated as the all_students default.
	assert.True(t, IsEligible(actor, models.JobPosting{EligibilityType: ""}))
	assert.True(t, IsEligible(actor, models.JobPosting{EligibilityType: "all_students"}))
	// Unknown types fail closed.
	assert.False(t, IsEligible(actor, models.JobPosting{EligibilityType: "INVITE_ONLY"}))
}

func TestIsEligibleBranchNameOrCode(t *testing.T) {
	actor := studentActor() // name CSE, code CS

	assert.True(t, IsEligible(actor, branchJob([]string{"cse"}, nil)))
	assert.True(t, IsEligible(actor, branchJob([]string{" CS "}, nil)))
	assert.True(t, IsEligible(actor, branchJob([]string{"MECH", "ECE", "CSE"}, nil)))
	assert.False(t, IsEligible(actor, branchJob([]string{"MECH", "ECE"}, nil)))
	assert.False(t, IsEligible(actor, branchJob(nil, nil)))

	noDept := actor
	noDept.DepartmentName = nil
	noDept.DepartmentCode = nil
	assert.False(t, IsEligible(noDept, branchJob([]string{"CSE"}, nil)))
}

func TestIsEligibleExactYearMatch(t *testing.T) {
	actor := studentActor() // year 2

	// Exact year match, unlike content scoping's <= relation: a year-2
	// student does not see a cohort list of [1] or [3].
	assert.True(t, IsEligible(actor, branchJob([]string{"CSE"}, []string{"2"})))
	assert.True(t, IsEligible(actor, branchJob([]string{"CSE"}, []string{"2nd", "3rd"})))
	assert.False(t, IsEligible(actor, branchJob([]string{"CSE"}, []string{"1"})))
	assert.False(t, IsEligible(actor, branchJob([]string{"CSE"}, []string{"3"})))

	// Unparseable list entries are skipped, not matched.
	assert.False(t, IsEligible(actor, branchJob([]string{"CSE"}, []string{"alumni"})))

	// Year restriction applies independently of eligibility type.
	allStudents := models.JobPosting{EligibilityType: models.EligibilityAllStudents, EligibleYears: pq.StringArray{"third"}}
	assert.False(t, IsEligible(actor, allStudents))

	noYear := actor
	noYear.Year = nil
	assert.False(t, IsEligible(noYear, branchJob([]string{"CSE"}, []string{"2"})))
	assert.True(t, IsEligible(noYear, branchJob([]string{"CSE"}, nil)))
}

func TestIsEligibleStaffAndInstitutionBypass(t *testing.T) {
	job := branchJob([]string{"MECH"}, []string{"4"})

	for _, role := range []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleHOD, models.RoleFaculty, models.RoleInstitutionStudent} {
		actor := models.ActorContext{Role: role}
		assert.True(t, IsEligible(actor, job), "role %s", role)
	}
}

func TestFilterEligiblePreservesOrder(t *testing.T) {
	actor := studentActor()
	jobs := []models.JobPosting{
		branchJob([]string{"CSE"}, nil),
		branchJob([]string{"MECH"}, nil),
		branchJob([]string{"cs"}, []string{"2"}),
		branchJob([]string{"CSE"}, []string{"3"}),
	}

	eligible := FilterEligible(actor, jobs)
	assert.Len(t, eligible, 2)
	assert.Equal(t, jobs[0].EligibleBranches, eligible[0].EligibleBranches)
	assert.Equal(t, jobs[2].EligibleYears, eligible[1].EligibleYears)
}
