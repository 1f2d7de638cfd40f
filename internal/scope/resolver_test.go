package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svnapro/campuscore-api/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func studentActor() models.ActorContext {
	return models.ActorContext{
		UserID:         "user-1",
		Role:           models.RoleStudent,
		CollegeID:      strPtr("college-5"),
		DepartmentName: strPtr("CSE"),
		DepartmentCode: strPtr("CS"),
		SectionID:      strPtr("section-12"),
		Year:           intPtr(2),
	}
}

func TestIsVisibleRoleBypasses(t *testing.T) {
	section := Section{CollegeID: strPtr("college-99"), SectionID: "section-99", Year: intPtr(4)}

	admin := models.ActorContext{Role: models.RoleSuperAdmin}
	assert.True(t, IsVisible(admin, section))

	// Institution students bypass both org and year filtering even with no
	// resolvable position of their own.
	instStudent := models.ActorContext{Role: models.RoleInstitutionStudent}
	assert.True(t, IsVisible(instStudent, section))
	assert.True(t, IsVisible(instStudent, Global{Year: intPtr(4)}))
}

func TestIsVisibleYearGate(t *testing.T) {
	actor := studentActor() // year 2

	dept := func(year *int) Descriptor {
		return Department{CollegeID: "college-5", Name: strPtr("CSE"), Year: year}
	}

	// Content for the actor's year or earlier is visible; later years are not.
	assert.True(t, IsVisible(actor, dept(intPtr(1))))
	assert.True(t, IsVisible(actor, dept(intPtr(2))))
	assert.False(t, IsVisible(actor, dept(intPtr(3))))
	assert.True(t, IsVisible(actor, dept(nil)))

	// Unknown-year students fall back to global content only.
	actor.Year = nil
	assert.False(t, IsVisible(actor, dept(nil)))
	assert.True(t, IsVisible(actor, Global{Year: intPtr(4)}))
	assert.True(t, IsVisible(actor, Global{}))
}

func TestIsVisibleCollegeScope(t *testing.T) {
	actor := studentActor()

	assert.True(t, IsVisible(actor, College{CollegeID: strPtr("college-5"), Year: intPtr(1)}))
	assert.False(t, IsVisible(actor, College{CollegeID: strPtr("college-6"), Year: intPtr(1)}))

	// A missing owning college is treated as global, not a lockout.
	assert.True(t, IsVisible(actor, College{CollegeID: nil, Year: intPtr(2)}))

	noCollege := actor
	noCollege.CollegeID = nil
	assert.False(t, IsVisible(noCollege, College{CollegeID: strPtr("college-5")}))
	assert.True(t, IsVisible(noCollege, College{CollegeID: nil}))
}

func TestIsVisibleDepartmentScope(t *testing.T) {
	actor := studentActor()

	// Case-insensitive department match, year 1 <= 2.
	assert.True(t, IsVisible(actor, Department{CollegeID: "college-5", Name: strPtr("cse"), Year: intPtr(1)}))
	assert.False(t, IsVisible(actor, Department{CollegeID: "college-5", Name: strPtr("ECE"), Year: intPtr(1)}))
	assert.False(t, IsVisible(actor, Department{CollegeID: "college-6", Name: strPtr("CSE"), Year: intPtr(1)}))

	// Both sides null means any department within the college.
	noDept := actor
	noDept.DepartmentName = nil
	assert.True(t, IsVisible(noDept, Department{CollegeID: "college-5", Name: nil}))
	assert.False(t, IsVisible(noDept, Department{CollegeID: "college-5", Name: strPtr("CSE")}))
	assert.False(t, IsVisible(actor, Department{CollegeID: "college-5", Name: nil}))
}

func TestIsVisibleSectionScopeIdentityOnly(t *testing.T) {
	actor := studentActor()

	assert.True(t, IsVisible(actor, Section{CollegeID: strPtr("college-5"), SectionID: "section-12"}))
	// Section mismatch denies independent of year.
	assert.False(t, IsVisible(actor, Section{CollegeID: strPtr("college-5"), SectionID: "section-99", Year: nil}))
	assert.False(t, IsVisible(actor, Section{CollegeID: strPtr("college-6"), SectionID: "section-12"}))
	// Declared college missing on the descriptor is unrestricted at that level.
	assert.True(t, IsVisible(actor, Section{CollegeID: nil, SectionID: "section-12"}))
}

func TestIsVisibleOutOfRangeDeclaredYear(t *testing.T) {
	actor := studentActor() // year 2
	dept := Department{CollegeID: "college-5", Name: strPtr("CSE"), Year: intPtr(7)}

	// A stored year outside the canonical range hides the row from students,
	// matching what the compiled SQL filter does with the same data.
	assert.False(t, IsVisible(actor, dept))
	assert.False(t, IsVisible(actor, Global{Year: intPtr(0)}))

	// Roles that skip the year gate are unaffected in both forms.
	faculty := models.ActorContext{Role: models.RoleFaculty, CollegeID: strPtr("college-5"), DepartmentName: strPtr("CSE")}
	assert.True(t, IsVisible(faculty, dept))
	assert.True(t, IsVisible(models.ActorContext{Role: models.RoleSuperAdmin}, dept))
}

func TestIsVisibleStaffSkipsYearGate(t *testing.T) {
	faculty := models.ActorContext{
		Role:           models.RoleFaculty,
		CollegeID:      strPtr("college-5"),
		DepartmentName: strPtr("CSE"),
	}
	// Staff carry no year; the year gate must not lock them out of scoped
	// content in their own org position.
	assert.True(t, IsVisible(faculty, Department{CollegeID: "college-5", Name: strPtr("CSE"), Year: intPtr(3)}))
	assert.False(t, IsVisible(faculty, Department{CollegeID: "college-6", Name: strPtr("CSE")}))
}

func TestIsVisibleFailsClosed(t *testing.T) {
	actor := studentActor()
	assert.False(t, IsVisible(actor, nil))

	// Malformed stored rows never become visible.
	_, err := FromColumns(Columns{Kind: KindSection})
	require.Error(t, err)
	_, err = FromColumns(Columns{Kind: KindDepartment, DepartmentName: strPtr("CSE")})
	require.Error(t, err)
	_, err = FromColumns(Columns{Kind: "CLUSTER"})
	require.Error(t, err)
}

func TestPredicateMatchesIsVisible(t *testing.T) {
	actor := studentActor()
	pred := Predicate(actor)

	descriptors := []Descriptor{
		Global{},
		College{CollegeID: strPtr("college-5")},
		College{CollegeID: strPtr("college-6")},
		Section{CollegeID: strPtr("college-5"), SectionID: "section-12"},
		Section{CollegeID: strPtr("college-5"), SectionID: "section-99"},
	}
	for _, desc := range descriptors {
		assert.Equal(t, IsVisible(actor, desc), pred(desc))
	}
}

func TestSQLFilterShapes(t *testing.T) {
	admin := models.ActorContext{Role: models.RoleSuperAdmin}
	clause, args := SQLFilter(admin, "ci.", 1)
	assert.Equal(t, "1=1", clause)
	assert.Empty(t, args)

	unknownYear := studentActor()
	unknownYear.Year = nil
	clause, args = SQLFilter(unknownYear, "ci.", 1)
	assert.Equal(t, "ci.scope_kind = 'GLOBAL'", clause)
	assert.Empty(t, args)

	actor := studentActor()
	clause, args = SQLFilter(actor, "ci.", 3)
	require.Len(t, args, 4)
	assert.Equal(t, "college-5", args[0])
	assert.Equal(t, "CSE", args[1])
	assert.Equal(t, "section-12", args[2])
	assert.Equal(t, 2, args[3])
	assert.Contains(t, clause, "ci.scope_kind = 'GLOBAL'")
	assert.Contains(t, clause, "$3")
	assert.Contains(t, clause, "ci.year IS NULL OR (ci.year >= 1 AND ci.year <= $6)")
	assert.Contains(t, clause, "ci.section_id = $5")
}

func TestAssignForcesCreatorScope(t *testing.T) {
	faculty := models.ActorContext{
		Role:           models.RoleFaculty,
		CollegeID:      strPtr("college-5"),
		DepartmentName: strPtr("CSE"),
		SectionID:      strPtr("section-12"),
	}

	// Client-supplied org fields are ignored for non-super-admins.
	desc, err := Assign(faculty, Columns{
		Kind:           KindDepartment,
		CollegeID:      strPtr("college-99"),
		DepartmentName: strPtr("MECH"),
		Year:           intPtr(2),
	})
	require.NoError(t, err)
	dept, ok := desc.(Department)
	require.True(t, ok)
	assert.Equal(t, "college-5", dept.CollegeID)
	assert.Equal(t, "CSE", *dept.Name)
	assert.Equal(t, 2, *dept.Year)

	// Requesting global as a non-super-admin pins to the creator's college.
	desc, err = Assign(faculty, Columns{Kind: KindGlobal})
	require.NoError(t, err)
	college, ok := desc.(College)
	require.True(t, ok)
	assert.Equal(t, "college-5", *college.CollegeID)
}

func TestAssignSuperAdmin(t *testing.T) {
	admin := models.ActorContext{Role: models.RoleSuperAdmin}

	// Global is the default but requires an explicit year.
	_, err := Assign(admin, Columns{})
	require.Error(t, err)

	desc, err := Assign(admin, Columns{Year: intPtr(3)})
	require.NoError(t, err)
	global, ok := desc.(Global)
	require.True(t, ok)
	assert.Equal(t, 3, *global.Year)
	cols := global.Columns()
	assert.Nil(t, cols.CollegeID)
	assert.Nil(t, cols.DepartmentName)
	assert.Nil(t, cols.SectionID)

	// Narrower kinds keep the requested fields but still validate invariants.
	desc, err = Assign(admin, Columns{Kind: KindSection, CollegeID: strPtr("college-2"), SectionID: strPtr("section-7")})
	require.NoError(t, err)
	section, ok := desc.(Section)
	require.True(t, ok)
	assert.Equal(t, "section-7", section.SectionID)

	_, err = Assign(admin, Columns{Kind: KindSection})
	require.Error(t, err)
}
