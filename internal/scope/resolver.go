package scope

import (
	"fmt"
	"strings"

	"github.com/svnapro/campuscore-api/internal/models"
)

// IsVisible decides whether the actor may see content carrying the given
// descriptor. The guard clauses run in a fixed order; the first matching rule
// decides. Reordering them changes behaviour (checking the year gate before
// the institution_student bypass would incorrectly restrict that role), so
// keep this a flat ordered list.
//
// A nil descriptor (a row whose scope columns failed to parse) is never
// visible: visibility bugs fail closed.
func IsVisible(actor models.ActorContext, desc Descriptor) bool {
	if desc == nil {
		return false
	}

	// 1. Super admins see everything for management purposes.
	if actor.Role == models.RoleSuperAdmin {
		return true
	}

	// 2. Institution students are a separate, flatter eligibility class with
	// no org or year filtering.
	if actor.Role == models.RoleInstitutionStudent {
		return true
	}

	// 3. Year gate. The year dimension is meaningful only for college
	// students; staff roles pass straight to the org gate.
	if actor.Role == models.RoleStudent {
		if !yearGate(actor, desc) {
			return false
		}
	}

	// 4. Org gate, branching on the descriptor kind.
	switch d := desc.(type) {
	case Global:
		return true
	case College:
		// A missing owning college is a data-quality fallback, not a
		// security boundary: treat as global rather than denying everyone.
		if d.CollegeID == nil {
			return true
		}
		return actor.CollegeID != nil && *actor.CollegeID == *d.CollegeID
	case Department:
		if actor.CollegeID == nil || *actor.CollegeID != d.CollegeID {
			return false
		}
		return departmentMatches(actor.DepartmentName, d.Name)
	case Section:
		if !collegeUnrestricted(actor.CollegeID, d.CollegeID) {
			return false
		}
		// Identity match only; never by display name.
		return actor.SectionID != nil && *actor.SectionID == d.SectionID
	}

	// 5. Unknown descriptor kinds are never visible.
	return false
}

// yearGate applies the student year rules. Content for the student's year or
// earlier is visible (a "<=" relation); an unknown student year conservatively
// restricts the student to global content. A declared year outside the
// canonical range hides the row rather than widening it, matching the SQL
// compilation below.
func yearGate(actor models.ActorContext, desc Descriptor) bool {
	if declared := desc.DeclaredYear(); declared != nil {
		descYear, descOK := NormalizeYear(*declared)
		if !descOK {
			return false
		}
		if actor.Year != nil {
			if actorYear, ok := NormalizeYear(*actor.Year); ok && descYear > actorYear {
				return false
			}
		}
	}
	if actor.Year == nil && desc.Kind() != KindGlobal {
		return false
	}
	return true
}

// departmentMatches implements the department-name rule: case-insensitive
// equality, or both sides null meaning "any department within the college".
func departmentMatches(actorName, descName *string) bool {
	if actorName == nil && descName == nil {
		return true
	}
	if actorName == nil || descName == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*actorName), strings.TrimSpace(*descName))
}

// collegeUnrestricted treats a null descriptor college as "unrestricted at
// this level" while still requiring identity when one is declared.
func collegeUnrestricted(actorCollege, descCollege *string) bool {
	if descCollege == nil {
		return true
	}
	return actorCollege != nil && *actorCollege == *descCollege
}

// Predicate compiles the actor's visibility rules once for filtering a
// collection in memory.
func Predicate(actor models.ActorContext) func(Descriptor) bool {
	return func(desc Descriptor) bool {
		return IsVisible(actor, desc)
	}
}

// SQLFilter compiles the same rules into a WHERE fragment over the flattened
// scope columns, for combining with normal filters in listing queries.
// prefix is the table alias ("ci." etc.), argIndex is the 1-based index the
// first placeholder should use. The returned fragment is always safe to AND
// into a larger clause.
func SQLFilter(actor models.ActorContext, prefix string, argIndex int) (string, []interface{}) {
	if actor.Role == models.RoleSuperAdmin || actor.Role == models.RoleInstitutionStudent {
		return "1=1", nil
	}

	// Unknown-year students fall back to seeing only global content.
	if actor.Role == models.RoleStudent && actor.Year == nil {
		return fmt.Sprintf("%sscope_kind = '%s'", prefix, KindGlobal), nil
	}

	args := []interface{}{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", argIndex+len(args)-1)
	}

	branches := []string{fmt.Sprintf("%sscope_kind = '%s'", prefix, KindGlobal)}

	if actor.CollegeID != nil {
		college := next(*actor.CollegeID)
		branches = append(branches, fmt.Sprintf(
			"(%sscope_kind = '%s' AND (%scollege_id IS NULL OR %scollege_id = %s))",
			prefix, KindCollege, prefix, prefix, college))

		if actor.DepartmentName != nil {
			dept := next(strings.TrimSpace(*actor.DepartmentName))
			branches = append(branches, fmt.Sprintf(
				"(%sscope_kind = '%s' AND %scollege_id = %s AND LOWER(%sdepartment_name) = LOWER(%s))",
				prefix, KindDepartment, prefix, college, prefix, dept))
		} else {
			branches = append(branches, fmt.Sprintf(
				"(%sscope_kind = '%s' AND %scollege_id = %s AND %sdepartment_name IS NULL)",
				prefix, KindDepartment, prefix, college, prefix))
		}

		if actor.SectionID != nil {
			section := next(*actor.SectionID)
			branches = append(branches, fmt.Sprintf(
				"(%sscope_kind = '%s' AND (%scollege_id IS NULL OR %scollege_id = %s) AND %ssection_id = %s)",
				prefix, KindSection, prefix, prefix, college, prefix, section))
		}
	} else {
		// Actors without a college still see college-kind rows whose owning
		// college is missing (the data-quality global fallback).
		branches = append(branches, fmt.Sprintf(
			"(%sscope_kind = '%s' AND %scollege_id IS NULL)", prefix, KindCollege, prefix))
		if actor.SectionID != nil {
			section := next(*actor.SectionID)
			branches = append(branches, fmt.Sprintf(
				"(%sscope_kind = '%s' AND %scollege_id IS NULL AND %ssection_id = %s)",
				prefix, KindSection, prefix, prefix, section))
		}
	}

	clause := "(" + strings.Join(branches, " OR ") + ")"

	if actor.Role == models.RoleStudent && actor.Year != nil {
		if year, ok := NormalizeYear(*actor.Year); ok {
			yearArg := next(year)
			clause = fmt.Sprintf("%s AND (%syear IS NULL OR (%syear >= %d AND %syear <= %s))",
				clause, prefix, prefix, MinYear, prefix, yearArg)
		}
	}

	return clause, args
}
