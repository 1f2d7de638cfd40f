package scope

import (
	"strings"

	"github.com/svnapro/campuscore-api/internal/models"
	appErrors "github.com/svnapro/campuscore-api/pkg/errors"
)

// Kind is the organisational level a content item is restricted to.
type Kind string

const (
	KindGlobal     Kind = "GLOBAL"
	KindCollege    Kind = "COLLEGE"
	KindDepartment Kind = "DEPARTMENT"
	KindSection    Kind = "SECTION"
)

// Valid reports whether the kind is one of the supported values.
func (k Kind) Valid() bool {
	switch k {
	case KindGlobal, KindCollege, KindDepartment, KindSection:
		return true
	default:
		return false
	}
}

// Descriptor is the declared visibility of a content item. It is a closed
// union with one case per kind so that exactly the fields meaningful for that
// kind exist; the flat nullable-column form only appears at the persistence
// boundary (Columns / FromColumns).
type Descriptor interface {
	Kind() Kind
	// DeclaredYear is the year restriction; nil means visible to all years
	// at the resolved scope.
	DeclaredYear() *int
	// Columns flattens the descriptor back to its persistence form.
	Columns() Columns
}

// Global content is visible to everyone irrespective of org position,
// subject only to the year gate.
type Global struct {
	Year *int
}

func (Global) Kind() Kind          { return KindGlobal }
func (g Global) DeclaredYear() *int { return g.Year }
func (g Global) Columns() Columns  { return Columns{Kind: KindGlobal, Year: g.Year} }

// College restricts content to one college. A nil CollegeID is a
// data-quality fallback treated as global, not a security boundary.
type College struct {
	CollegeID *string
	Year      *int
}

func (College) Kind() Kind          { return KindCollege }
func (c College) DeclaredYear() *int { return c.Year }
func (c College) Columns() Columns {
	return Columns{Kind: KindCollege, CollegeID: c.CollegeID, Year: c.Year}
}

// Department restricts content to a department within a college. A nil Name
// means any department within the college.
type Department struct {
	CollegeID string
	Name      *string
	Year      *int
}

func (Department) Kind() Kind          { return KindDepartment }
func (d Department) DeclaredYear() *int { return d.Year }
func (d Department) Columns() Columns {
	college := d.CollegeID
	return Columns{Kind: KindDepartment, CollegeID: &college, DepartmentName: d.Name, Year: d.Year}
}

// Section restricts content to one section, matched by id only. Section
// names collide across departments so name-based matching is never used.
type Section struct {
	CollegeID *string
	SectionID string
	Year      *int
}

func (Section) Kind() Kind          { return KindSection }
func (s Section) DeclaredYear() *int { return s.Year }
func (s Section) Columns() Columns {
	section := s.SectionID
	return Columns{Kind: KindSection, CollegeID: s.CollegeID, SectionID: &section, Year: s.Year}
}

// Columns is the flattened persistence form of a descriptor.
type Columns struct {
	Kind           Kind
	CollegeID      *string
	DepartmentName *string
	SectionID      *string
	Year           *int
}

// FromColumns parses stored scope columns into a typed descriptor. Rows that
// violate the per-kind invariants (a section scope without a section id, a
// department scope without an owning college) yield an error; resolver
// callers must treat such rows as never visible.
func FromColumns(cols Columns) (Descriptor, error) {
	switch cols.Kind {
	case KindGlobal:
		return Global{Year: cols.Year}, nil
	case KindCollege:
		return College{CollegeID: cols.CollegeID, Year: cols.Year}, nil
	case KindDepartment:
		if cols.CollegeID == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "department scope requires an owning college")
		}
		return Department{CollegeID: *cols.CollegeID, Name: cols.DepartmentName, Year: cols.Year}, nil
	case KindSection:
		if cols.SectionID == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "section scope requires a section id")
		}
		return Section{CollegeID: cols.CollegeID, SectionID: *cols.SectionID, Year: cols.Year}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrScopeRequired, "unknown scope kind")
	}
}

// ParseKind normalises a client-supplied kind string.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	return k, k.Valid()
}

// Assign resolves the scope a newly created content item is stored with.
// Non-super-admin creators have the org fields forced to their own position;
// client-supplied values for those fields are ignored. Super admins default
// to global, and global content always requires an explicit year.
func Assign(actor models.ActorContext, requested Columns) (Descriptor, error) {
	if actor.Role == models.RoleSuperAdmin {
		return assignSuperAdmin(requested)
	}

	kind := requested.Kind
	if kind == "" || kind == KindGlobal {
		// Only super admins publish network-wide; everyone else is pinned
		// to their own college at the widest.
		kind = KindCollege
	}

	switch kind {
	case KindCollege:
		if actor.CollegeID == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "creator has no college to scope to")
		}
		return College{CollegeID: actor.CollegeID, Year: requested.Year}, nil
	case KindDepartment:
		if actor.CollegeID == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "creator has no college to scope to")
		}
		if actor.DepartmentName == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "creator has no department to scope to")
		}
		return Department{CollegeID: *actor.CollegeID, Name: actor.DepartmentName, Year: requested.Year}, nil
	case KindSection:
		if actor.CollegeID == nil || actor.SectionID == nil {
			return nil, appErrors.Clone(appErrors.ErrScopeRequired, "creator has no section to scope to")
		}
		return Section{CollegeID: actor.CollegeID, SectionID: *actor.SectionID, Year: requested.Year}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrScopeRequired, "unknown scope kind")
	}
}

func assignSuperAdmin(requested Columns) (Descriptor, error) {
	kind := requested.Kind
	if kind == "" {
		kind = KindGlobal
	}
	if kind == KindGlobal {
		if requested.Year == nil {
			return nil, appErrors.ErrYearRequired
		}
		// Org fields are forced to null on global content regardless of
		// caller input.
		return Global{Year: requested.Year}, nil
	}
	return FromColumns(Columns{
		Kind:           kind,
		CollegeID:      requested.CollegeID,
		DepartmentName: requested.DepartmentName,
		SectionID:      requested.SectionID,
		Year:           requested.Year,
	})
}
