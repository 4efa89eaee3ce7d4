package service

import (
	"strings"

	"github.com/godilite/feedback-server/internal/repository/models"
)

type GroupBy string

const (
	GroupByDivision GroupBy = "division"
	GroupByClass    GroupBy = "class"
	GroupByFaculty  GroupBy = "faculty"
)

const (
	libraryUnitName    = "Library"
	facilitiesUnitName = "Other Facilities"
	notApplicable      = "-"
)

// UnitKey identifies an aggregation unit. Each strategy fills only the fields
// that take part in its identity, so two keys are equal exactly when the
// strategy considers the submissions to belong to the same unit.
type UnitKey struct {
	Section   models.FeedbackType
	FacultyID string
	Faculty   string
	Class     string
	Division  string
	Subject   string
	Batch     string
}

// AssignmentKey is one teaching assignment of a faculty member.
type AssignmentKey struct {
	Class    string
	Division string
	Subject  string
	Batch    string
}

// entryContext carries everything a strategy may need to key a theory or
// practical entry.
type entryContext struct {
	Category models.FeedbackType
	Faculty  *models.FacultyRef
	Subject  string
	Class    string
	Division string
	Batch    string
}

// GroupingStrategy decides which unit a rating block contributes to. The
// implementations are ByDivision, ByClass and ByFaculty.
type GroupingStrategy interface {
	GroupBy() GroupBy
	entryKey(c entryContext) UnitKey
	// sectionKey keys library and facilities blocks; ok is false when the
	// strategy does not report those sections.
	sectionKey(section models.FeedbackType, rec *models.RatingRecord) (key UnitKey, ok bool)
	// tracksAssignments selects per-assignment averaging of the theory and
	// practical averages instead of a running average.
	tracksAssignments() bool
}

// ByDivision groups faculty entries per faculty and student division, with
// practical entries further split by batch.
type ByDivision struct{}

func (ByDivision) GroupBy() GroupBy { return GroupByDivision }

func (ByDivision) entryKey(c entryContext) UnitKey {
	k := UnitKey{Section: c.Category, FacultyID: c.Faculty.ID, Division: c.Division}
	if c.Category == models.FeedbackPractical {
		k.Batch = c.Batch
	}
	return k
}

func (ByDivision) sectionKey(section models.FeedbackType, rec *models.RatingRecord) (UnitKey, bool) {
	return UnitKey{Section: section, Division: rec.Division}, true
}

func (ByDivision) tracksAssignments() bool { return false }

// ByClass groups faculty entries per faculty, class and subject, with
// practical entries further split by batch.
type ByClass struct{}

func (ByClass) GroupBy() GroupBy { return GroupByClass }

func (ByClass) entryKey(c entryContext) UnitKey {
	k := UnitKey{Section: c.Category, FacultyID: c.Faculty.ID, Class: c.Class, Subject: c.Subject}
	if c.Category == models.FeedbackPractical {
		k.Batch = c.Batch
	}
	return k
}

func (ByClass) sectionKey(section models.FeedbackType, rec *models.RatingRecord) (UnitKey, bool) {
	return UnitKey{Section: section, Class: rec.Class}, true
}

func (ByClass) tracksAssignments() bool { return false }

// ByFaculty merges every entry sharing a faculty display name into one unit,
// theory and practical alike. Library and facilities are not reported.
type ByFaculty struct{}

func (ByFaculty) GroupBy() GroupBy { return GroupByFaculty }

func (ByFaculty) entryKey(c entryContext) UnitKey {
	return UnitKey{Faculty: c.Faculty.Name}
}

func (ByFaculty) sectionKey(models.FeedbackType, *models.RatingRecord) (UnitKey, bool) {
	return UnitKey{}, false
}

func (ByFaculty) tracksAssignments() bool { return true }

// ParseGroupBy maps a request value to its strategy; empty selects ByDivision.
func ParseGroupBy(v string) (GroupingStrategy, error) {
	switch GroupBy(strings.TrimSpace(v)) {
	case "", GroupByDivision:
		return ByDivision{}, nil
	case GroupByClass:
		return ByClass{}, nil
	case GroupByFaculty:
		return ByFaculty{}, nil
	}
	return nil, invalidFilter("unknown groupBy %q", v)
}

// assignmentOf derives the teaching assignment from the faculty registration
// the entry points at, so students of different divisions sharing one
// registered assignment (electives) land in the same bucket.
func assignmentOf(c entryContext) AssignmentKey {
	return AssignmentKey{
		Class:    c.Faculty.Class,
		Division: c.Faculty.Division,
		Subject:  c.Subject,
		Batch:    c.Batch,
	}
}
