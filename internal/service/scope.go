package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/godilite/feedback-server/internal/repository/models"
)

// AllScope is the sentinel meaning "no restriction" for departments and
// query filters.
const AllScope = "All"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// Principal is the authenticated caller as supplied by the auth layer.
type Principal struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Department string `json:"department"`
}

// Unrestricted reports whether the principal may see every department.
func (p Principal) Unrestricted() bool { return p.Department == AllScope }

// CanAccess reports whether department is inside the principal's scope.
func (p Principal) CanAccess(department string) bool {
	return p.Unrestricted() || p.Department == department
}

// Filters are the optional query parameters of every report.
type Filters struct {
	Department    string `json:"department,omitempty"`
	Class         string `json:"class,omitempty"`
	Division      string `json:"division,omitempty"`
	FeedbackType  string `json:"feedbackType,omitempty"`
	FeedbackRound string `json:"feedbackRound,omitempty"`
	FromDate      string `json:"fromDate,omitempty"`
	ToDate        string `json:"toDate,omitempty"`
	Batch         string `json:"batch,omitempty"`
}

// Predicate is the result of scoping a principal's query. Record goes to the
// store; FeedbackType and Batch are applied while aggregating.
type Predicate struct {
	Record       models.RecordFilter
	FeedbackType models.FeedbackType
	Batch        string
}

// BuildPredicate turns a principal and query filters into a predicate. A
// department-scoped principal is always pinned to its own department.
func BuildPredicate(p Principal, f Filters) (Predicate, error) {
	var pred Predicate

	switch {
	case strings.TrimSpace(p.Department) == "":
		return Predicate{}, fmt.Errorf("%w: principal has no department scope", ErrAccessScope)
	case !p.Unrestricted():
		pred.Record.Department = p.Department
	case isSet(f.Department):
		pred.Record.Department = strings.TrimSpace(f.Department)
	}

	if isSet(f.Class) {
		pred.Record.Class = strings.TrimSpace(f.Class)
	}
	if isSet(f.Division) {
		pred.Record.Division = strings.TrimSpace(f.Division)
	}
	if isSet(f.FeedbackRound) {
		pred.Record.Round = strings.TrimSpace(f.FeedbackRound)
	}
	if isSet(f.Batch) {
		pred.Batch = strings.TrimSpace(f.Batch)
	}

	ft, err := ParseFeedbackType(f.FeedbackType)
	if err != nil {
		return Predicate{}, err
	}
	pred.FeedbackType = ft

	if strings.TrimSpace(f.FromDate) != "" {
		from, err := parseDay(f.FromDate)
		if err != nil {
			return Predicate{}, invalidFilter("fromDate %q: %v", f.FromDate, err)
		}
		pred.Record.From = from
	}
	if strings.TrimSpace(f.ToDate) != "" {
		to, err := parseDay(f.ToDate)
		if err != nil {
			return Predicate{}, invalidFilter("toDate %q: %v", f.ToDate, err)
		}
		pred.Record.To = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if !pred.Record.From.IsZero() && !pred.Record.To.IsZero() && pred.Record.From.After(pred.Record.To) {
		return Predicate{}, invalidFilter("fromDate %s is after toDate %s", f.FromDate, f.ToDate)
	}

	return pred, nil
}

// ParseFeedbackType accepts an empty value or "All" as "every section".
func ParseFeedbackType(v string) (models.FeedbackType, error) {
	v = strings.TrimSpace(v)
	if !isSet(v) {
		return "", nil
	}
	switch ft := models.FeedbackType(v); ft {
	case models.FeedbackTheory, models.FeedbackPractical, models.FeedbackLibrary, models.FeedbackFacilities:
		return ft, nil
	}
	return "", invalidFilter("unknown feedbackType %q", v)
}

// parseDay returns the UTC start of the day named by a YYYY-MM-DD date or an
// RFC 3339 timestamp.
func parseDay(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		ts, err2 := time.Parse(time.RFC3339, v)
		if err2 != nil {
			return time.Time{}, err
		}
		t = ts.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != AllScope
}
