package service

import (
	"cmp"

	"github.com/godilite/feedback-server/internal/repository/models"
)

type scoreSum struct {
	Sum   float64
	Count int
}

func (s *scoreSum) add(v float64) {
	s.Sum += v
	s.Count++
}

func (s scoreSum) mean() (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum / float64(s.Count), true
}

// assignmentSet keeps per-assignment block-average sums in first-seen order.
type assignmentSet struct {
	order []AssignmentKey
	sums  map[AssignmentKey]*scoreSum
}

func (a *assignmentSet) add(k AssignmentKey, v float64) {
	if a.sums == nil {
		a.sums = make(map[AssignmentKey]*scoreSum)
	}
	s, ok := a.sums[k]
	if !ok {
		s = &scoreSum{}
		a.sums[k] = s
		a.order = append(a.order, k)
	}
	s.add(v)
}

func (a *assignmentSet) Len() int { return len(a.order) }

// meanOfMeans is the unweighted mean of the per-assignment averages.
func (a *assignmentSet) meanOfMeans() (float64, bool) {
	var total scoreSum
	for _, k := range a.order {
		if m, ok := a.sums[k].mean(); ok {
			total.add(m)
		}
	}
	return total.mean()
}

// AggregationUnit accumulates every rating block that maps to one UnitKey.
// Descriptive fields come from the first block seen.
type AggregationUnit struct {
	Key         UnitKey
	FacultyID   string
	FacultyName string
	SubjectName string
	Division    string
	Class       string
	Batch       string

	TotalFeedbacks int
	TotalScoreSum  float64
	QuestionScores map[string]*scoreSum

	theory    scoreSum
	practical scoreSum

	TheoryUnits    assignmentSet
	PracticalUnits assignmentSet
}

// Aggregation is the transient result of one aggregation run.
type Aggregation struct {
	Strategy GroupingStrategy
	units    map[UnitKey]*AggregationUnit
	order    []UnitKey
}

// Units returns the units in first-seen order.
func (a *Aggregation) Units() []*AggregationUnit {
	out := make([]*AggregationUnit, len(a.order))
	for i, k := range a.order {
		out[i] = a.units[k]
	}
	return out
}

func (a *Aggregation) Unit(k UnitKey) (*AggregationUnit, bool) {
	u, ok := a.units[k]
	return u, ok
}

func (a *Aggregation) Len() int { return len(a.order) }

type AggregateOptions struct {
	// FeedbackType restricts aggregation to one section; empty means all.
	FeedbackType models.FeedbackType
	// Batch drops practical entries of other batches; empty means all.
	Batch string
}

type unitInfo struct {
	facultyID string
	name      string
	subject   string
	division  string
	class     string
	batch     string
}

// Aggregate folds records into units keyed by strategy. It only reads the
// faculty and student references already attached to the records.
func Aggregate(records []models.RatingRecord, strategy GroupingStrategy, opts AggregateOptions) *Aggregation {
	if strategy == nil {
		strategy = ByDivision{}
	}
	agg := &Aggregation{
		Strategy: strategy,
		units:    make(map[UnitKey]*AggregationUnit),
	}

	enabled := func(t models.FeedbackType) bool {
		return opts.FeedbackType == "" || opts.FeedbackType == t
	}

	for i := range records {
		rec := &records[i]

		if enabled(models.FeedbackTheory) {
			for _, e := range rec.Theory {
				if e.Faculty == nil {
					continue
				}
				agg.accumulateEntry(rec, e, models.FeedbackTheory, notApplicable)
			}
		}

		if enabled(models.FeedbackPractical) {
			batch := ""
			if rec.Student != nil {
				batch = rec.Student.PracticalBatch
			}
			if opts.Batch == "" || opts.Batch == batch {
				for _, e := range rec.Practical {
					if e.Faculty == nil {
						continue
					}
					agg.accumulateEntry(rec, e, models.FeedbackPractical, batch)
				}
			}
		}

		if enabled(models.FeedbackLibrary) {
			agg.accumulateSection(rec, models.FeedbackLibrary, libraryUnitName, rec.Library.Ratings)
		}
		if enabled(models.FeedbackFacilities) {
			agg.accumulateSection(rec, models.FeedbackFacilities, facilitiesUnitName, rec.Facilities.Ratings)
		}
	}

	return agg
}

// entrySubject labels an entry with the faculty's current subject and falls
// back to the one recorded at submission.
func entrySubject(f models.FacultyRef, e models.FeedbackEntry) string {
	return cmp.Or(f.SubjectName, e.SubjectName)
}

func (a *Aggregation) accumulateEntry(rec *models.RatingRecord, e models.FeedbackEntry, category models.FeedbackType, batch string) {
	c := entryContext{
		Category: category,
		Faculty:  e.Faculty,
		Subject:  entrySubject(*e.Faculty, e),
		Class:    rec.Class,
		Division: rec.Division,
		Batch:    batch,
	}
	info := unitInfo{
		facultyID: e.Faculty.ID,
		name:      e.Faculty.Name,
		subject:   subject,
		division:  rec.Division,
		class:     rec.Class,
		batch:     batch,
	}
	a.accumulate(a.Strategy.entryKey(c), info, e.Ratings, category, c)
}

func (a *Aggregation) accumulateSection(rec *models.RatingRecord, section models.FeedbackType, name string, ratings models.Ratings) {
	if len(ratings) == 0 {
		return
	}
	key, ok := a.Strategy.sectionKey(section, rec)
	if !ok {
		return
	}
	info := unitInfo{
		name:     name,
		subject:  notApplicable,
		division: rec.Division,
		class:    rec.Class,
		batch:    notApplicable,
	}
	a.accumulate(key, info, ratings, section, entryContext{})
}

func (a *Aggregation) accumulate(key UnitKey, info unitInfo, ratings models.Ratings, category models.FeedbackType, c entryContext) {
	u, ok := a.units[key]
	if !ok {
		u = &AggregationUnit{
			Key:            key,
			FacultyID:      info.facultyID,
			FacultyName:    info.name,
			SubjectName:    info.subject,
			Division:       info.division,
			Class:          info.class,
			Batch:          info.batch,
			QuestionScores: make(map[string]*scoreSum),
		}
		a.units[key] = u
		a.order = append(a.order, key)
	}

	u.TotalFeedbacks++
	if len(ratings) == 0 {
		return
	}

	sum := 0
	for _, v := range ratings {
		sum += v
	}
	blockAverage := float64(sum) / float64(len(ratings))
	u.TotalScoreSum += blockAverage

	switch {
	case a.Strategy.tracksAssignments() && category == models.FeedbackTheory:
		u.TheoryUnits.add(assignmentOf(c), blockAverage)
	case a.Strategy.tracksAssignments() && category == models.FeedbackPractical:
		u.PracticalUnits.add(assignmentOf(c), blockAverage)
	case category == models.FeedbackTheory:
		u.theory.add(blockAverage)
	case category == models.FeedbackPractical:
		u.practical.add(blockAverage)
	}

	for q, v := range ratings {
		s, ok := u.QuestionScores[q]
		if !ok {
			s = &scoreSum{}
			u.QuestionScores[q] = s
		}
		s.add(float64(v))
	}
}
