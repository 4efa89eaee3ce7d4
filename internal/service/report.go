package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/godilite/feedback-server/internal/repository/models"
)

const (
	dbTimeout = 1 * time.Second
)

// ReportService builds the admin reports over stored feedback.
type ReportService struct {
	repo     FeedbackRepository
	sessions *SessionService
	logger   *zap.Logger
}

// NewReportService creates a new ReportService. sessions may be nil, in
// which case analysis reports carry no active round.
func NewReportService(repo FeedbackRepository, sessions *SessionService, logger *zap.Logger) *ReportService {
	if repo == nil {
		panic("repository must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &ReportService{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
	}
}

func requireAdmin(p Principal) error {
	if p.Role != RoleAdmin {
		return fmt.Errorf("%w: reports are restricted to admins", ErrAccessScope)
	}
	return nil
}

// records scopes the filters to the principal and loads the matching records.
func (s *ReportService) records(ctx context.Context, p Principal, f Filters) ([]models.RatingRecord, Predicate, error) {
	if err := requireAdmin(p); err != nil {
		return nil, Predicate{}, err
	}
	pred, err := BuildPredicate(p, f)
	if err != nil {
		return nil, Predicate{}, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	recs, err := s.repo.FindRecords(dbCtx, pred.Record)
	if err != nil {
		s.logger.Error("failed to load feedback records", zap.Error(err))
		return nil, Predicate{}, storageFailure(err)
	}
	return recs, pred, nil
}

// SummaryReport aggregates the scoped records under the requested grouping.
func (s *ReportService) SummaryReport(ctx context.Context, p Principal, f Filters, groupBy string) ([]ReportRow, error) {
	strategy, err := ParseGroupBy(groupBy)
	if err != nil {
		return nil, err
	}
	recs, pred, err := s.records(ctx, p, f)
	if err != nil {
		return nil, err
	}

	agg := Aggregate(recs, strategy, AggregateOptions{FeedbackType: pred.FeedbackType, Batch: pred.Batch})
	rows := Finalize(agg)

	s.logger.Debug("summary report built",
		zap.String("groupBy", string(strategy.GroupBy())),
		zap.Int("records", len(recs)),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// AnalysisReport runs the faculty-level standard deviation analysis. The
// session and the records load concurrently.
func (s *ReportService) AnalysisReport(ctx context.Context, p Principal, f Filters) (AnalysisReport, error) {
	var (
		recs []models.RatingRecord
		pred Predicate
		sess Session
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recs, pred, err = s.records(gctx, p, f)
		return err
	})
	if s.sessions != nil {
		g.Go(func() error {
			var err error
			sess, err = s.sessions.Current(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return AnalysisReport{}, err
	}

	agg := Aggregate(recs, ByFaculty{}, AggregateOptions{FeedbackType: pred.FeedbackType, Batch: pred.Batch})
	analysis := Analyze(Finalize(agg))

	s.logger.Debug("analysis report built",
		zap.Int("rows", len(analysis.Rows)),
		zap.Int("filledCells", analysis.FilledCells),
		zap.Float64("standardDeviation", analysis.StandardDeviation))
	return AnalysisReport{ActiveRound: sess.ActiveRound, Analysis: analysis}, nil
}

// FacultyDetail returns every entry referencing facultyID. An empty or "All"
// round matches every round.
func (s *ReportService) FacultyDetail(ctx context.Context, p Principal, facultyID, round string) (FacultyDetail, error) {
	if err := requireAdmin(p); err != nil {
		return FacultyDetail{}, err
	}
	if strings.TrimSpace(facultyID) == "" {
		return FacultyDetail{}, &ValidationError{Fields: []FieldError{{Field: "facultyId", Message: "is required"}}}
	}
	if !isSet(round) {
		round = ""
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	faculty, err := s.repo.GetFaculty(dbCtx, facultyID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return FacultyDetail{}, fmt.Errorf("%w: faculty %s", ErrNotFound, facultyID)
		}
		s.logger.Error("failed to load faculty", zap.String("faculty", facultyID), zap.Error(err))
		return FacultyDetail{}, storageFailure(err)
	}
	if !p.CanAccess(faculty.Department) {
		return FacultyDetail{}, fmt.Errorf("%w: faculty %s belongs to %s", ErrAccessScope, facultyID, faculty.Department)
	}

	recs, err := s.repo.FindRecordsByFaculty(dbCtx, facultyID, strings.TrimSpace(round))
	if err != nil {
		s.logger.Error("failed to load faculty records", zap.String("faculty", facultyID), zap.Error(err))
		return FacultyDetail{}, storageFailure(err)
	}

	detail := FacultyDetail{
		FacultyID:      faculty.ID,
		FacultyName:    faculty.Name,
		SubjectName:    faculty.SubjectName,
		Department:     faculty.Department,
		Entries:        make([]DetailEntry, 0),
		AverageRatings: make(map[string]float64),
	}

	sums := make(map[string]*scoreSum)
	collect := func(rec *models.RatingRecord, entries []models.FeedbackEntry, t models.FeedbackType) {
		for _, e := range entries {
			if e.FacultyID != facultyID {
				continue
			}
			detail.Entries = append(detail.Entries, DetailEntry{
				Student:      detailStudent(rec),
				FeedbackType: t,
				SubjectName:  entrySubject(faculty, e),
				Round:        rec.Round,
				Ratings:      e.Ratings,
				Comments:     e.Comments,
				SubmittedAt:  rec.SubmittedAt,
			})
			for q, v := range e.Ratings {
				sum, ok := sums[q]
				if !ok {
					sum = &scoreSum{}
					sums[q] = sum
				}
				sum.add(float64(v))
			}
		}
	}
	for i := range recs {
		collect(&recs[i], recs[i].Theory, models.FeedbackTheory)
		collect(&recs[i], recs[i].Practical, models.FeedbackPractical)
	}

	for q, sum := range sums {
		if m, ok := sum.mean(); ok {
			detail.AverageRatings[q] = round2(m)
		}
	}
	return detail, nil
}

func detailStudent(rec *models.RatingRecord) DetailStudent {
	st := DetailStudent{ID: rec.StudentID, Class: rec.Class, Division: rec.Division}
	if rec.Student != nil {
		st.Name = rec.Student.Name
		st.GRNo = rec.Student.GRNo
		st.Username = rec.Student.Username
		st.PracticalBatch = rec.Student.PracticalBatch
	}
	return st
}

// Export flattens the scoped records into one row per rating block.
func (s *ReportService) Export(ctx context.Context, p Principal, f Filters) ([]ExportRow, error) {
	recs, pred, err := s.records(ctx, p, f)
	if err != nil {
		return nil, err
	}
	rows := BuildExportRows(recs, AggregateOptions{FeedbackType: pred.FeedbackType, Batch: pred.Batch})
	s.logger.Debug("export built", zap.Int("records", len(recs)), zap.Int("rows", len(rows)))
	return rows, nil
}

type departmentSums struct {
	submissions int
	sections    map[models.FeedbackType]*scoreSum
}

// DepartmentSummary averages the rating blocks of each department per
// section. OverallAverage is the mean of the section averages present.
func (s *ReportService) DepartmentSummary(ctx context.Context, p Principal, f Filters) ([]DepartmentAverages, error) {
	recs, pred, err := s.records(ctx, p, f)
	if err != nil {
		return nil, err
	}

	opts := AggregateOptions{FeedbackType: pred.FeedbackType, Batch: pred.Batch}
	byDept := make(map[string]*departmentSums)
	for _, row := range BuildExportRows(recs, opts) {
		d, ok := byDept[row.Department]
		if !ok {
			d = &departmentSums{sections: make(map[models.FeedbackType]*scoreSum)}
			byDept[row.Department] = d
		}
		sum, ok := d.sections[row.FeedbackType]
		if !ok {
			sum = &scoreSum{}
			d.sections[row.FeedbackType] = sum
		}
		if avg, ok := blockAverage(row.Ratings); ok {
			sum.add(avg)
		}
	}
	for i := range recs {
		if d, ok := byDept[recs[i].Department]; ok {
			d.submissions++
		}
	}

	depts := make([]string, 0, len(byDept))
	for name := range byDept {
		depts = append(depts, name)
	}
	slices.Sort(depts)

	out := make([]DepartmentAverages, 0, len(depts))
	for _, name := range depts {
		d := byDept[name]
		section := func(t models.FeedbackType) *float64 {
			if sum, ok := d.sections[t]; ok {
				return roundedOrNil(sum.mean())
			}
			return nil
		}
		row := DepartmentAverages{
			Department:        name,
			Submissions:       d.submissions,
			TheoryAverage:     section(models.FeedbackTheory),
			PracticalAverage:  section(models.FeedbackPractical),
			LibraryAverage:    section(models.FeedbackLibrary),
			FacilitiesAverage: section(models.FeedbackFacilities),
		}
		var overall scoreSum
		for _, v := range []*float64{row.TheoryAverage, row.PracticalAverage, row.LibraryAverage, row.FacilitiesAverage} {
			if v != nil {
				overall.add(*v)
			}
		}
		row.OverallAverage = roundedOrNil(overall.mean())
		out = append(out, row)
	}
	return out, nil
}

func blockAverage(r models.Ratings) (float64, bool) {
	var s scoreSum
	for _, v := range r {
		s.add(float64(v))
	}
	return s.mean()
}
