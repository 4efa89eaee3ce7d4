package service

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/godilite/feedback-server/internal/repository/models"
)

// ExportRow is one rating block flattened for spreadsheet export.
type ExportRow struct {
	StudentGrNo     string              `json:"studentGrNo"`
	StudentUsername string              `json:"studentUsername"`
	FacultyName     string              `json:"facultyName"`
	Subject         string              `json:"subject"`
	Department      string              `json:"department"`
	Class           string              `json:"class"`
	Division        string              `json:"division"`
	FeedbackType    models.FeedbackType `json:"feedbackType"`
	Ratings         models.Ratings      `json:"ratings"`
	Comments        string              `json:"comments"`
	SubmittedAt     time.Time           `json:"submittedAt"`
}

// BuildExportRows flattens records with the same section and batch rules the
// aggregator applies, so the rows re-aggregate to the summary figures.
func BuildExportRows(records []models.RatingRecord, opts AggregateOptions) []ExportRow {
	rows := make([]ExportRow, 0, len(records))
	enabled := func(t models.FeedbackType) bool {
		return opts.FeedbackType == "" || opts.FeedbackType == t
	}

	for i := range records {
		rec := &records[i]
		base := ExportRow{
			Department:  rec.Department,
			Class:       rec.Class,
			Division:    rec.Division,
			SubmittedAt: rec.SubmittedAt,
		}
		batch := ""
		if rec.Student != nil {
			base.StudentGrNo = rec.Student.GRNo
			base.StudentUsername = rec.Student.Username
			batch = rec.Student.PracticalBatch
		}

		entryRows := func(entries []models.FeedbackEntry, t models.FeedbackType) {
			for _, e := range entries {
				if e.Faculty == nil {
					continue
				}
				row := base
				row.FacultyName = e.Faculty.Name
				row.Subject = entrySubject(*e.Faculty, e)
				row.FeedbackType = t
				row.Ratings = e.Ratings
				row.Comments = e.Comments
				rows = append(rows, row)
			}
		}
		sectionRow := func(s models.SectionRatings, t models.FeedbackType, name string) {
			if len(s.Ratings) == 0 {
				return
			}
			row := base
			row.FacultyName = name
			row.Subject = notApplicable
			row.FeedbackType = t
			row.Ratings = s.Ratings
			row.Comments = s.Comments
			rows = append(rows, row)
		}

		if enabled(models.FeedbackTheory) {
			entryRows(rec.Theory, models.FeedbackTheory)
		}
		if enabled(models.FeedbackPractical) && (opts.Batch == "" || opts.Batch == batch) {
			entryRows(rec.Practical, models.FeedbackPractical)
		}
		if enabled(models.FeedbackLibrary) {
			sectionRow(rec.Library, models.FeedbackLibrary, libraryUnitName)
		}
		if enabled(models.FeedbackFacilities) {
			sectionRow(rec.Facilities, models.FeedbackFacilities, facilitiesUnitName)
		}
	}
	return rows
}

var exportLeadColumns = []string{
	"studentGrNo", "studentUsername", "facultyName", "subject",
	"department", "class", "division", "feedbackType",
}

// WriteCSV writes rows with one column per question key seen in any row.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	seen := make(map[string]struct{})
	var questions []string
	for _, r := range rows {
		for q := range r.Ratings {
			if _, ok := seen[q]; !ok {
				seen[q] = struct{}{}
				questions = append(questions, q)
			}
		}
	}
	slices.SortFunc(questions, compareQuestionKeys)

	cw := csv.NewWriter(w)
	header := slices.Concat(exportLeadColumns, questions, []string{"comments", "submittedAt"})
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		rec := []string{
			r.StudentGrNo, r.StudentUsername, r.FacultyName, r.Subject,
			r.Department, r.Class, r.Division, string(r.FeedbackType),
		}
		for _, q := range questions {
			v, ok := r.Ratings[q]
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.Itoa(v))
		}
		rec = append(rec, r.Comments, r.SubmittedAt.UTC().Format(time.RFC3339))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// compareQuestionKeys orders q2 before q10.
func compareQuestionKeys(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}
