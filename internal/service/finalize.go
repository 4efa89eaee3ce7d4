package service

import "math"

// ReportRow is one finalized aggregation unit.
type ReportRow struct {
	FacultyID              string             `json:"facultyId"`
	FacultyName            string             `json:"facultyName"`
	SubjectName            string             `json:"subjectName"`
	Division               string             `json:"division"`
	Class                  string             `json:"class"`
	Batch                  string             `json:"batch"`
	TotalFeedbacks         int                `json:"totalFeedbacks"`
	AverageRating          float64            `json:"averageRating"`
	TheoryAverage          *float64           `json:"theoryAverage"`
	PracticalAverage       *float64           `json:"practicalAverage"`
	QuestionAverageRatings map[string]float64 `json:"questionAverageRatings"`
}

// Finalize converts units into rows, preserving first-seen unit order.
func Finalize(agg *Aggregation) []ReportRow {
	rows := make([]ReportRow, 0, agg.Len())
	for _, u := range agg.Units() {
		row := ReportRow{
			FacultyID:              u.FacultyID,
			FacultyName:            u.FacultyName,
			SubjectName:            u.SubjectName,
			Division:               u.Division,
			Class:                  u.Class,
			Batch:                  u.Batch,
			TotalFeedbacks:         u.TotalFeedbacks,
			QuestionAverageRatings: make(map[string]float64, len(u.QuestionScores)),
		}

		for q, s := range u.QuestionScores {
			if m, ok := s.mean(); ok {
				row.QuestionAverageRatings[q] = round2(m)
			}
		}

		if u.TotalFeedbacks > 0 {
			row.AverageRating = round2(u.TotalScoreSum / float64(u.TotalFeedbacks))
		}

		if agg.Strategy.tracksAssignments() {
			row.TheoryAverage = roundedOrNil(u.TheoryUnits.meanOfMeans())
			row.PracticalAverage = roundedOrNil(u.PracticalUnits.meanOfMeans())
		} else {
			row.TheoryAverage = roundedOrNil(u.theory.mean())
			row.PracticalAverage = roundedOrNil(u.practical.mean())
		}

		rows = append(rows, row)
	}
	return rows
}

// AnalysisRow extends a faculty row with its deviation from the grand mean.
type AnalysisRow struct {
	ReportRow
	Mean             float64 `json:"mean"`
	Deviation        float64 `json:"deviation"`
	SquaredDeviation float64 `json:"squaredDeviation"`
}

// Analysis is the standard-deviation report over faculty rows.
type Analysis struct {
	Rows                []AnalysisRow `json:"rows"`
	FilledCells         int           `json:"filledCells"`
	GrandMean           float64       `json:"grandMean"`
	SumSquaredDeviation float64       `json:"sumSquaredDeviation"`
	StandardDeviation   float64       `json:"standardDeviation"`
}

// Analyze computes each row's mean of its theory and practical averages and
// the standard deviation of those means. The divisor is the number of filled
// theory/practical cells across all rows, not the number of rows.
func Analyze(rows []ReportRow) Analysis {
	out := Analysis{Rows: make([]AnalysisRow, len(rows))}

	var means scoreSum
	for i, r := range rows {
		var cells scoreSum
		for _, v := range []*float64{r.TheoryAverage, r.PracticalAverage} {
			if v != nil {
				cells.add(*v)
			}
		}
		out.FilledCells += cells.Count

		x, _ := cells.mean()
		out.Rows[i] = AnalysisRow{ReportRow: r, Mean: x}
		if x > 0 {
			means.add(x)
		}
	}

	grandMean, ok := means.mean()
	if !ok {
		return out
	}
	out.GrandMean = grandMean

	for i := range out.Rows {
		row := &out.Rows[i]
		if row.Mean <= 0 {
			continue
		}
		row.Deviation = row.Mean - grandMean
		row.SquaredDeviation = row.Deviation * row.Deviation
		out.SumSquaredDeviation += row.SquaredDeviation
	}

	if out.FilledCells > 0 {
		out.StandardDeviation = math.Sqrt(out.SumSquaredDeviation / float64(out.FilledCells))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundedOrNil(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	r := round2(v)
	return &r
}
