package service

import (
	"time"

	"github.com/godilite/feedback-server/internal/repository/models"
)

type DetailStudent struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	GRNo           string `json:"grNo"`
	Username       string `json:"username"`
	Class          string `json:"class"`
	Division       string `json:"division"`
	PracticalBatch string `json:"practicalBatch,omitempty"`
}

type DetailEntry struct {
	Student      DetailStudent       `json:"student"`
	FeedbackType models.FeedbackType `json:"feedbackType"`
	SubjectName  string              `json:"subjectName"`
	Round        string              `json:"feedbackRound"`
	Ratings      models.Ratings      `json:"ratings"`
	Comments     string              `json:"comments"`
	SubmittedAt  time.Time           `json:"submittedAt"`
}

// FacultyDetail lists every entry about one faculty member. AverageRatings
// weights every entry equally.
type FacultyDetail struct {
	FacultyID      string             `json:"facultyId"`
	FacultyName    string             `json:"facultyName"`
	SubjectName    string             `json:"subjectName"`
	Department     string             `json:"department"`
	Entries        []DetailEntry      `json:"entries"`
	AverageRatings map[string]float64 `json:"averageRatings"`
}

type DepartmentAverages struct {
	Department        string   `json:"department"`
	Submissions       int      `json:"submissions"`
	TheoryAverage     *float64 `json:"theoryAverage"`
	PracticalAverage  *float64 `json:"practicalAverage"`
	LibraryAverage    *float64 `json:"libraryAverage"`
	FacilitiesAverage *float64 `json:"facilitiesAverage"`
	OverallAverage    *float64 `json:"overallAverage"`
}

type AnalysisReport struct {
	ActiveRound string `json:"activeRound"`
	Analysis
}
