package service

import (
	"time"

	"github.com/godilite/feedback-server/internal/repository/models"
)

func newFaculty(id, name, subject, class, division string) *models.FacultyRef {
	return &models.FacultyRef{
		ID:          id,
		Name:        name,
		SubjectName: subject,
		Department:  "AIML",
		Class:       class,
		Division:    division,
	}
}

func newStudent(id, class, division, batch string) *models.StudentRef {
	return &models.StudentRef{
		ID:             id,
		GRNo:           "GR-" + id,
		Username:       "user-" + id,
		Name:           "Student " + id,
		Department:     "AIML",
		Class:          class,
		Division:       division,
		PracticalBatch: batch,
	}
}

func entry(f *models.FacultyRef, ratings models.Ratings) models.FeedbackEntry {
	return models.FeedbackEntry{
		FacultyID:   f.ID,
		SubjectName: f.SubjectName,
		Ratings:     ratings,
		Faculty:     f,
	}
}

type recordOption func(*models.RatingRecord)

func withTheory(entries ...models.FeedbackEntry) recordOption {
	return func(r *models.RatingRecord) { r.Theory = append(r.Theory, entries...) }
}

func withPractical(entries ...models.FeedbackEntry) recordOption {
	return func(r *models.RatingRecord) { r.Practical = append(r.Practical, entries...) }
}

func withLibrary(ratings models.Ratings) recordOption {
	return func(r *models.RatingRecord) { r.Library = models.SectionRatings{Ratings: ratings} }
}

func withFacilities(ratings models.Ratings) recordOption {
	return func(r *models.RatingRecord) { r.Facilities = models.SectionRatings{Ratings: ratings} }
}

func newRecord(st *models.StudentRef, round string, opts ...recordOption) models.RatingRecord {
	r := models.RatingRecord{
		ID:          st.ID + "-" + round,
		StudentID:   st.ID,
		Department:  st.Department,
		Class:       st.Class,
		Division:    st.Division,
		Round:       round,
		SubmittedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Library:     models.SectionRatings{Ratings: models.Ratings{}},
		Facilities:  models.SectionRatings{Ratings: models.Ratings{}},
		Student:     st,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func ptr(v float64) *float64 { return &v }
