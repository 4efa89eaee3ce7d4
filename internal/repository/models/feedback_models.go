package models

import (
	"errors"
	"time"
)

// ErrRecordNotFound is returned by single-row lookups that match nothing.
var ErrRecordNotFound = errors.New("record not found")

type FeedbackType string

const (
	FeedbackTheory     FeedbackType = "theory"
	FeedbackPractical  FeedbackType = "practical"
	FeedbackLibrary    FeedbackType = "library"
	FeedbackFacilities FeedbackType = "other_facilities"
)

// Ratings maps a question key to a score between 1 and 5.
type Ratings map[string]int

type FeedbackEntry struct {
	FacultyID   string  `json:"facultyId"`
	SubjectName string  `json:"subjectName"`
	Ratings     Ratings `json:"ratings"`
	Comments    string  `json:"comments,omitempty"`

	// Faculty is resolved by the repository on read and never persisted.
	Faculty *FacultyRef `json:"-"`
}

type SectionRatings struct {
	Ratings  Ratings `json:"ratings"`
	Comments string  `json:"comments,omitempty"`
}

// RatingRecord is one student's submission for one round.
type RatingRecord struct {
	ID          string
	StudentID   string
	Department  string
	Class       string
	Division    string
	Round       string
	SubmittedAt time.Time

	Theory     []FeedbackEntry
	Practical  []FeedbackEntry
	Library    SectionRatings
	Facilities SectionRatings

	Student *StudentRef
}

type FacultyRef struct {
	ID                 string
	Name               string
	SubjectName        string
	Department         string
	Class              string
	Division           string
	IsPracticalFaculty bool
	IsElective         bool
	PracticalBatches   []string
}

type StudentRef struct {
	ID             string
	GRNo           string
	Username       string
	Name           string
	Department     string
	Class          string
	Division       string
	PracticalBatch string
}

// RecordFilter is the store-level predicate. Empty strings and zero times
// leave the corresponding dimension unrestricted.
type RecordFilter struct {
	Department string
	Class      string
	Division   string
	Round      string
	From       time.Time
	To         time.Time
}
