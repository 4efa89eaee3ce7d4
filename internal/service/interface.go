package service

import (
	"context"

	"github.com/godilite/feedback-server/internal/repository/models"
)

// FeedbackRepository defines the record store operations used by the services.
type FeedbackRepository interface {
	FindRecords(ctx context.Context, f models.RecordFilter) ([]models.RatingRecord, error)
	FindRecordsByFaculty(ctx context.Context, facultyID, round string) ([]models.RatingRecord, error)
	GetFaculty(ctx context.Context, id string) (models.FacultyRef, error)
	GetFaculties(ctx context.Context, ids []string) (map[string]models.FacultyRef, error)
	GetStudent(ctx context.Context, id string) (models.StudentRef, error)
	InsertRecord(ctx context.Context, rec models.RatingRecord) (bool, error)
	DeleteRecords(ctx context.Context, studentID, round string, clearLegacy bool) (int64, error)
}

// ConfigRepository defines the key/value operations behind the session toggle.
type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Upsert(ctx context.Context, key, value string) error
	InsertIfAbsent(ctx context.Context, key, value string) (bool, error)
}
