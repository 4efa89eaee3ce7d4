package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/godilite/feedback-server/internal/repository/models"
)

// MockFeedbackRepository is a mock implementation of the FeedbackRepository
// interface for testing the service layer.
type MockFeedbackRepository struct {
	FindRecordsFunc          func(ctx context.Context, f models.RecordFilter) ([]models.RatingRecord, error)
	FindRecordsByFacultyFunc func(ctx context.Context, facultyID, round string) ([]models.RatingRecord, error)
	GetFacultyFunc           func(ctx context.Context, id string) (models.FacultyRef, error)
	GetFacultiesFunc         func(ctx context.Context, ids []string) (map[string]models.FacultyRef, error)
	GetStudentFunc           func(ctx context.Context, id string) (models.StudentRef, error)
	InsertRecordFunc         func(ctx context.Context, rec models.RatingRecord) (bool, error)
	DeleteRecordsFunc        func(ctx context.Context, studentID, round string, clearLegacy bool) (int64, error)
}

func (m *MockFeedbackRepository) FindRecords(ctx context.Context, f models.RecordFilter) ([]models.RatingRecord, error) {
	if m.FindRecordsFunc != nil {
		return m.FindRecordsFunc(ctx, f)
	}
	return nil, errors.New("FindRecordsFunc not implemented")
}

func (m *MockFeedbackRepository) FindRecordsByFaculty(ctx context.Context, facultyID, round string) ([]models.RatingRecord, error) {
	if m.FindRecordsByFacultyFunc != nil {
		return m.FindRecordsByFacultyFunc(ctx, facultyID, round)
	}
	return nil, errors.New("FindRecordsByFacultyFunc not implemented")
}

func (m *MockFeedbackRepository) GetFaculty(ctx context.Context, id string) (models.FacultyRef, error) {
	if m.GetFacultyFunc != nil {
		return m.GetFacultyFunc(ctx, id)
	}
	return models.FacultyRef{}, errors.New("GetFacultyFunc not implemented")
}

func (m *MockFeedbackRepository) GetFaculties(ctx context.Context, ids []string) (map[string]models.FacultyRef, error) {
	if m.GetFacultiesFunc != nil {
		return m.GetFacultiesFunc(ctx, ids)
	}
	return nil, errors.New("GetFacultiesFunc not implemented")
}

func (m *MockFeedbackRepository) GetStudent(ctx context.Context, id string) (models.StudentRef, error) {
	if m.GetStudentFunc != nil {
		return m.GetStudentFunc(ctx, id)
	}
	return models.StudentRef{}, errors.New("GetStudentFunc not implemented")
}

func (m *MockFeedbackRepository) InsertRecord(ctx context.Context, rec models.RatingRecord) (bool, error) {
	if m.InsertRecordFunc != nil {
		return m.InsertRecordFunc(ctx, rec)
	}
	return false, errors.New("InsertRecordFunc not implemented")
}

func (m *MockFeedbackRepository) DeleteRecords(ctx context.Context, studentID, round string, clearLegacy bool) (int64, error) {
	if m.DeleteRecordsFunc != nil {
		return m.DeleteRecordsFunc(ctx, studentID, round, clearLegacy)
	}
	return 0, errors.New("DeleteRecordsFunc not implemented")
}

// MemoryConfigRepository is an in-memory ConfigRepository.
type MemoryConfigRepository struct {
	mu     sync.Mutex
	Values map[string]string
	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryConfigRepository() *MemoryConfigRepository {
	return &MemoryConfigRepository{Values: make(map[string]string)}
}

func (m *MemoryConfigRepository) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.Values[key]
	return v, ok, nil
}

func (m *MemoryConfigRepository) Upsert(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Values[key] = value
	return nil
}

func (m *MemoryConfigRepository) InsertIfAbsent(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Values[key]; ok {
		return false, nil
	}
	m.Values[key] = value
	return true, nil
}
