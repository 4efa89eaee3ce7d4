package mocks

import (
	"context"
	"errors"

	"github.com/godilite/feedback-server/internal/service"
)

// MockReportService is a function based mock of the report service.
type MockReportService struct {
	SummaryReportFunc     func(ctx context.Context, p service.Principal, f service.Filters, groupBy string) ([]service.ReportRow, error)
	AnalysisReportFunc    func(ctx context.Context, p service.Principal, f service.Filters) (service.AnalysisReport, error)
	DepartmentSummaryFunc func(ctx context.Context, p service.Principal, f service.Filters) ([]service.DepartmentAverages, error)
	FacultyDetailFunc     func(ctx context.Context, p service.Principal, facultyID, round string) (service.FacultyDetail, error)
	ExportFunc            func(ctx context.Context, p service.Principal, f service.Filters) ([]service.ExportRow, error)
}

func (m *MockReportService) SummaryReport(ctx context.Context, p service.Principal, f service.Filters, groupBy string) ([]service.ReportRow, error) {
	if m.SummaryReportFunc != nil {
		return m.SummaryReportFunc(ctx, p, f, groupBy)
	}
	return nil, errors.New("SummaryReportFunc not implemented")
}

func (m *MockReportService) AnalysisReport(ctx context.Context, p service.Principal, f service.Filters) (service.AnalysisReport, error) {
	if m.AnalysisReportFunc != nil {
		return m.AnalysisReportFunc(ctx, p, f)
	}
	return service.AnalysisReport{}, errors.New("AnalysisReportFunc not implemented")
}

func (m *MockReportService) DepartmentSummary(ctx context.Context, p service.Principal, f service.Filters) ([]service.DepartmentAverages, error) {
	if m.DepartmentSummaryFunc != nil {
		return m.DepartmentSummaryFunc(ctx, p, f)
	}
	return nil, errors.New("DepartmentSummaryFunc not implemented")
}

func (m *MockReportService) FacultyDetail(ctx context.Context, p service.Principal, facultyID, round string) (service.FacultyDetail, error) {
	if m.FacultyDetailFunc != nil {
		return m.FacultyDetailFunc(ctx, p, facultyID, round)
	}
	return service.FacultyDetail{}, errors.New("FacultyDetailFunc not implemented")
}

func (m *MockReportService) Export(ctx context.Context, p service.Principal, f service.Filters) ([]service.ExportRow, error) {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, p, f)
	}
	return nil, errors.New("ExportFunc not implemented")
}

// MockSubmissionService is a function based mock of the submission service.
type MockSubmissionService struct {
	SubmitFunc       func(ctx context.Context, p service.Principal, payload service.SubmissionPayload) (service.SubmissionResult, error)
	ResetOwnFunc     func(ctx context.Context, p service.Principal) (int64, error)
	ResetStudentFunc func(ctx context.Context, p service.Principal, studentID, round string) (int64, error)
}

func (m *MockSubmissionService) Submit(ctx context.Context, p service.Principal, payload service.SubmissionPayload) (service.SubmissionResult, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, p, payload)
	}
	return service.SubmissionResult{}, errors.New("SubmitFunc not implemented")
}

func (m *MockSubmissionService) ResetOwn(ctx context.Context, p service.Principal) (int64, error) {
	if m.ResetOwnFunc != nil {
		return m.ResetOwnFunc(ctx, p)
	}
	return 0, errors.New("ResetOwnFunc not implemented")
}

func (m *MockSubmissionService) ResetStudent(ctx context.Context, p service.Principal, studentID, round string) (int64, error) {
	if m.ResetStudentFunc != nil {
		return m.ResetStudentFunc(ctx, p, studentID, round)
	}
	return 0, errors.New("ResetStudentFunc not implemented")
}

// MockSessionService is a function based mock of the session service.
type MockSessionService struct {
	CurrentFunc func(ctx context.Context) (service.Session, error)
	ToggleFunc  func(ctx context.Context, p service.Principal, active bool, round string) (service.Session, error)
}

func (m *MockSessionService) Current(ctx context.Context) (service.Session, error) {
	if m.CurrentFunc != nil {
		return m.CurrentFunc(ctx)
	}
	return service.Session{}, errors.New("CurrentFunc not implemented")
}

func (m *MockSessionService) Toggle(ctx context.Context, p service.Principal, active bool, round string) (service.Session, error) {
	if m.ToggleFunc != nil {
		return m.ToggleFunc(ctx, p, active, round)
	}
	return service.Session{}, errors.New("ToggleFunc not implemented")
}
