package grpc

import (
	"context"
	"time"

	"github.com/godilite/feedback-server/internal/service"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type ReportService interface {
	SummaryReport(ctx context.Context, p service.Principal, f service.Filters, groupBy string) ([]service.ReportRow, error)
	AnalysisReport(ctx context.Context, p service.Principal, f service.Filters) (service.AnalysisReport, error)
	DepartmentSummary(ctx context.Context, p service.Principal, f service.Filters) ([]service.DepartmentAverages, error)
	FacultyDetail(ctx context.Context, p service.Principal, facultyID, round string) (service.FacultyDetail, error)
	Export(ctx context.Context, p service.Principal, f service.Filters) ([]service.ExportRow, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, p service.Principal, payload service.SubmissionPayload) (service.SubmissionResult, error)
	ResetOwn(ctx context.Context, p service.Principal) (int64, error)
	ResetStudent(ctx context.Context, p service.Principal, studentID, round string) (int64, error)
}

type SessionService interface {
	Current(ctx context.Context) (service.Session, error)
	Toggle(ctx context.Context, p service.Principal, active bool, round string) (service.Session, error)
}
