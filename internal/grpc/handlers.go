package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/godilite/feedback-server/internal/auth"
	"github.com/godilite/feedback-server/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultGRPCTimeout   = 10 * time.Second
)

// reportKeyPrefix namespaces every cached report. Writes purge the whole
// prefix.
const reportKeyPrefix = "feedback:report:"

type CacheKeyType string

const (
	cacheKeySummary       CacheKeyType = "summary"
	cacheKeyAnalysis      CacheKeyType = "analysis"
	cacheKeyDepartments   CacheKeyType = "departments"
	cacheKeyFacultyDetail CacheKeyType = "faculty_detail"
	cacheKeyExport        CacheKeyType = "export"
)

type summaryRequest struct {
	service.Filters
	GroupBy string `json:"groupBy,omitempty"`
}

type facultyDetailRequest struct {
	FacultyID string `json:"facultyId"`
	Round     string `json:"feedbackRound,omitempty"`
}

type resetRequest struct {
	StudentID string `json:"studentId,omitempty"`
	Round     string `json:"feedbackRound,omitempty"`
}

type toggleRequest struct {
	IsActive    bool   `json:"isActive"`
	ActiveRound string `json:"activeRound,omitempty"`
}

type rowsResponse[T any] struct {
	Rows []T `json:"rows"`
}

type exportResponse struct {
	Rows []service.ExportRow `json:"rows"`
	CSV  string              `json:"csv"`
}

type resetResponse struct {
	Deleted int64 `json:"deleted"`
}

type FeedbackHandlers struct {
	reports     ReportService
	submissions SubmissionService
	sessions    SessionService
	cache       Cacher
	logger      *zap.Logger
	sfGroup     singleflight.Group
	cacheTTL    time.Duration
}

// NewFeedbackHandlers initializes the gRPC handlers. cache may be nil, in
// which case every report is computed on demand.
func NewFeedbackHandlers(reports ReportService, submissions SubmissionService, sessions SessionService, cache Cacher, logger *zap.Logger, ttl time.Duration) *FeedbackHandlers {
	if reports == nil {
		panic("nil ReportService provided to NewFeedbackHandlers")
	}
	if submissions == nil {
		panic("nil SubmissionService provided to NewFeedbackHandlers")
	}
	if sessions == nil {
		panic("nil SessionService provided to NewFeedbackHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	return &FeedbackHandlers{
		reports:     reports,
		submissions: submissions,
		sessions:    sessions,
		cache:       cache,
		logger:      logger.Named("grpc-handler"),
		cacheTTL:    ttl,
	}
}

func principal(ctx context.Context) (service.Principal, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return service.Principal{}, status.Error(codes.Unauthenticated, "missing principal")
	}
	return p, nil
}

// reportKey identifies a report by operation, the caller's scope and the
// request. The request is re-encoded so equivalent inputs share a key.
func reportKey(kind CacheKeyType, p service.Principal, req any) string {
	raw, _ := json.Marshal(req)
	return reportKeyPrefix + string(kind) + ":" + string(p.Role) + ":" + p.Department + ":" + string(raw)
}

func (s *FeedbackHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	if _, ok := status.FromError(err); ok && err != nil {
		return err
	}

	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidFilter):
		s.logger.Info("invalid request", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrDuplicateSubmission):
		s.logger.Info("duplicate submission", zap.String("op", op))
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrNotFound):
		s.logger.Info("not found", zap.String("op", op), zap.Error(err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrAccessScope):
		s.logger.Warn("access denied", zap.String("op", op), zap.Error(err))
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, service.ErrSessionClosed):
		s.logger.Info("session closed", zap.String("op", op))
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

func (s *FeedbackHandlers) GetSummaryReport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req summaryRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	rows, err := FindAndCache(ctx, s.cache, &s.sfGroup, reportKey(cacheKeySummary, p, req), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]service.ReportRow, error) {
		return s.reports.SummaryReport(fetchCtx, p, req.Filters, req.GroupBy)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetSummaryReport", err)
	}
	return encodeResponse(rowsResponse[service.ReportRow]{Rows: rows})
}

func (s *FeedbackHandlers) GetAnalysisReport(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req service.Filters
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	report, err := FindAndCache(ctx, s.cache, &s.sfGroup, reportKey(cacheKeyAnalysis, p, req), s.cacheTTL, s.logger, func(fetchCtx context.Context) (service.AnalysisReport, error) {
		return s.reports.AnalysisReport(fetchCtx, p, req)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetAnalysisReport", err)
	}
	return encodeResponse(report)
}

func (s *FeedbackHandlers) GetDepartmentSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req service.Filters
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	rows, err := FindAndCache(ctx, s.cache, &s.sfGroup, reportKey(cacheKeyDepartments, p, req), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]service.DepartmentAverages, error) {
		return s.reports.DepartmentSummary(fetchCtx, p, req)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetDepartmentSummary", err)
	}
	return encodeResponse(rowsResponse[service.DepartmentAverages]{Rows: rows})
}

func (s *FeedbackHandlers) GetFacultyDetail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req facultyDetailRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	detail, err := FindAndCache(ctx, s.cache, &s.sfGroup, reportKey(cacheKeyFacultyDetail, p, req), s.cacheTTL, s.logger, func(fetchCtx context.Context) (service.FacultyDetail, error) {
		return s.reports.FacultyDetail(fetchCtx, p, req.FacultyID, req.Round)
	})
	if err != nil {
		return nil, s.handleError(ctx, "GetFacultyDetail", err)
	}
	return encodeResponse(detail)
}

func (s *FeedbackHandlers) ExportFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req service.Filters
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	rows, err := FindAndCache(ctx, s.cache, &s.sfGroup, reportKey(cacheKeyExport, p, req), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]service.ExportRow, error) {
		return s.reports.Export(fetchCtx, p, req)
	})
	if err != nil {
		return nil, s.handleError(ctx, "ExportFeedback", err)
	}

	var csv strings.Builder
	if err := service.WriteCSV(&csv, rows); err != nil {
		return nil, s.handleError(ctx, "ExportFeedback", err)
	}
	return encodeResponse(exportResponse{Rows: rows, CSV: csv.String()})
}

func (s *FeedbackHandlers) SubmitFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var payload service.SubmissionPayload
	if err := decodeRequest(in, &payload); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	res, err := s.submissions.Submit(ctx, p, payload)
	if err != nil {
		return nil, s.handleError(ctx, "SubmitFeedback", err)
	}
	purge(ctx, s.cache, reportKeyPrefix, s.logger)
	return encodeResponse(res)
}

// ResetFeedback resets the caller's own record when no student is named,
// otherwise the named student's records as an admin.
func (s *FeedbackHandlers) ResetFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req resetRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	var n int64
	if req.StudentID == "" && p.Role == service.RoleStudent {
		n, err = s.submissions.ResetOwn(ctx, p)
	} else {
		n, err = s.submissions.ResetStudent(ctx, p, req.StudentID, req.Round)
	}
	if err != nil {
		return nil, s.handleError(ctx, "ResetFeedback", err)
	}
	if n > 0 {
		purge(ctx, s.cache, reportKeyPrefix, s.logger)
	}
	return encodeResponse(resetResponse{Deleted: n})
}

func (s *FeedbackHandlers) GetSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := principal(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	session, err := s.sessions.Current(ctx)
	if err != nil {
		return nil, s.handleError(ctx, "GetSession", err)
	}
	return encodeResponse(session)
}

func (s *FeedbackHandlers) ToggleSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	var req toggleRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	session, err := s.sessions.Toggle(ctx, p, req.IsActive, req.ActiveRound)
	if err != nil {
		return nil, s.handleError(ctx, "ToggleSession", err)
	}
	purge(ctx, s.cache, reportKeyPrefix, s.logger)
	return encodeResponse(session)
}
