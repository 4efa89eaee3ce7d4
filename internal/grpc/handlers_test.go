package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godilite/feedback-server/internal/auth"
	"github.com/godilite/feedback-server/internal/grpc/mocks"
	"github.com/godilite/feedback-server/internal/repository/models"
	"github.com/godilite/feedback-server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	admin   = service.Principal{ID: "admin-1", Role: service.RoleAdmin, Department: "AIML"}
	student = service.Principal{ID: "s1", Role: service.RoleStudent, Department: "AIML"}
)

func adminCtx() context.Context   { return auth.WithPrincipal(context.Background(), admin) }
func studentCtx() context.Context { return auth.WithPrincipal(context.Background(), student) }

func newHandlers(reports *mocks.MockReportService, subs *mocks.MockSubmissionService, sessions *mocks.MockSessionService, cache Cacher) *FeedbackHandlers {
	if reports == nil {
		reports = &mocks.MockReportService{}
	}
	if subs == nil {
		subs = &mocks.MockSubmissionService{}
	}
	if sessions == nil {
		sessions = &mocks.MockSessionService{}
	}
	return NewFeedbackHandlers(reports, subs, sessions, cache, zap.NewNop(), time.Minute)
}

func mustStruct(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := EncodeRequest(v)
	require.NoError(t, err)
	return s
}

// recordingCache captures purges and the keys written in the background.
type recordingCache struct {
	mocks.MockCacher
	mu     sync.Mutex
	purged []string
	sets   chan string
}

func newRecordingCache() *recordingCache {
	c := &recordingCache{sets: make(chan string, 8)}
	c.SetFunc = func(_ context.Context, key string, _ any, _ time.Duration) error {
		c.sets <- key
		return nil
	}
	c.DeletePrefixFunc = func(_ context.Context, prefix string) (int64, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.purged = append(c.purged, prefix)
		return 1, nil
	}
	return c
}

func (c *recordingCache) Purged() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.purged...)
}

func (c *recordingCache) nextSet(t *testing.T) string {
	t.Helper()
	select {
	case k := <-c.sets:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("cache was not populated")
		return ""
	}
}

func TestNewFeedbackHandlers(t *testing.T) {
	reports := &mocks.MockReportService{}
	subs := &mocks.MockSubmissionService{}
	sessions := &mocks.MockSessionService{}

	t.Run("valid parameters", func(t *testing.T) {
		cache := &mocks.MockCacher{}
		h := NewFeedbackHandlers(reports, subs, sessions, cache, zap.NewNop(), 5*time.Minute)

		assert.Equal(t, cache, h.cache)
		assert.Equal(t, 5*time.Minute, h.cacheTTL)
		assert.NotNil(t, h.logger)
	})

	t.Run("nil dependencies panic", func(t *testing.T) {
		assert.Panics(t, func() { NewFeedbackHandlers(nil, subs, sessions, nil, zap.NewNop(), 0) })
		assert.Panics(t, func() { NewFeedbackHandlers(reports, nil, sessions, nil, zap.NewNop(), 0) })
		assert.Panics(t, func() { NewFeedbackHandlers(reports, subs, nil, nil, zap.NewNop(), 0) })
	})

	t.Run("non-positive TTL uses default", func(t *testing.T) {
		h := NewFeedbackHandlers(reports, subs, sessions, nil, nil, -time.Minute)
		assert.Equal(t, defaultCacheDuration, h.cacheTTL)
	})
}

func TestReportKey(t *testing.T) {
	req := summaryRequest{Filters: service.Filters{Class: "SE"}, GroupBy: "class"}

	key := reportKey(cacheKeySummary, admin, req)
	assert.Equal(t, `feedback:report:summary:admin:AIML:{"class":"SE","groupBy":"class"}`, key)
	assert.True(t, strings.HasPrefix(key, reportKeyPrefix))

	other := admin
	other.Department = "CS"
	assert.NotEqual(t, key, reportKey(cacheKeySummary, other, req))
	assert.NotEqual(t, key, reportKey(cacheKeySummary, student, req))
	assert.NotEqual(t, key, reportKey(cacheKeyExport, admin, req))
}

func TestHandleError(t *testing.T) {
	h := newHandlers(nil, nil, nil, nil)

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.handleError(ctx, "op", errors.New("anything"))
		assert.Equal(t, codes.Canceled, status.Code(err))
	})

	t.Run("context deadline exceeded", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := h.handleError(ctx, "op", errors.New("anything"))
		assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	})

	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", &service.ValidationError{Fields: []service.FieldError{{Field: "theory", Message: "required"}}}, codes.InvalidArgument},
		{"invalid filter", fmt.Errorf("%w: bad date", service.ErrInvalidFilter), codes.InvalidArgument},
		{"duplicate", service.ErrDuplicateSubmission, codes.AlreadyExists},
		{"not found", fmt.Errorf("%w: faculty f9", service.ErrNotFound), codes.NotFound},
		{"access scope", service.ErrAccessScope, codes.PermissionDenied},
		{"session closed", service.ErrSessionClosed, codes.FailedPrecondition},
		{"storage failure", fmt.Errorf("%w: disk full", service.ErrStorageFailure), codes.Internal},
		{"unknown", errors.New("boom"), codes.Internal},
		{"status passthrough", status.Error(codes.Unauthenticated, "no"), codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.handleError(context.Background(), "op", tt.err)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	t.Run("storage details are hidden", func(t *testing.T) {
		err := h.handleError(context.Background(), "op", fmt.Errorf("%w: password=secret", service.ErrStorageFailure))
		assert.NotContains(t, err.Error(), "secret")
	})
}

func TestHandlers_RequirePrincipal(t *testing.T) {
	h := newHandlers(nil, nil, nil, nil)
	calls := map[string]func(context.Context, *structpb.Struct) (*structpb.Struct, error){
		"GetSummaryReport":     h.GetSummaryReport,
		"GetAnalysisReport":    h.GetAnalysisReport,
		"GetDepartmentSummary": h.GetDepartmentSummary,
		"GetFacultyDetail":     h.GetFacultyDetail,
		"ExportFeedback":       h.ExportFeedback,
		"SubmitFeedback":       h.SubmitFeedback,
		"ResetFeedback":        h.ResetFeedback,
		"GetSession":           h.GetSession,
		"ToggleSession":        h.ToggleSession,
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			resp, err := call(context.Background(), &structpb.Struct{})
			assert.Nil(t, resp)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}

func TestGetSummaryReport(t *testing.T) {
	rows := []service.ReportRow{{
		FacultyID:              "f1",
		FacultyName:            "Dr. Rao",
		SubjectName:            "DBMS",
		Division:               "A",
		Class:                  "SE",
		Batch:                  "-",
		TotalFeedbacks:         2,
		AverageRating:          4.5,
		QuestionAverageRatings: map[string]float64{"q1": 4.5},
	}}

	t.Run("passes filters and group and fills cache", func(t *testing.T) {
		var gotFilters service.Filters
		var gotGroup string
		reports := &mocks.MockReportService{
			SummaryReportFunc: func(_ context.Context, p service.Principal, f service.Filters, groupBy string) ([]service.ReportRow, error) {
				assert.Equal(t, admin, p)
				gotFilters, gotGroup = f, groupBy
				return rows, nil
			},
		}
		cache := newRecordingCache()
		h := newHandlers(reports, nil, nil, cache)

		in := mustStruct(t, map[string]any{"class": "SE", "feedbackRound": "1", "groupBy": "class"})
		resp, err := h.GetSummaryReport(adminCtx(), in)
		require.NoError(t, err)

		var out rowsResponse[service.ReportRow]
		require.NoError(t, DecodeResponse(resp, &out))
		assert.Equal(t, rows, out.Rows)
		assert.Equal(t, service.Filters{Class: "SE", FeedbackRound: "1"}, gotFilters)
		assert.Equal(t, "class", gotGroup)

		assert.Equal(t, `feedback:report:summary:admin:AIML:{"class":"SE","feedbackRound":"1","groupBy":"class"}`, cache.nextSet(t))
	})

	t.Run("served from cache", func(t *testing.T) {
		reports := &mocks.MockReportService{
			SummaryReportFunc: func(context.Context, service.Principal, service.Filters, string) ([]service.ReportRow, error) {
				return nil, errors.New("should not be needed")
			},
		}
		cache := &mocks.MockCacher{
			GetFunc: func(_ context.Context, _ string, dest any) error {
				raw, _ := json.Marshal(rows)
				return json.Unmarshal(raw, dest)
			},
		}
		h := newHandlers(reports, nil, nil, cache)

		resp, err := h.GetSummaryReport(adminCtx(), nil)
		require.NoError(t, err)

		var out rowsResponse[service.ReportRow]
		require.NoError(t, DecodeResponse(resp, &out))
		assert.Equal(t, rows, out.Rows)
	})

	t.Run("cache errors fall back to the service", func(t *testing.T) {
		reports := &mocks.MockReportService{
			SummaryReportFunc: func(context.Context, service.Principal, service.Filters, string) ([]service.ReportRow, error) {
				return rows, nil
			},
		}
		cache := &mocks.MockCacher{
			GetFunc: func(context.Context, string, any) error { return errors.New("connection refused") },
		}
		h := newHandlers(reports, nil, nil, cache)

		_, err := h.GetSummaryReport(adminCtx(), nil)
		assert.NoError(t, err)
	})

	t.Run("unknown request field", func(t *testing.T) {
		h := newHandlers(nil, nil, nil, nil)
		_, err := h.GetSummaryReport(adminCtx(), mustStruct(t, map[string]any{"semester": "4"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("invalid grouping", func(t *testing.T) {
		reports := &mocks.MockReportService{
			SummaryReportFunc: func(context.Context, service.Principal, service.Filters, string) ([]service.ReportRow, error) {
				return nil, fmt.Errorf("%w: unknown group %q", service.ErrInvalidFilter, "room")
			},
		}
		h := newHandlers(reports, nil, nil, nil)

		_, err := h.GetSummaryReport(adminCtx(), mustStruct(t, map[string]any{"groupBy": "room"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("non-admin", func(t *testing.T) {
		reports := &mocks.MockReportService{
			SummaryReportFunc: func(context.Context, service.Principal, service.Filters, string) ([]service.ReportRow, error) {
				return nil, service.ErrAccessScope
			},
		}
		cache := newRecordingCache()
		h := newHandlers(reports, nil, nil, cache)

		_, err := h.GetSummaryReport(studentCtx(), nil)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
		assert.Empty(t, cache.sets)
	})
}

func TestGetAnalysisReport(t *testing.T) {
	reports := &mocks.MockReportService{
		AnalysisReportFunc: func(_ context.Context, _ service.Principal, f service.Filters) (service.AnalysisReport, error) {
			assert.Equal(t, "theory", f.FeedbackType)
			return service.AnalysisReport{
				ActiveRound: "2",
				Analysis: service.Analysis{
					Rows:              []service.AnalysisRow{{ReportRow: service.ReportRow{FacultyID: "f1"}, Mean: 4}},
					FilledCells:       1,
					GrandMean:         4,
					StandardDeviation: 0,
				},
			}, nil
		},
	}
	h := newHandlers(reports, nil, nil, nil)

	resp, err := h.GetAnalysisReport(adminCtx(), mustStruct(t, map[string]any{"feedbackType": "theory"}))
	require.NoError(t, err)

	assert.Equal(t, "2", resp.GetFields()["activeRound"].GetStringValue())
	assert.Equal(t, float64(1), resp.GetFields()["filledCells"].GetNumberValue())

	var out service.AnalysisReport
	require.NoError(t, DecodeResponse(resp, &out))
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "f1", out.Rows[0].FacultyID)
}

func TestGetDepartmentSummary(t *testing.T) {
	avg := 3.67
	reports := &mocks.MockReportService{
		DepartmentSummaryFunc: func(context.Context, service.Principal, service.Filters) ([]service.DepartmentAverages, error) {
			return []service.DepartmentAverages{{Department: "AIML", Submissions: 3, OverallAverage: &avg}}, nil
		},
	}
	h := newHandlers(reports, nil, nil, nil)

	resp, err := h.GetDepartmentSummary(adminCtx(), nil)
	require.NoError(t, err)

	var out rowsResponse[service.DepartmentAverages]
	require.NoError(t, DecodeResponse(resp, &out))
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 3.67, *out.Rows[0].OverallAverage)
	assert.Nil(t, out.Rows[0].TheoryAverage)
}

func TestGetFacultyDetail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		reports := &mocks.MockReportService{
			FacultyDetailFunc: func(_ context.Context, _ service.Principal, id, round string) (service.FacultyDetail, error) {
				assert.Equal(t, "f1", id)
				assert.Equal(t, "2", round)
				return service.FacultyDetail{FacultyID: id, AverageRatings: map[string]float64{"q1": 4}}, nil
			},
		}
		h := newHandlers(reports, nil, nil, nil)

		resp, err := h.GetFacultyDetail(adminCtx(), mustStruct(t, map[string]any{"facultyId": "f1", "feedbackRound": "2"}))
		require.NoError(t, err)

		var out service.FacultyDetail
		require.NoError(t, DecodeResponse(resp, &out))
		assert.Equal(t, 4.0, out.AverageRatings["q1"])
	})

	t.Run("not found", func(t *testing.T) {
		reports := &mocks.MockReportService{
			FacultyDetailFunc: func(context.Context, service.Principal, string, string) (service.FacultyDetail, error) {
				return service.FacultyDetail{}, service.ErrNotFound
			},
		}
		h := newHandlers(reports, nil, nil, nil)

		_, err := h.GetFacultyDetail(adminCtx(), mustStruct(t, map[string]any{"facultyId": "nope"}))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestExportFeedback(t *testing.T) {
	submitted := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	reports := &mocks.MockReportService{
		ExportFunc: func(context.Context, service.Principal, service.Filters) ([]service.ExportRow, error) {
			return []service.ExportRow{{
				StudentGrNo:  "GR-s1",
				FacultyName:  "Dr. Rao",
				FeedbackType: models.FeedbackTheory,
				Ratings:      models.Ratings{"q1": 5, "q2": 4},
				SubmittedAt:  submitted,
			}}, nil
		},
	}
	h := newHandlers(reports, nil, nil, nil)

	resp, err := h.ExportFeedback(adminCtx(), nil)
	require.NoError(t, err)

	var out exportResponse
	require.NoError(t, DecodeResponse(resp, &out))
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 5, out.Rows[0].Ratings["q1"])

	lines := strings.Split(strings.TrimSpace(out.CSV), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "studentGrNo,"))
	assert.Contains(t, lines[0], ",q1,q2,comments,submittedAt")
	assert.Contains(t, lines[1], "2025-03-10T09:00:00Z")
}

func TestSubmitFeedback(t *testing.T) {
	t.Run("success purges reports", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			SubmitFunc: func(_ context.Context, p service.Principal, payload service.SubmissionPayload) (service.SubmissionResult, error) {
				assert.Equal(t, student, p)
				require.Len(t, payload.Theory, 1)
				assert.Equal(t, "f1", payload.Theory[0].FacultyID)
				assert.Equal(t, 5, payload.Theory[0].Ratings["q1"])
				require.NotNil(t, payload.Library)
				return service.SubmissionResult{ID: "rec-1", Round: "1"}, nil
			},
		}
		cache := newRecordingCache()
		h := newHandlers(nil, subs, nil, cache)

		in := mustStruct(t, map[string]any{
			"theory":  []any{map[string]any{"facultyId": "f1", "ratings": map[string]any{"q1": 5}}},
			"library": map[string]any{"ratings": map[string]any{"q1": 4}},
		})
		resp, err := h.SubmitFeedback(studentCtx(), in)
		require.NoError(t, err)

		assert.Equal(t, "rec-1", resp.GetFields()["id"].GetStringValue())
		assert.Equal(t, []string{reportKeyPrefix}, cache.Purged())
	})

	t.Run("duplicate leaves cache alone", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			SubmitFunc: func(context.Context, service.Principal, service.SubmissionPayload) (service.SubmissionResult, error) {
				return service.SubmissionResult{}, service.ErrDuplicateSubmission
			},
		}
		cache := newRecordingCache()
		h := newHandlers(nil, subs, nil, cache)

		_, err := h.SubmitFeedback(studentCtx(), nil)
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
		assert.Empty(t, cache.Purged())
	})

	t.Run("closed session", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			SubmitFunc: func(context.Context, service.Principal, service.SubmissionPayload) (service.SubmissionResult, error) {
				return service.SubmissionResult{}, service.ErrSessionClosed
			},
		}
		h := newHandlers(nil, subs, nil, nil)

		_, err := h.SubmitFeedback(studentCtx(), nil)
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("purge failure does not fail the call", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			SubmitFunc: func(context.Context, service.Principal, service.SubmissionPayload) (service.SubmissionResult, error) {
				return service.SubmissionResult{ID: "rec-2"}, nil
			},
		}
		cache := &mocks.MockCacher{
			DeletePrefixFunc: func(context.Context, string) (int64, error) { return 0, errors.New("redis down") },
		}
		h := newHandlers(nil, subs, nil, cache)

		_, err := h.SubmitFeedback(studentCtx(), nil)
		assert.NoError(t, err)
	})
}

func TestResetFeedback(t *testing.T) {
	t.Run("student resets own record", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			ResetOwnFunc: func(_ context.Context, p service.Principal) (int64, error) {
				assert.Equal(t, "s1", p.ID)
				return 1, nil
			},
		}
		cache := newRecordingCache()
		h := newHandlers(nil, subs, nil, cache)

		resp, err := h.ResetFeedback(studentCtx(), nil)
		require.NoError(t, err)
		assert.Equal(t, float64(1), resp.GetFields()["deleted"].GetNumberValue())
		assert.Len(t, cache.Purged(), 1)
	})

	t.Run("admin resets a student", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			ResetStudentFunc: func(_ context.Context, p service.Principal, id, round string) (int64, error) {
				assert.Equal(t, admin, p)
				assert.Equal(t, "s1", id)
				assert.Equal(t, "All", round)
				return 3, nil
			},
		}
		h := newHandlers(nil, subs, nil, nil)

		resp, err := h.ResetFeedback(adminCtx(), mustStruct(t, map[string]any{"studentId": "s1", "feedbackRound": "All"}))
		require.NoError(t, err)
		assert.Equal(t, float64(3), resp.GetFields()["deleted"].GetNumberValue())
	})

	t.Run("nothing deleted skips purge", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			ResetOwnFunc: func(context.Context, service.Principal) (int64, error) { return 0, nil },
		}
		cache := newRecordingCache()
		h := newHandlers(nil, subs, nil, cache)

		_, err := h.ResetFeedback(studentCtx(), nil)
		require.NoError(t, err)
		assert.Empty(t, cache.Purged())
	})

	t.Run("admin without student id", func(t *testing.T) {
		subs := &mocks.MockSubmissionService{
			ResetStudentFunc: func(context.Context, service.Principal, string, string) (int64, error) {
				return 0, &service.ValidationError{Fields: []service.FieldError{{Field: "studentId", Message: "is required"}}}
			},
		}
		h := newHandlers(nil, subs, nil, nil)

		_, err := h.ResetFeedback(adminCtx(), nil)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), "studentId")
	})
}

func TestSessionHandlers(t *testing.T) {
	t.Run("get session", func(t *testing.T) {
		sessions := &mocks.MockSessionService{
			CurrentFunc: func(context.Context) (service.Session, error) {
				return service.Session{IsActive: true, ActiveRound: "2"}, nil
			},
		}
		h := newHandlers(nil, nil, sessions, nil)

		resp, err := h.GetSession(studentCtx(), nil)
		require.NoError(t, err)

		var out service.Session
		require.NoError(t, DecodeResponse(resp, &out))
		assert.Equal(t, service.Session{IsActive: true, ActiveRound: "2"}, out)
	})

	t.Run("toggle purges reports", func(t *testing.T) {
		sessions := &mocks.MockSessionService{
			ToggleFunc: func(_ context.Context, _ service.Principal, active bool, round string) (service.Session, error) {
				assert.True(t, active)
				assert.Equal(t, "3", round)
				return service.Session{IsActive: active, ActiveRound: round}, nil
			},
		}
		cache := newRecordingCache()
		h := newHandlers(nil, nil, sessions, cache)

		resp, err := h.ToggleSession(adminCtx(), mustStruct(t, map[string]any{"isActive": true, "activeRound": "3"}))
		require.NoError(t, err)
		assert.True(t, resp.GetFields()["isActive"].GetBoolValue())
		assert.Equal(t, []string{reportKeyPrefix}, cache.Purged())
	})

	t.Run("toggle by student", func(t *testing.T) {
		sessions := &mocks.MockSessionService{
			ToggleFunc: func(context.Context, service.Principal, bool, string) (service.Session, error) {
				return service.Session{}, service.ErrAccessScope
			},
		}
		h := newHandlers(nil, nil, sessions, nil)

		_, err := h.ToggleSession(studentCtx(), mustStruct(t, map[string]any{"isActive": false}))
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestFindAndCache_CoalescesMisses(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return 42, nil
	}

	var sf singleflight.Group
	cache := &mocks.MockCacher{}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := FindAndCache(context.Background(), cache, &sf, "k", time.Minute, nil, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []int{42, 42, 42, 42, 42}, results)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, calls, 5)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestFindAndCache_NilCache(t *testing.T) {
	var sf singleflight.Group
	v, err := FindAndCache(context.Background(), nil, &sf, "k", time.Minute, nil, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestWithJitter(t *testing.T) {
	assert.Equal(t, 10*time.Second, withJitter(10*time.Second))
	for range 20 {
		got := withJitter(10 * time.Minute)
		assert.GreaterOrEqual(t, got, 10*time.Minute-15*time.Second)
		assert.Less(t, got, 10*time.Minute+15*time.Second)
	}
}
