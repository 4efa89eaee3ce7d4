package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/godilite/feedback-server/internal/repository/models"
)

// Number of questions asked per section; keys run q1..qN.
var questionCounts = map[models.FeedbackType]int{
	models.FeedbackTheory:     10,
	models.FeedbackPractical:  8,
	models.FeedbackLibrary:    5,
	models.FeedbackFacilities: 5,
}

// EntryPayload is one theory or practical rating for a faculty member.
type EntryPayload struct {
	FacultyID string         `json:"facultyId" validate:"required"`
	Ratings   map[string]int `json:"ratings" validate:"required,min=1,dive,min=1,max=5"`
	Comments  string         `json:"comments" validate:"max=2000"`
}

// SectionPayload is the library or facilities block.
type SectionPayload struct {
	Ratings  map[string]int `json:"ratings" validate:"omitempty,dive,min=1,max=5"`
	Comments string         `json:"comments" validate:"max=2000"`
}

// SubmissionPayload is the body of a student's feedback submission. Omitted
// sections are stored as empty blocks.
type SubmissionPayload struct {
	Theory     []EntryPayload  `json:"theory" validate:"omitempty,dive"`
	Practical  []EntryPayload  `json:"practical" validate:"omitempty,dive"`
	Library    *SectionPayload `json:"library"`
	Facilities *SectionPayload `json:"facilities"`
}

// SubmissionResult identifies the stored record.
type SubmissionResult struct {
	ID          string    `json:"id"`
	Round       string    `json:"feedbackRound"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SubmissionService stores submissions and resets them.
type SubmissionService struct {
	repo     FeedbackRepository
	sessions *SessionService
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewSubmissionService(repo FeedbackRepository, sessions *SessionService, logger *zap.Logger) *SubmissionService {
	if repo == nil {
		panic("repository must not be nil")
	}
	if sessions == nil {
		panic("session service must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &SubmissionService{
		repo:     repo,
		sessions: sessions,
		validate: newValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Submit stores the principal's feedback for the active round.
func (s *SubmissionService) Submit(ctx context.Context, p Principal, payload SubmissionPayload) (SubmissionResult, error) {
	if p.Role != RoleStudent {
		return SubmissionResult{}, fmt.Errorf("%w: only students submit feedback", ErrAccessScope)
	}
	if err := s.validatePayload(payload); err != nil {
		return SubmissionResult{}, err
	}

	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return SubmissionResult{}, err
	}
	if !sess.IsActive {
		return SubmissionResult{}, ErrSessionClosed
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	student, err := s.repo.GetStudent(dbCtx, p.ID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return SubmissionResult{}, fmt.Errorf("%w: student %s", ErrNotFound, p.ID)
		}
		s.logger.Error("failed to load student", zap.String("student", p.ID), zap.Error(err))
		return SubmissionResult{}, storageFailure(err)
	}

	faculties, err := s.resolveFaculties(dbCtx, payload)
	if err != nil {
		return SubmissionResult{}, err
	}

	rec := models.RatingRecord{
		ID:          uuid.NewString(),
		StudentID:   student.ID,
		Department:  student.Department,
		Class:       student.Class,
		Division:    student.Division,
		Round:       sess.ActiveRound,
		SubmittedAt: s.now().UTC(),
		Theory:      toEntries(payload.Theory, faculties),
		Practical:   toEntries(payload.Practical, faculties),
		Library:     toSection(payload.Library),
		Facilities:  toSection(payload.Facilities),
	}

	inserted, err := s.repo.InsertRecord(dbCtx, rec)
	if err != nil {
		s.logger.Error("failed to store feedback", zap.String("student", p.ID), zap.Error(err))
		return SubmissionResult{}, storageFailure(err)
	}
	if !inserted {
		s.logger.Info("duplicate feedback submission",
			zap.String("student", p.ID),
			zap.String("round", rec.Round))
		return SubmissionResult{}, ErrDuplicateSubmission
	}

	s.logger.Info("feedback submitted",
		zap.String("student", p.ID),
		zap.String("round", rec.Round),
		zap.Int("theory", len(rec.Theory)),
		zap.Int("practical", len(rec.Practical)))

	return SubmissionResult{ID: rec.ID, Round: rec.Round, SubmittedAt: rec.SubmittedAt}, nil
}

func (s *SubmissionService) validatePayload(payload SubmissionPayload) error {
	var fields []FieldError

	if err := s.validate.Struct(payload); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return &ValidationError{Fields: []FieldError{{Field: "payload", Message: err.Error()}}}
		}
		for _, fe := range ve {
			fields = append(fields, FieldError{Field: fieldPath(fe), Message: describe(fe)})
		}
	}

	for i, e := range payload.Theory {
		fields = append(fields, checkQuestionKeys(fmt.Sprintf("theory[%d].ratings", i), e.Ratings, models.FeedbackTheory)...)
	}
	for i, e := range payload.Practical {
		fields = append(fields, checkQuestionKeys(fmt.Sprintf("practical[%d].ratings", i), e.Ratings, models.FeedbackPractical)...)
	}
	if payload.Library != nil {
		fields = append(fields, checkQuestionKeys("library.ratings", payload.Library.Ratings, models.FeedbackLibrary)...)
	}
	if payload.Facilities != nil {
		fields = append(fields, checkQuestionKeys("facilities.ratings", payload.Facilities.Ratings, models.FeedbackFacilities)...)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Map {
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}

func checkQuestionKeys(field string, ratings map[string]int, t models.FeedbackType) []FieldError {
	var out []FieldError
	limit := questionCounts[t]
	keys := make([]string, 0, len(ratings))
	for k := range ratings {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareQuestionKeys)
	for _, k := range keys {
		if !validQuestionKey(k, limit) {
			out = append(out, FieldError{
				Field:   field + "." + k,
				Message: fmt.Sprintf("unknown question, expected q1..q%d", limit),
			})
		}
	}
	return out
}

func validQuestionKey(k string, limit int) bool {
	for i := 1; i <= limit; i++ {
		if k == fmt.Sprintf("q%d", i) {
			return true
		}
	}
	return false
}

// resolveFaculties loads every faculty referenced by the payload in one call.
func (s *SubmissionService) resolveFaculties(ctx context.Context, payload SubmissionPayload) (map[string]models.FacultyRef, error) {
	var ids []string
	for _, e := range slices.Concat(payload.Theory, payload.Practical) {
		if !slices.Contains(ids, e.FacultyID) {
			ids = append(ids, e.FacultyID)
		}
	}
	if len(ids) == 0 {
		return map[string]models.FacultyRef{}, nil
	}

	faculties, err := s.repo.GetFaculties(ctx, ids)
	if err != nil {
		s.logger.Error("failed to resolve faculties", zap.Strings("ids", ids), zap.Error(err))
		return nil, storageFailure(err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := faculties[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: faculty %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return faculties, nil
}

func toEntries(in []EntryPayload, faculties map[string]models.FacultyRef) []models.FeedbackEntry {
	out := make([]models.FeedbackEntry, 0, len(in))
	for _, e := range in {
		out = append(out, models.FeedbackEntry{
			FacultyID:   e.FacultyID,
			SubjectName: faculties[e.FacultyID].SubjectName,
			Ratings:     models.Ratings(e.Ratings),
			Comments:    strings.TrimSpace(e.Comments),
		})
	}
	return out
}

func toSection(in *SectionPayload) models.SectionRatings {
	if in == nil {
		return models.SectionRatings{Ratings: models.Ratings{}}
	}
	r := models.Ratings(in.Ratings)
	if r == nil {
		r = models.Ratings{}
	}
	return models.SectionRatings{Ratings: r, Comments: strings.TrimSpace(in.Comments)}
}

// ResetOwn deletes the principal's record for the active round so the
// student can submit again.
func (s *SubmissionService) ResetOwn(ctx context.Context, p Principal) (int64, error) {
	if p.Role != RoleStudent {
		return 0, fmt.Errorf("%w: only students reset their own feedback", ErrAccessScope)
	}
	sess, err := s.sessions.Current(ctx)
	if err != nil {
		return 0, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	n, err := s.repo.DeleteRecords(dbCtx, p.ID, sess.ActiveRound, true)
	if err != nil {
		s.logger.Error("failed to reset feedback", zap.String("student", p.ID), zap.Error(err))
		return 0, storageFailure(err)
	}
	s.logger.Info("feedback reset by student",
		zap.String("student", p.ID),
		zap.String("round", sess.ActiveRound),
		zap.Int64("deleted", n))
	return n, nil
}

// ResetStudent deletes a student's records on behalf of an admin. An empty
// or "All" round removes every round.
func (s *SubmissionService) ResetStudent(ctx context.Context, p Principal, studentID, round string) (int64, error) {
	if p.Role != RoleAdmin {
		return 0, fmt.Errorf("%w: only admins reset other students", ErrAccessScope)
	}
	if strings.TrimSpace(studentID) == "" {
		return 0, &ValidationError{Fields: []FieldError{{Field: "studentId", Message: "is required"}}}
	}
	round = strings.TrimSpace(round)
	if round == AllScope {
		round = ""
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	student, err := s.repo.GetStudent(dbCtx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: student %s", ErrNotFound, studentID)
		}
		s.logger.Error("failed to load student", zap.String("student", studentID), zap.Error(err))
		return 0, storageFailure(err)
	}
	if !p.CanAccess(student.Department) {
		return 0, fmt.Errorf("%w: student %s belongs to %s", ErrAccessScope, studentID, student.Department)
	}

	n, err := s.repo.DeleteRecords(dbCtx, studentID, round, false)
	if err != nil {
		s.logger.Error("failed to reset feedback", zap.String("student", studentID), zap.Error(err))
		return 0, storageFailure(err)
	}
	s.logger.Info("feedback reset by admin",
		zap.String("student", studentID),
		zap.String("round", round),
		zap.String("admin", p.ID),
		zap.Int64("deleted", n))
	return n, nil
}
