package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const sessionConfigKey = "activeFeedbackSession"

// Session is the process-wide feedback window.
type Session struct {
	IsActive    bool   `json:"isActive"`
	ActiveRound string `json:"activeRound"`
}

// SessionService owns the activeFeedbackSession config entry.
type SessionService struct {
	store        ConfigRepository
	defaultRound string
	logger       *zap.Logger
}

func NewSessionService(store ConfigRepository, defaultRound string, logger *zap.Logger) *SessionService {
	if store == nil {
		panic("config store must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	if strings.TrimSpace(defaultRound) == "" {
		defaultRound = "1"
	}
	return &SessionService{
		store:        store,
		defaultRound: defaultRound,
		logger:       logger,
	}
}

func (s *SessionService) initial() Session {
	return Session{IsActive: false, ActiveRound: s.defaultRound}
}

// Init writes the initial closed session unless one is already stored.
func (s *SessionService) Init(ctx context.Context) error {
	raw, err := json.Marshal(s.initial())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	created, err := s.store.InsertIfAbsent(dbCtx, sessionConfigKey, string(raw))
	if err != nil {
		s.logger.Error("failed to initialise feedback session", zap.Error(err))
		return storageFailure(err)
	}
	if created {
		s.logger.Info("feedback session initialised", zap.String("round", s.defaultRound))
	}
	return nil
}

// Current returns the stored session, or the initial one when nothing has
// been stored yet.
func (s *SessionService) Current(ctx context.Context) (Session, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	raw, ok, err := s.store.Get(dbCtx, sessionConfigKey)
	if err != nil {
		s.logger.Error("failed to read feedback session", zap.Error(err))
		return Session{}, storageFailure(err)
	}
	if !ok {
		return s.initial(), nil
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, storageFailure(fmt.Errorf("decode session: %w", err))
	}
	if sess.ActiveRound == "" {
		sess.ActiveRound = s.defaultRound
	}
	return sess, nil
}

// Toggle opens or closes the session. An empty round keeps the current one.
// Concurrent toggles are last-write-wins.
func (s *SessionService) Toggle(ctx context.Context, p Principal, active bool, round string) (Session, error) {
	if p.Role != RoleAdmin {
		return Session{}, fmt.Errorf("%w: only admins may toggle the feedback session", ErrAccessScope)
	}

	sess, err := s.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	sess.IsActive = active
	if r := strings.TrimSpace(round); r != "" {
		if r == AllScope {
			return Session{}, &ValidationError{Fields: []FieldError{{Field: "activeRound", Message: "must name a single round"}}}
		}
		sess.ActiveRound = r
	}

	raw, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.store.Upsert(dbCtx, sessionConfigKey, string(raw)); err != nil {
		s.logger.Error("failed to store feedback session", zap.Error(err))
		return Session{}, storageFailure(err)
	}

	s.logger.Info("feedback session toggled",
		zap.Bool("active", sess.IsActive),
		zap.String("round", sess.ActiveRound),
		zap.String("admin", p.ID))
	return sess, nil
}
