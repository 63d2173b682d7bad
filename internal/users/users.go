// Package users manages learner accounts: registration, login with daily
// streak bookkeeping, and XP totals.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/store"
)

// ErrInvalidCredentials is returned by Login for an unknown username or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Registration limits.
const (
	MinUsernameLen = 3
	MinNameLen     = 2
	MinPasswordLen = 6
	MinGrade       = 6
	MaxGrade       = 12
)

// Registration is the input of Register.
type Registration struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	Password      string `json:"password"`
	Grade         int    `json:"grade"`
	Language      string `json:"language"`
	ParentContact string `json:"parentContact,omitempty"`
}

// Validate checks the registration limits.
func (r Registration) Validate() error {
	switch {
	case len(strings.TrimSpace(r.Username)) < MinUsernameLen:
		return apperr.Invalid("username", "must be at least %d characters", MinUsernameLen)
	case len(strings.TrimSpace(r.Name)) < MinNameLen:
		return apperr.Invalid("name", "must be at least %d characters", MinNameLen)
	case len(r.Password) < MinPasswordLen:
		return apperr.Invalid("password", "must be at least %d characters", MinPasswordLen)
	case r.Grade < MinGrade || r.Grade > MaxGrade:
		return apperr.Invalid("grade", "must be between %d and %d", MinGrade, MaxGrade)
	}
	return nil
}

// Service manages accounts.
type Service struct {
	repo   store.UserRepo
	logger *slog.Logger

	// Now reads the clock for streaks. Defaults to time.Now.
	Now func() time.Time

	// Cost is the bcrypt cost. Defaults to bcrypt.DefaultCost.
	Cost int
}

// New returns a Service over repo.
func New(repo store.UserRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, Now: time.Now, Cost: bcrypt.DefaultCost}
}

// Register creates an account. A taken username fails with
// store.ErrDuplicate.
func (s *Service) Register(ctx context.Context, r Registration) (*store.User, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), s.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	lang := r.Language
	if lang == "" {
		lang = "English"
	}
	now := s.Now().UTC()
	u := &store.User{
		Username:          strings.TrimSpace(r.Username),
		Name:              strings.TrimSpace(r.Name),
		Grade:             r.Grade,
		Language:          lang,
		PasswordHash:      string(hash),
		WeeklyGoalTopics:  3,
		WeeklyGoalMinutes: 15,
		CurrentSubject:    "Mathematics",
		LastActive:        &now,
		ParentContact:     r.ParentContact,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register %s: %w", u.Username, err)
	}
	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks the credentials and updates the daily streak.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.Now().UTC()
	u.Streak = NextStreak(u.Streak, u.LastActive, now)
	u.LastActive = &now
	if err := s.repo.RecordActivity(ctx, u.ID, u.Streak, now); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	return u, nil
}

// NextStreak returns the streak after activity at now. One full day since
// the last activity extends the streak, a longer gap restarts it at 1 and
// a shorter one leaves it unchanged.
func NextStreak(streak int, lastActive *time.Time, now time.Time) int {
	if lastActive == nil {
		return 1
	}
	switch days := int(now.Sub(*lastActive) / (24 * time.Hour)); {
	case days == 1:
		return streak + 1
	case days > 1:
		return 1
	}
	return streak
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.User, error) {
	return s.repo.Get(ctx, id)
}

// AddXP adds delta to the user's XP total.
func (s *Service) AddXP(ctx context.Context, id int64, delta int) error {
	if err := s.repo.AddXP(ctx, id, delta); err != nil {
		return fmt.Errorf("add xp: %w", err)
	}
	return nil
}
