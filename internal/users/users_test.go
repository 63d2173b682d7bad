package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/store/storetest"
)

func newService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	svc := New(storetest.New(t).Users(), nil)
	svc.Cost = bcrypt.MinCost
	svc.Now = func() time.Time { return *now }
	return svc
}

func validRegistration() Registration {
	return Registration{Username: "asha", Name: "Asha", Password: "secret1", Grade: 7}
}

func TestRegister(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)
	ctx := context.Background()

	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "English", u.Language)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.Zero(t, u.Streak)
	require.NotNil(t, u.LastActive)

	_, err = svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Registration)
		field string
	}{
		{"short username", func(r *Registration) { r.Username = "ab" }, "username"},
		{"short name", func(r *Registration) { r.Name = "A" }, "name"},
		{"short password", func(r *Registration) { r.Password = "12345" }, "password"},
		{"grade too low", func(r *Registration) { r.Grade = 5 }, "grade"},
		{"grade too high", func(r *Registration) { r.Grade = 13 }, "grade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.edit(&r)
			err := r.Validate()
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoginStreak(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newService(t, &now)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{time.Hour, 0},
		{25 * time.Hour, 1},
		{24 * time.Hour, 2},
		{3 * time.Hour, 2},
		{72 * time.Hour, 1},
	}
	for i, step := range steps {
		now = now.Add(step.advance)
		u, err := svc.Login(ctx, "asha", "secret1")
		require.NoError(t, err, "login %d", i)
		assert.Equal(t, step.want, u.Streak, "login %d", i)

		stored, err := svc.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, step.want, stored.Streak)
		assert.True(t, stored.LastActive.Equal(now), "login %d: last active %v, want %v", i, stored.LastActive, now)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	now := time.Now()
	svc := newService(t, &now)
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "asha", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNextStreak(t *testing.T) {
	base := time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		last   *time.Time
		now    time.Time
		streak int
		want   int
	}{
		{"first activity", nil, base, 0, 1},
		{"same day", &base, base.Add(2 * time.Hour), 4, 4},
		{"next day", &base, base.Add(30 * time.Hour), 4, 5},
		{"gap", &base, base.Add(49 * time.Hour), 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStreak(tt.streak, tt.last, tt.now))
		})
	}
}

func TestAddXP(t *testing.T) {
	now := time.Now()
	svc := newService(t, &now)
	ctx := context.Background()
	u, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	require.NoError(t, svc.AddXP(ctx, u.ID, 30))
	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.XPPoints)

	assert.ErrorIs(t, svc.AddXP(ctx, 999, 5), store.ErrNotFound)
}
