package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/seed"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.PutUser(user.User{ID: "u1", Username: "marie", FirstName: "Marie", LastName: "Dupont", Role: user.RoleUser})
	s.PutSkill(catalog.Skill{ID: "s1", Name: "Porter des charges", IsActive: true})
	s.PutSkill(catalog.Skill{ID: "s2", Name: "Envoyer un email", IsActive: true})
	return s
}

func mustRecord(t *testing.T, userID, skillID string, st progression.Status, at time.Time) *progression.Record {
	t.Helper()
	r, err := progression.NewRecord(userID, skillID, st, at)
	require.NoError(t, err)
	return r
}

func TestRecordRepo_CreateEnforcesPairUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Records().Create(ctx, mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)))
	err := s.Records().Create(ctx, mustRecord(t, "u1", "s1", progression.StatusPendingValidation, t0))
	assert.True(t, shared.IsConflict(err))

	got, err := s.Records().GetByUserSkill(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, progression.StatusInProgress, got.Status)
}

func TestRecordRepo_DeleteFreesPair(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)
	require.NoError(t, s.Records().Create(ctx, r))

	require.NoError(t, s.Records().Delete(ctx, r.ID))
	assert.True(t, shared.IsNotFound(s.Records().Delete(ctx, r.ID)))
	assert.NoError(t, s.Records().Create(ctx, mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)))
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	boom := errors.New("boom")

	err := s.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		require.NoError(t, tx.Records().Create(ctx, mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)))
		require.NoError(t, tx.Users().SetAvatarLevel(ctx, "u1", 4))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Empty(t, s.Snapshot())
	lvl, err := s.Users().GetAvatarLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, lvl)
}

func TestUnitOfWork_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	assert.Panics(t, func() {
		_ = s.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
			_ = tx.Users().SetAvatarLevel(ctx, "u1", 3)
			panic("crash mid-transaction")
		})
	})

	lvl, err := s.Users().GetAvatarLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, lvl)

	// the writer lock must have been released
	assert.NoError(t, s.Do(ctx, func(ctx context.Context, tx progression.Tx) error { return nil }))
}

func TestUnitOfWork_Commits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		require.NoError(t, tx.LockUser(ctx, "u1"))
		if err := tx.Records().Create(ctx, mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)); err != nil {
			return err
		}
		return tx.Users().SetAvatarLevel(ctx, "u1", 2)
	})
	require.NoError(t, err)

	assert.Len(t, s.Snapshot(), 1)
	lvl, err := s.Users().GetAvatarLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, lvl)
}

func TestUnitOfWork_LockUnknownUser(t *testing.T) {
	s := newStore(t)
	err := s.Do(context.Background(), func(ctx context.Context, tx progression.Tx) error {
		return tx.LockUser(ctx, "ghost")
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestRecordRepo_Listings(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	older := mustRecord(t, "u1", "s1", progression.StatusPendingValidation, t0)
	newer := mustRecord(t, "u1", "s2", progression.StatusPendingValidation, t0.Add(time.Hour))
	require.NoError(t, s.Records().Create(ctx, newer))
	require.NoError(t, s.Records().Create(ctx, older))

	queue, err := s.Records().ListByStatus(ctx, progression.StatusPendingValidation)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, older.ID, queue[0].ID)
	require.NotNil(t, queue[0].User)
	assert.Equal(t, "marie", queue[0].User.Username)
	assert.Equal(t, "Porter des charges", queue[0].Skill.Name)

	mine, err := s.Records().ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, newer.ID, mine[0].ID)
	assert.Nil(t, mine[0].User)

	counts, err := s.Records().CountsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[progression.StatusPendingValidation])
	assert.Equal(t, 0, counts[progression.StatusAcquired])
	assert.Len(t, counts, 4)
}

func TestRecordRepo_UpdateKeepsRequestedAt(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := mustRecord(t, "u1", "s1", progression.StatusInProgress, t0)
	require.NoError(t, s.Records().Create(ctx, r))

	r.RequestedAt = t0.Add(48 * time.Hour)
	r.Status = progression.StatusPendingValidation
	require.NoError(t, s.Records().Update(ctx, r))

	got, err := s.Records().GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, t0, got.RequestedAt)
	assert.Equal(t, progression.StatusPendingValidation, got.Status)
}

func TestNewDemoStore(t *testing.T) {
	s := NewDemoStore()
	ctx := context.Background()

	admin, err := s.Users().GetUser(ctx, seed.ID("user", "admin"))
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, admin.Role)

	for _, sk := range seed.Skills() {
		got, err := s.Catalog().GetSkill(ctx, sk.ID)
		require.NoError(t, err)
		assert.True(t, got.IsAvailable())
		assert.NotEmpty(t, got.Category.Domain.Name)
	}
	assert.Empty(t, s.Snapshot())
}

func TestRecordRepo_CreateRequiresKnownUserAndSkill(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.Records().Create(ctx, mustRecord(t, "ghost", "s1", progression.StatusPendingValidation, t0))
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	err = s.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
		return tx.Records().Create(ctx, mustRecord(t, "u1", "missing", progression.StatusInProgress, t0))
	})
	assert.ErrorIs(t, err, shared.ErrSkillNotFound)

	assert.Empty(t, s.Snapshot())
}

func TestRecordRepo_UpdateRequiresKnownValidator(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	r := mustRecord(t, "u1", "s1", progression.StatusPendingValidation, t0)
	require.NoError(t, s.Records().Create(ctx, r))

	_, err := r.Approve("deleted-admin", t0.Add(time.Hour))
	require.NoError(t, err)
	err = s.Records().Update(ctx, r)
	assert.ErrorIs(t, err, shared.ErrUnknownValidator)
	assert.True(t, shared.IsForbidden(err))

	got, err := s.Records().GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.StatusPendingValidation, got.Status)
}

func TestPutUser_WaitsForRunningUnitOfWork(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Do(ctx, func(ctx context.Context, tx progression.Tx) error {
			close(inside)
			<-release
			return tx.Users().SetAvatarLevel(ctx, "u1", 2)
		})
	}()
	<-inside

	put := make(chan struct{})
	go func() {
		s.PutUser(user.User{ID: "u2", Username: "pierre", Role: user.RoleUser})
		close(put)
	}()
	close(release)

	require.NoError(t, <-done)
	<-put

	_, err := s.Users().GetUser(ctx, "u2")
	require.NoError(t, err, "user added during a unit of work must survive its commit")
	lvl, err := s.Users().GetAvatarLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, lvl)
}
