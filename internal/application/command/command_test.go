package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/memory"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

var (
	admin = user.Actor{UserID: "admin-1", Role: user.RoleAdmin}
	marie = user.Actor{UserID: "marie", Role: user.RoleUser}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	clock     time.Time

	start   *StartSkillHandler
	update  *UpdateSkillStatusHandler
	remove  *RemoveSkillHandler
	restart *RestartSkillHandler
	approve *ApproveSkillHandler
	reject  *RejectSkillHandler
}

func newFixture(t *testing.T, skills int) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		publisher: &recordingPublisher{},
		clock:     time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC),
	}
	f.store.PutUser(user.User{ID: marie.UserID, Username: "marie", FirstName: "Marie", LastName: "Dupont", Role: user.RoleUser, AvatarLevel: 1})
	f.store.PutUser(user.User{ID: admin.UserID, Username: "admin", Role: user.RoleAdmin, AvatarLevel: 1})
	for i := 1; i <= skills; i++ {
		f.store.PutSkill(catalog.Skill{ID: skillID(i), Name: fmt.Sprintf("Skill %d", i), IsActive: true})
	}
	f.store.PutSkill(catalog.Skill{ID: "retired", Name: "Retired skill", IsActive: false})

	var mu sync.Mutex
	tick := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	opts := []Option{WithClock(tick)}

	f.start = NewStartSkillHandler(f.store.Catalog(), f.store, f.publisher, opts...)
	f.update = NewUpdateSkillStatusHandler(f.store, f.publisher, opts...)
	f.remove = NewRemoveSkillHandler(f.store, f.publisher, opts...)
	f.restart = NewRestartSkillHandler(f.store.Catalog(), f.store, f.publisher, opts...)
	f.approve = NewApproveSkillHandler(f.store, f.publisher, opts...)
	f.reject = NewRejectSkillHandler(f.store, f.publisher, opts...)
	return f
}

func skillID(i int) string { return fmt.Sprintf("skill-%d", i) }

func (f *fixture) startPending(t *testing.T, skill string) *progression.Record {
	t.Helper()
	res, err := f.start.Handle(context.Background(), StartSkillCommand{UserID: marie.UserID, SkillID: skill, Status: progression.StatusPendingValidation})
	require.NoError(t, err)
	return res.Record
}

func (f *fixture) level(t *testing.T) int {
	t.Helper()
	lvl, err := f.store.Users().GetAvatarLevel(context.Background(), marie.UserID)
	require.NoError(t, err)
	return lvl
}

// ══════════════════════════════════════════════════════════════════════════════
// START / UPDATE / REMOVE
// ══════════════════════════════════════════════════════════════════════════════

func TestStartSkill(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	res, err := f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, progression.StatusInProgress, res.Record.Status)
	assert.Equal(t, "Skill 1", res.Skill.Name)
	assert.False(t, res.Record.RequestedAt.IsZero())
	assert.Equal(t, []shared.EventType{shared.EventSkillStarted}, f.publisher.types())

	_, err = f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusPendingValidation})
	assert.True(t, shared.IsConflict(err))
}

func TestStartSkill_MissingOrInactiveSkill(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for _, id := range []string{"nope", "retired"} {
		_, err := f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: id, Status: progression.StatusInProgress})
		assert.True(t, shared.IsNotFound(err), id)
	}
	assert.Empty(t, f.store.Snapshot())
}

func TestStartSkill_UnknownUser(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.start.Handle(context.Background(), StartSkillCommand{UserID: "ghost", SkillID: skillID(1), Status: progression.StatusPendingValidation})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.Empty(t, f.store.Snapshot())
	assert.Empty(t, f.publisher.types())
}

func TestStartSkill_RejectsAdminStatus(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.start.Handle(context.Background(), StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusAcquired})
	assert.True(t, shared.IsValidation(err))
}

func TestStartSkill_ConcurrentStartsYieldOneRecord(t *testing.T) {
	f := newFixture(t, 1)
	const n = 20

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.start.Handle(context.Background(), StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusInProgress})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case shared.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Len(t, f.store.Snapshot(), 1)
}

func TestUpdateSkillStatus(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.update.Handle(ctx, UpdateSkillStatusCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusPendingValidation})
	assert.True(t, shared.IsNotFound(err))

	started, err := f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusInProgress})
	require.NoError(t, err)

	res, err := f.update.Handle(ctx, UpdateSkillStatusCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusPendingValidation})
	require.NoError(t, err)
	assert.True(t, res.Changed())
	assert.Equal(t, progression.StatusPendingValidation, res.Record.Status)
	assert.Equal(t, started.Record.RequestedAt, res.Record.RequestedAt)
	assert.Equal(t, started.Record.ID, res.Record.ID)

	res, err = f.update.Handle(ctx, UpdateSkillStatusCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusPendingValidation})
	require.NoError(t, err)
	assert.False(t, res.Changed())

	assert.Equal(t, []shared.EventType{shared.EventSkillStarted, shared.EventValidationRequested}, f.publisher.types())
}

func TestTerminalRecordsAreFrozenForUsers(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	acquired := f.startPending(t, skillID(1))
	_, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: acquired.ID, Admin: admin})
	require.NoError(t, err)

	rejected := f.startPending(t, skillID(2))
	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rejected.ID, Admin: admin, Reason: "incomplet"})
	require.NoError(t, err)

	for _, sk := range []string{skillID(1), skillID(2)} {
		_, err := f.update.Handle(ctx, UpdateSkillStatusCommand{UserID: marie.UserID, SkillID: sk, Status: progression.StatusInProgress})
		assert.True(t, shared.IsInvalidTransition(err), sk)
	}

	err = removeErr(f, skillID(1))
	assert.True(t, shared.IsInvalidTransition(err))

	// rejected records may be abandoned, which frees the pair
	require.NoError(t, removeErr(f, skillID(2)))
	_, err = f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: skillID(2), Status: progression.StatusInProgress})
	assert.NoError(t, err)
}

func removeErr(f *fixture, skill string) error {
	_, err := f.remove.Handle(context.Background(), RemoveSkillCommand{UserID: marie.UserID, SkillID: skill})
	return err
}

func TestRemoveSkill_NotFound(t *testing.T) {
	f := newFixture(t, 1)
	assert.True(t, shared.IsNotFound(removeErr(f, skillID(1))))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESTART
// ══════════════════════════════════════════════════════════════════════════════

func TestRestartSkill(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	cmd := RestartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusInProgress}

	_, err := f.restart.Handle(ctx, cmd)
	assert.True(t, shared.IsNotFound(err))

	rec := f.startPending(t, skillID(1))
	_, err = f.restart.Handle(ctx, cmd)
	assert.True(t, shared.IsInvalidTransition(err))

	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: "a revoir"})
	require.NoError(t, err)

	res, err := f.restart.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.Previous.ID)
	assert.NotEqual(t, rec.ID, res.Record.ID)
	assert.Equal(t, progression.StatusInProgress, res.Record.Status)
	assert.Nil(t, res.Record.RejectionReason)

	all := f.store.Snapshot()
	require.Len(t, all, 1)
	assert.Equal(t, res.Record.ID, all[0].ID)
}

// ══════════════════════════════════════════════════════════════════════════════
// APPROVE / REJECT
// ══════════════════════════════════════════════════════════════════════════════

func TestScenarioA_StartRequestApprove(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	started, err := f.start.Handle(ctx, StartSkillCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusInProgress})
	require.NoError(t, err)
	_, err = f.update.Handle(ctx, UpdateSkillStatusCommand{UserID: marie.UserID, SkillID: skillID(1), Status: progression.StatusPendingValidation})
	require.NoError(t, err)

	res, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: started.Record.ID, Admin: admin})
	require.NoError(t, err)

	assert.Equal(t, progression.StatusAcquired, res.Record.Status)
	require.NotNil(t, res.Record.ValidatedAt)
	assert.Equal(t, admin.UserID, *res.Record.ValidatedBy)
	assert.Equal(t, 1, res.AcquiredCount)
	assert.Equal(t, 1, res.AvatarLevel)
	assert.Equal(t, 1, f.level(t))
	assert.True(t, res.Record.IsConsistent())
}

func TestScenarioB_RejectKeepsLevel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	rec := f.startPending(t, skillID(1))

	res, err := f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: "Geste non maîtrisé"})
	require.NoError(t, err)

	assert.Equal(t, progression.StatusRejected, res.Record.Status)
	assert.Equal(t, "Geste non maîtrisé", *res.Record.RejectionReason)
	assert.Equal(t, 1, f.level(t))

	stored, err := f.store.Records().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Geste non maîtrisé", *stored.RejectionReason)
}

func TestScenarioC_ThirdApprovalLevelsUp(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	var last *ApproveSkillResult
	for i := 1; i <= 3; i++ {
		rec := f.startPending(t, skillID(i))
		res, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
		require.NoError(t, err)
		last = res
	}

	assert.Equal(t, 1, last.PreviousLevel)
	assert.Equal(t, 2, last.AvatarLevel)
	assert.True(t, last.LevelChanged())
	assert.Equal(t, 2, f.level(t))
	assert.Contains(t, f.publisher.types(), shared.EventAvatarLevelChanged)
}

func TestScenarioD_ConcurrentApprovalsForOneUser(t *testing.T) {
	const n = 6
	f := newFixture(t, n)
	ctx := context.Background()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.startPending(t, skillID(i+1)).ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: id, Admin: admin})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, progression.AvatarLevel(n), f.level(t))
}

func TestApprove_RecomputesStaleLevel(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.store.PutUser(user.User{ID: marie.UserID, Username: "marie", AvatarLevel: 5})

	rec := f.startPending(t, skillID(1))
	res, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
	require.NoError(t, err)
	assert.Equal(t, 5, res.PreviousLevel)
	assert.Equal(t, 1, res.AvatarLevel)
	assert.Equal(t, 1, f.level(t))
}

func TestApprove_IsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	rec := f.startPending(t, skillID(1))

	first, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
	require.NoError(t, err)
	second, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
	require.NoError(t, err)

	assert.True(t, first.Applied)
	assert.False(t, second.Applied)
	assert.Equal(t, *first.Record.ValidatedAt, *second.Record.ValidatedAt)
	assert.Equal(t, 1, second.AcquiredCount)

	approvals := 0
	for _, et := range f.publisher.types() {
		if et == shared.EventSkillApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestApprove_Errors(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.approve.Handle(ctx, ApproveSkillCommand{RecordID: "6a3e0c5e-4a52-4b0e-9a7b-0d8c1b2f3e4a", Admin: admin})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.approve.Handle(ctx, ApproveSkillCommand{RecordID: "not-a-uuid", Admin: admin})
	assert.True(t, shared.IsNotFound(err))

	rec := f.startPending(t, skillID(1))
	_, err = f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: marie})
	assert.True(t, shared.IsForbidden(err))

	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: "non"})
	require.NoError(t, err)
	_, err = f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
	assert.True(t, shared.IsInvalidTransition(err))
}

func TestReject_Errors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	rec := f.startPending(t, skillID(1))

	_, err := f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: ""})
	assert.True(t, shared.IsValidation(err))

	long := make([]byte, progression.MaxRejectionReasonLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: string(long)})
	assert.True(t, shared.IsValidation(err))

	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: "6a3e0c5e-4a52-4b0e-9a7b-0d8c1b2f3e4a", Admin: admin, Reason: "x"})
	assert.True(t, shared.IsNotFound(err))

	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: user.Actor{}, Reason: "x"})
	assert.True(t, shared.IsUnauthorized(err))

	_, err = f.approve.Handle(ctx, ApproveSkillCommand{RecordID: rec.ID, Admin: admin})
	require.NoError(t, err)
	_, err = f.reject.Handle(ctx, RejectSkillCommand{RecordID: rec.ID, Admin: admin, Reason: "too late"})
	assert.True(t, shared.IsInvalidTransition(err))

	stored, err := f.store.Records().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, progression.StatusAcquired, stored.Status)
}
