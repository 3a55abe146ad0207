package memory

import (
	"context"
	"sort"

	"github.com/esat-hub/skills-hub/internal/domain/catalog"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type recordRepo struct {
	acc accessor
}

func (r *recordRepo) Create(_ context.Context, record *progression.Record) error {
	return r.acc.write(func(st *state) error {
		if _, ok := st.users[record.UserID]; !ok {
			return shared.ErrUserNotFound
		}
		if _, ok := st.skills[record.SkillID]; !ok {
			return shared.ErrSkillNotFound
		}
		key := pairKey{record.UserID, record.SkillID}
		if _, exists := st.byPair[key]; exists {
			return shared.ErrRecordAlreadyExists
		}
		if _, exists := st.records[record.ID]; exists {
			return shared.ErrRecordAlreadyExists
		}
		st.records[record.ID] = record.Clone()
		st.byPair[key] = record.ID
		return nil
	})
}

func (r *recordRepo) Update(_ context.Context, record *progression.Record) error {
	return r.acc.write(func(st *state) error {
		existing, ok := st.records[record.ID]
		if !ok {
			return shared.ErrRecordNotFound
		}
		if record.ValidatedBy != nil {
			if _, ok := st.users[*record.ValidatedBy]; !ok {
				return shared.ErrUnknownValidator
			}
		}
		// identity and requestedAt are immutable
		updated := record.Clone()
		updated.UserID = existing.UserID
		updated.SkillID = existing.SkillID
		updated.RequestedAt = existing.RequestedAt
		st.records[record.ID] = updated
		return nil
	})
}

func (r *recordRepo) Delete(_ context.Context, id string) error {
	return r.acc.write(func(st *state) error {
		existing, ok := st.records[id]
		if !ok {
			return shared.ErrRecordNotFound
		}
		delete(st.byPair, pairKey{existing.UserID, existing.SkillID})
		delete(st.records, id)
		return nil
	})
}

func (r *recordRepo) GetByID(_ context.Context, id string) (*progression.Record, error) {
	var out *progression.Record
	err := r.acc.read(func(st *state) error {
		rec, ok := st.records[id]
		if !ok {
			return shared.ErrRecordNotFound
		}
		out = rec.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: units of work are serialised.
func (r *recordRepo) GetByIDForUpdate(ctx context.Context, id string) (*progression.Record, error) {
	return r.GetByID(ctx, id)
}

func (r *recordRepo) GetByUserSkill(_ context.Context, userID, skillID string) (*progression.Record, error) {
	var out *progression.Record
	err := r.acc.read(func(st *state) error {
		id, ok := st.byPair[pairKey{userID, skillID}]
		if !ok {
			return shared.ErrRecordNotFound
		}
		out = st.records[id].Clone()
		return nil
	})
	return out, err
}

func (r *recordRepo) GetByUserSkillForUpdate(ctx context.Context, userID, skillID string) (*progression.Record, error) {
	return r.GetByUserSkill(ctx, userID, skillID)
}

func (r *recordRepo) CountByStatus(_ context.Context, userID string, status progression.Status) (int, error) {
	n := 0
	err := r.acc.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.UserID == userID && rec.Status == status {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *recordRepo) CountsByUser(_ context.Context, userID string) (progression.StatusCounts, error) {
	counts := progression.NewStatusCounts()
	err := r.acc.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.UserID == userID {
				counts[rec.Status]++
			}
		}
		return nil
	})
	return counts, err
}

func (r *recordRepo) ListByUser(_ context.Context, userID string) ([]progression.RecordView, error) {
	views := make([]progression.RecordView, 0)
	err := r.acc.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.UserID == userID {
				views = append(views, st.view(rec, false))
			}
		}
		return nil
	})
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.After(b.RequestedAt)
		}
		return a.ID > b.ID
	})
	return views, err
}

func (r *recordRepo) ListByStatus(_ context.Context, status progression.Status) ([]progression.RecordView, error) {
	views := make([]progression.RecordView, 0)
	err := r.acc.read(func(st *state) error {
		for _, rec := range st.records {
			if rec.Status == status {
				views = append(views, st.view(rec, true))
			}
		}
		return nil
	})
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ID < b.ID
	})
	return views, err
}

func (st *state) view(rec *progression.Record, withUser bool) progression.RecordView {
	v := progression.RecordView{Record: *rec.Clone()}
	if sk, ok := st.skills[rec.SkillID]; ok {
		v.Skill = *sk
	} else {
		v.Skill = catalog.Skill{ID: rec.SkillID}
	}
	if withUser {
		rv := &progression.RequesterView{ID: rec.UserID}
		if u, ok := st.users[rec.UserID]; ok {
			rv.FirstName = u.FirstName
			rv.LastName = u.LastName
			rv.Username = u.Username
		}
		v.User = rv
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

type userDirectory struct {
	acc accessor
}

func (d *userDirectory) GetUser(_ context.Context, userID string) (*user.User, error) {
	var out *user.User
	err := d.acc.read(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return shared.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

func (d *userDirectory) GetAvatarLevel(ctx context.Context, userID string) (int, error) {
	u, err := d.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u.AvatarLevel < progression.MinAvatarLevel {
		return user.DefaultAvatarLevel, nil
	}
	return u.AvatarLevel, nil
}

func (d *userDirectory) SetAvatarLevel(_ context.Context, userID string, level int) error {
	return d.acc.write(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return shared.ErrUserNotFound
		}
		u.AvatarLevel = level
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

type skillCatalog struct {
	acc accessor
}

func (c *skillCatalog) GetSkill(_ context.Context, skillID string) (*catalog.Skill, error) {
	var out *catalog.Skill
	err := c.acc.read(func(st *state) error {
		sk, ok := st.skills[skillID]
		if !ok {
			return shared.ErrSkillNotFound
		}
		cp := *sk
		out = &cp
		return nil
	})
	return out, err
}
