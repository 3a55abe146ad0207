package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/seed"
)

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Skills int
	Users  int
}

// Seed upserts the demo catalog and accounts in one transaction. It is safe
// to run repeatedly; avatar levels of existing users are preserved.
func Seed(ctx context.Context, conn *Connection) (SeedResult, error) {
	var res SeedResult
	err := conn.WithTx(ctx, func(tx pgx.Tx) error {
		cat := NewCatalogRepository(tx)
		for _, sk := range seed.Skills() {
			if err := cat.UpsertSkill(ctx, sk); err != nil {
				return err
			}
			res.Skills++
		}

		users := NewUserRepository(tx)
		for _, u := range seed.Users() {
			if err := users.Upsert(ctx, u); err != nil {
				return err
			}
			res.Users++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return res, nil
}
