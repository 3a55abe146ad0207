package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "postgres://u:p@db:5432/skills?sslmode=disable"
	cfg.MaxConns = 7

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "skills", pc.ConnConfig.Database)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
}

func TestConfig_PoolConfigRejectsBadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "postgres://%zz"

	_, err := cfg.PoolConfig()
	assert.Error(t, err)
}

func TestNewConnection_BadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "postgres://%zz"

	_, err := NewConnection(context.Background(), cfg)
	assert.Error(t, err)
}

func TestErrorHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503", ConstraintName: fkRecordSkill}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.Equal(t, fkRecordSkill, constraintName(fmt.Errorf("create: %w", fk)))
	assert.Empty(t, constraintName(errors.New("other")))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}

func TestIsUUID(t *testing.T) {
	assert.True(t, isUUID("6f1c2b8e-3a57-4d0b-9a43-2f4c1e9d7b10"))
	assert.False(t, isUUID("not-a-uuid"))
	assert.False(t, isUUID(""))
}
