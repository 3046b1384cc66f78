package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/bookmyseat/internal/model"
	"github.com/iliyamo/bookmyseat/internal/utils"
)

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryUsers()

	id, err := users.Create(ctx, " Ada ", "Ada@Uni.test", " cs-1 ", "correct-horse", model.RoleStudent, bcrypt.MinCost)
	require.NoError(t, err)

	u, err := users.GetByEmail(ctx, "ada@uni.test")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "Ada", u.Name)
	assert.Equal(t, "CS-1", u.RollNumber)
	assert.True(t, u.IsActive)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "correct-horse"))

	_, err = users.Create(ctx, "B", "ada@uni.test", "CS-2", "correct-horse", model.RoleStudent, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
	_, err = users.Create(ctx, "B", "b@uni.test", "cs-1", "correct-horse", model.RoleStudent, bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrRollExists)

	_, err = users.GetByRoll(ctx, "CS-1")
	assert.NoError(t, err)
	_, err = users.GetByID(ctx, 99)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestMemoryTokens(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokens()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, tokens.StoreRefresh(ctx, 7, "a", exp))
	uid, err := tokens.ValidateRefresh(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)

	require.NoError(t, tokens.RotateRefresh(ctx, 7, "a", "b", exp))
	_, err = tokens.ValidateRefresh(ctx, "a")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, tokens.RotateRefresh(ctx, 7, "a", "c", exp), sql.ErrNoRows)

	require.NoError(t, tokens.StoreRefresh(ctx, 7, "old", time.Now().Add(-48*time.Hour)))
	_, err = tokens.ValidateRefresh(ctx, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, tokens.RevokeAllForUser(ctx, 7))
	_, err = tokens.ValidateRefresh(ctx, "b")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	n, err := tokens.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
