package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteSingleUse(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateInvite(ctx, "ops@example.com", "tok-1", time.Now().Add(time.Hour), "bootstrap")
	require.NoError(t, err)

	_, err = r.RegisterWithInvite(ctx, "tok-1", uuid.NewString(), "alice", "Alice", "passphrase-123", true)
	require.NoError(t, err)

	// 第二次消费在条件更新上落空
	_, err = r.RegisterWithInvite(ctx, "tok-1", uuid.NewString(), "bob", "Bob", "passphrase-123", true)
	require.True(t, IsConflict(err))
}

func TestInviteExpired(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateInvite(ctx, "ops@example.com", "tok-2", time.Now().Add(-time.Minute), "bootstrap")
	require.NoError(t, err)

	_, err = r.RegisterWithInvite(ctx, "tok-2", uuid.NewString(), "alice", "Alice", "passphrase-123", true)
	require.True(t, IsConflict(err))
}

// 建号失败时整个事务回滚，token 必须还能用
func TestInviteSurvivesFailedRegistration(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.CreateUser(ctx, uuid.NewString(), "alice", "Alice", "passphrase-123", true)
	require.NoError(t, err)

	_, err = r.CreateInvite(ctx, "ops@example.com", "tok-3", time.Now().Add(time.Hour), "bootstrap")
	require.NoError(t, err)

	// 用户名撞唯一索引 → Conflict，邀请回滚为未消费
	_, err = r.RegisterWithInvite(ctx, "tok-3", uuid.NewString(), "alice", "Alice 2", "passphrase-123", true)
	require.True(t, IsConflict(err))

	inv, err := r.GetInviteByToken(ctx, "tok-3")
	require.NoError(t, err)
	assert.Nil(t, inv.UsedAt)

	// 换个用户名立刻能成
	u, err := r.RegisterWithInvite(ctx, "tok-3", uuid.NewString(), "anna", "Anna", "passphrase-123", true)
	require.NoError(t, err)
	assert.Equal(t, "anna", u.Username)

	inv, err = r.GetInviteByToken(ctx, "tok-3")
	require.NoError(t, err)
	assert.NotNil(t, inv.UsedAt)
}
