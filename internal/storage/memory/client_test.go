package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.PutSession(ctx, &model.Session{ID: "s1", UserID: 7, Role: model.RoleTenant}, time.Minute))

	s, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(7), s.UserID)
	assert.Equal(t, model.RoleTenant, s.Role)

	now = now.Add(2 * time.Minute)
	s, err = c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.PutSession(ctx, &model.Session{ID: "s2", UserID: 1, Role: model.RoleAdmin}, time.Hour))
	require.NoError(t, c.DeleteSession(ctx, "s2"))

	s, err := c.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, s)
}
