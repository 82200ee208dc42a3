package services

import (
	"context"
	"testing"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "class 7a", normalizeName("  Class   7A "))
	assert.Equal(t, "", normalizeName("   "))
}

func TestLineGroupMatcher(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	c7a := dbtest.CreateClass(t, db, "7A", "7", 0)
	dbtest.CreateClass(t, db, "8B", "8", 0)
	m := NewLineGroupMatcher(db)

	t.Run("matches prefixed group name", func(t *testing.T) {
		cl, err := m.Link(ctx, "Cgroup1", "Class  7a")
		require.NoError(t, err)
		require.NotNil(t, cl)
		assert.Equal(t, c7a.ID, cl.ID)

		var stored models.Class
		require.NoError(t, db.First(&stored, c7a.ID).Error)
		assert.Equal(t, "Cgroup1", stored.LineGroupID)
	})

	t.Run("unknown group is ignored", func(t *testing.T) {
		cl, err := m.Link(ctx, "Cgroup2", "Parents chat")
		require.NoError(t, err)
		assert.Nil(t, cl)
	})

	t.Run("unlink clears the group", func(t *testing.T) {
		n, err := m.Unlink(ctx, "Cgroup1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		var stored models.Class
		require.NoError(t, db.First(&stored, c7a.ID).Error)
		assert.Empty(t, stored.LineGroupID)
	})
}
