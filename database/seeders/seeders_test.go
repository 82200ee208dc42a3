package seeders

import (
	"testing"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedAll(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, SeedAll(db, "demo123"))

	var users []models.User
	require.NoError(t, db.Order("id").Find(&users).Error)
	require.Len(t, users, 6)
	assert.Equal(t, models.RoleHeadmaster, users[0].Role)
	assert.NoError(t, utils.CheckPassword("demo123", users[0].PasswordHash))

	var classes, materials, links int64
	db.Model(&models.Class{}).Count(&classes)
	db.Model(&models.Material{}).Count(&materials)
	db.Model(&models.MaterialClass{}).Count(&links)
	assert.EqualValues(t, 2, classes)
	assert.EqualValues(t, 2, materials)
	assert.EqualValues(t, 3, links)

	t.Run("second run is a no-op", func(t *testing.T) {
		require.NoError(t, SeedAll(db, "other1"))
		var n int64
		db.Model(&models.User{}).Count(&n)
		assert.EqualValues(t, 6, n)
	})
}
