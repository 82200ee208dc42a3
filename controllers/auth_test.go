package controllers

import (
	"encoding/json"
	"errors"
	"testing"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)

	tests := []struct {
		name   string
		body   fiber.Map
		status int
		errMsg string
	}{
		{
			name:   "enrolls into class",
			body:   fiber.Map{"name": "Andi", "email": " Andi@School.Test ", "password": "secret1", "confirm_password": "secret1", "class_id": class.ID},
			status: fiber.StatusCreated,
		},
		{
			name:   "duplicate email",
			body:   fiber.Map{"name": "Andi", "email": "andi@school.test", "password": "secret1", "confirm_password": "secret1"},
			status: fiber.StatusConflict,
			errMsg: "email already registered",
		},
		{
			name:   "passwords differ",
			body:   fiber.Map{"name": "Rina", "email": "rina@school.test", "password": "secret1", "confirm_password": "secret2"},
			status: fiber.StatusBadRequest,
			errMsg: "passwords do not match",
		},
		{
			name:   "weak password",
			body:   fiber.Map{"name": "Rina", "email": "rina@school.test", "password": "abcdef", "confirm_password": "abcdef"},
			status: fiber.StatusBadRequest,
		},
		{
			name:   "bad email",
			body:   fiber.Map{"name": "Rina", "email": "rina-at-school", "password": "secret1", "confirm_password": "secret1"},
			status: fiber.StatusBadRequest,
			errMsg: "invalid email format",
		},
		{
			name:   "unknown class",
			body:   fiber.Map{"name": "Rina", "email": "rina@school.test", "password": "secret1", "confirm_password": "secret1", "class_id": 999},
			status: fiber.StatusBadRequest,
			errMsg: "class not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.call(t, "POST", "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, status, body.Error)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body.Error)
			}
		})
	}

	var user models.User
	require.NoError(t, env.db.Where("email = ?", "andi@school.test").First(&user).Error)
	assert.Equal(t, models.RoleStudent, user.Role)
	var enrolled int64
	env.db.Model(&models.Enrollment{}).Where("student_id = ? AND class_id = ?", user.ID, class.ID).Count(&enrolled)
	assert.EqualValues(t, 1, enrolled)

	var rina int64
	env.db.Model(&models.User{}).Where("email = ?", "rina@school.test").Count(&rina)
	assert.Zero(t, rina, "failed registration must not create the account")
}

func TestRegisterTeacher(t *testing.T) {
	env := newTestEnv(t)
	c1 := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	c2 := dbtest.CreateClass(t, env.db, "7B", "7", 0)

	status, body := env.call(t, "POST", "/api/auth/register-teacher", "", fiber.Map{
		"name": "Budi", "email": "budi@school.test", "password": "secret1", "confirm_password": "secret1",
		"subject": "Math", "class_ids": []uint{c1.ID, c2.ID, c1.ID}, "homeroom_class_id": c2.ID,
	})
	require.Equal(t, fiber.StatusCreated, status, body.Error)

	var teacher models.User
	require.NoError(t, env.db.Where("email = ?", "budi@school.test").First(&teacher).Error)
	assert.Equal(t, models.RoleTeacher, teacher.Role)
	assert.Equal(t, "Math", teacher.Subject)

	var teaching int64
	env.db.Model(&models.TeachingAssignment{}).Where("teacher_id = ?", teacher.ID).Count(&teaching)
	assert.EqualValues(t, 2, teaching)

	var homeroom models.Class
	require.NoError(t, env.db.First(&homeroom, c2.ID).Error)
	require.NotNil(t, homeroom.HomeroomTeacherID)
	assert.Equal(t, teacher.ID, *homeroom.HomeroomTeacherID)

	status, _ = env.call(t, "POST", "/api/auth/register-teacher", "", fiber.Map{
		"name": "Dewi", "email": "dewi@school.test", "password": "secret1", "confirm_password": "secret1",
	})
	assert.Equal(t, fiber.StatusBadRequest, status, "subject is required")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.CreateUser(t, env.db, "siti", models.RoleHeadmaster, "secret1")

	status, body := env.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": user.Email, "password": "secret1"})
	require.Equal(t, fiber.StatusOK, status, body.Error)

	var data struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.NotEmpty(t, data.Token)
	assert.Equal(t, 1, data.User.LoginCount)
	assert.NotNil(t, data.User.LastLoginAt)

	status, body = env.call(t, "GET", "/api/auth/profile", data.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var profile userResponse
	require.NoError(t, json.Unmarshal(body.Data, &profile))
	assert.Equal(t, user.ID, profile.ID)

	t.Run("inactive user cannot log in", func(t *testing.T) {
		dbtest.Deactivate(t, env.db, &user)
		status, body := env.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": user.Email, "password": "secret1"})
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Equal(t, msgInvalidCredentials, body.Error)
	})
}

func TestLoginLockout(t *testing.T) {
	env := newTestEnv(t)
	user := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "secret1")

	for i := 0; i < 5; i++ {
		status, _ := env.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": user.Email, "password": "wrong1"})
		require.Equal(t, fiber.StatusUnauthorized, status, "attempt %d", i+1)
	}

	// locked even with the right password
	status, body := env.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": user.Email, "password": "secret1"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	var data struct {
		RetryAfter int `json:"retry_after"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Greater(t, data.RetryAfter, 0)
	assert.LessOrEqual(t, data.RetryAfter, 600)

	// other identifiers are unaffected
	other := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "secret1")
	status, _ = env.call(t, "POST", "/api/auth/login", "", fiber.Map{"email": other.Email, "password": "secret1"})
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRoleGuard(t *testing.T) {
	env := newTestEnv(t)
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")

	status, _ := env.call(t, "POST", "/api/headmaster/teachers", tokenFor(t, student), fiber.Map{})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = env.call(t, "POST", "/api/headmaster/teachers", "", fiber.Map{})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	t.Run("deactivated account loses access", func(t *testing.T) {
		tok := tokenFor(t, student)
		dbtest.Deactivate(t, env.db, &student)
		status, _ := env.call(t, "GET", "/api/student/materials", tok, nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestCreateAccountDuplicateIsConflict(t *testing.T) {
	db := dbtest.Open(t)
	existing := dbtest.CreateUser(t, db, "first", models.RoleStudent, "")

	// a second insert that got past the emailTaken check
	dup := &models.User{Name: "second", Email: existing.Email, PasswordHash: "x", Role: models.RoleStudent, Status: models.StatusActive}
	err := createAccount(db, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConflict))
	assert.Equal(t, "email already registered", err.Error())

	fresh := &models.User{Name: "third", Email: "third@school.test", PasswordHash: "x", Role: models.RoleStudent, Status: models.StatusActive}
	require.NoError(t, createAccount(db, fresh))
	assert.NotZero(t, fresh.ID)
}
