package controllers

import (
	"encoding/json"
	"fmt"
	"testing"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTeacher(t *testing.T) {
	env := newTestEnv(t)
	head := dbtest.CreateUser(t, env.db, "siti", models.RoleHeadmaster, "")
	tok := tokenFor(t, head)
	body := fiber.Map{"name": "Budi", "email": "budi@school.test", "password": "secret1", "subject": "Math"}

	status, resp := env.call(t, "POST", "/api/headmaster/teachers", tok, body)
	require.Equal(t, fiber.StatusCreated, status, resp.Error)

	var teacher models.User
	require.NoError(t, env.db.Where("email = ?", "budi@school.test").First(&teacher).Error)
	assert.Equal(t, models.RoleTeacher, teacher.Role)
	require.NotNil(t, teacher.CreatedBy)
	assert.Equal(t, head.ID, *teacher.CreatedBy)

	env.mailer.mu.Lock()
	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "budi@school.test", env.mailer.sent[0].ToEmail)
	env.mailer.mu.Unlock()

	status, _ = env.call(t, "POST", "/api/headmaster/teachers", tok, body)
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestDeleteTeacher(t *testing.T) {
	env := newTestEnv(t)
	head := dbtest.CreateUser(t, env.db, "siti", models.RoleHeadmaster, "")
	homeroom := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	plain := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", homeroom.ID)
	dbtest.Teach(t, env.db, plain.ID, class.ID, "Science")
	dbtest.CreateMaterial(t, env.db, plain.ID, "Cells", class.ID)
	tok := tokenFor(t, head)

	status, _ := env.call(t, "DELETE", fmt.Sprintf("/api/headmaster/teachers/%d", homeroom.ID), tok, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = env.call(t, "DELETE", "/api/headmaster/teachers/9999", tok, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := env.call(t, "DELETE", fmt.Sprintf("/api/headmaster/teachers/%d", plain.ID), tok, nil)
	require.Equal(t, fiber.StatusOK, status, body.Error)

	var users, materials, teaching int64
	env.db.Model(&models.User{}).Where("id = ?", plain.ID).Count(&users)
	env.db.Model(&models.Material{}).Where("teacher_id = ?", plain.ID).Count(&materials)
	env.db.Model(&models.TeachingAssignment{}).Where("teacher_id = ?", plain.ID).Count(&teaching)
	assert.Zero(t, users)
	assert.Zero(t, materials)
	assert.Zero(t, teaching)
}

func TestEnrollStudent(t *testing.T) {
	env := newTestEnv(t)
	head := dbtest.CreateUser(t, env.db, "siti", models.RoleHeadmaster, "")
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	tok := tokenFor(t, head)
	path := fmt.Sprintf("/api/headmaster/classes/%d/students", class.ID)

	status, _ := env.call(t, "POST", path, tok, fiber.Map{"student_id": student.ID})
	assert.Equal(t, fiber.StatusCreated, status)

	status, _ = env.call(t, "POST", path, tok, fiber.Map{"student_id": student.ID})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = env.call(t, "POST", path, tok, fiber.Map{"student_id": teacher.ID})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.call(t, "POST", "/api/headmaster/classes/9999/students", tok, fiber.Map{"student_id": student.ID})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	head := dbtest.CreateUser(t, env.db, "siti", models.RoleHeadmaster, "")
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	inClass := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	outside := dbtest.CreateUser(t, env.db, "rina", models.RoleStudent, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	dbtest.Enroll(t, env.db, inClass.ID, class.ID)
	dbtest.Teach(t, env.db, teacher.ID, class.ID, "Math")

	status, body := env.call(t, "POST", "/api/headmaster/announcements", tokenFor(t, head), fiber.Map{
		"title": "Sports day", "message": "Bring your kit", "role": "student", "class_id": class.ID,
	})
	require.Equal(t, fiber.StatusCreated, status, body.Error)
	var data struct {
		Recipients int `json:"recipients"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, 1, data.Recipients)

	status, body = env.call(t, "GET", "/api/notifications/unread-count", tokenFor(t, inClass), nil)
	require.Equal(t, fiber.StatusOK, status)
	var count struct {
		Unread int `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &count))
	assert.Equal(t, 1, count.Unread)

	for _, u := range []models.User{teacher, outside} {
		var n int64
		env.db.Model(&models.Notification{}).Where("user_id = ?", u.ID).Count(&n)
		assert.Zero(t, n, u.Name)
	}

	t.Run("listing and marking read", func(t *testing.T) {
		tok := tokenFor(t, inClass)
		status, body := env.call(t, "GET", "/api/notifications/?read=false", tok, nil)
		require.Equal(t, fiber.StatusOK, status)
		var page struct {
			Notifications []struct {
				Title string `json:"title"`
				User  struct {
					ID uint `json:"id"`
				} `json:"user"`
			} `json:"notifications"`
		}
		require.NoError(t, json.Unmarshal(body.Data, &page))
		require.Len(t, page.Notifications, 1)
		assert.Equal(t, "Sports day", page.Notifications[0].Title)
		assert.Equal(t, inClass.ID, page.Notifications[0].User.ID)

		status, _ = env.call(t, "PATCH", "/api/notifications/read-all", tok, nil)
		require.Equal(t, fiber.StatusOK, status)
		status, body = env.call(t, "GET", "/api/notifications/unread-count", tok, nil)
		require.Equal(t, fiber.StatusOK, status)
		require.NoError(t, json.Unmarshal(body.Data, &count))
		assert.Equal(t, 0, count.Unread)
	})
}
