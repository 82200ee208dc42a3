package controllers

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterialOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	other := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	material := dbtest.CreateMaterial(t, env.db, owner.ID, "Fractions", class.ID)
	path := fmt.Sprintf("/api/teacher/materials/%d", material.ID)

	status, body := env.call(t, "PUT", path, tokenFor(t, other), fiber.Map{"title": "Mine now"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "material not found", body.Error)

	status, _ = env.call(t, "DELETE", path, tokenFor(t, other), nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	var kept models.Material
	require.NoError(t, env.db.First(&kept, material.ID).Error)
	assert.Equal(t, "Fractions", kept.Title)

	status, _ = env.call(t, "PUT", path, tokenFor(t, owner), fiber.Map{"title": "Fractions II"})
	assert.Equal(t, fiber.StatusOK, status)
	require.NoError(t, env.db.First(&kept, material.ID).Error)
	assert.Equal(t, "Fractions II", kept.Title)

	status, _ = env.call(t, "DELETE", path, tokenFor(t, owner), nil)
	assert.Equal(t, fiber.StatusOK, status)
	var left int64
	env.db.Model(&models.MaterialClass{}).Where("material_id = ?", material.ID).Count(&left)
	assert.Zero(t, left)
}

func TestCreateMaterialValidation(t *testing.T) {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	tok := tokenFor(t, teacher)

	tests := []struct {
		name   string
		body   fiber.Map
		status int
	}{
		{"no classes", fiber.Map{"title": "T", "content": "C", "class_ids": []uint{}}, fiber.StatusBadRequest},
		{"unknown class", fiber.Map{"title": "T", "content": "C", "class_ids": []uint{class.ID, 404}}, fiber.StatusBadRequest},
		{"missing content", fiber.Map{"title": "T", "class_ids": []uint{class.ID}}, fiber.StatusBadRequest},
		{"valid", fiber.Map{"title": "T", "content": "C", "class_ids": []uint{class.ID}}, fiber.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.call(t, "POST", "/api/teacher/materials", tok, tt.body)
			assert.Equal(t, tt.status, status, body.Error)
		})
	}

	var n int64
	env.db.Model(&models.Material{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestCreateAssignmentNotifiesStudents(t *testing.T) {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	other := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	dbtest.Enroll(t, env.db, student.ID, class.ID)
	material := dbtest.CreateMaterial(t, env.db, teacher.ID, "Fractions", class.ID)

	body := fiber.Map{"title": "Worksheet", "material_id": material.ID, "deadline": "2030-05-01T10:00"}
	status, _ := env.call(t, "POST", "/api/teacher/assignments", tokenFor(t, other), body)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.call(t, "POST", "/api/teacher/assignments", tokenFor(t, teacher), fiber.Map{
		"title": "Worksheet", "material_id": material.ID, "deadline": "next week",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, resp := env.call(t, "POST", "/api/teacher/assignments", tokenFor(t, teacher), body)
	require.Equal(t, fiber.StatusCreated, status, resp.Error)
	var created models.Assignment
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, teacher.ID, created.TeacherID)

	var notes []models.Notification
	require.NoError(t, env.db.Where("user_id = ?", student.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "assignment", notes[0].Type)

	t.Run("update without fields", func(t *testing.T) {
		status, _ := env.call(t, "PUT", fmt.Sprintf("/api/teacher/assignments/%d", created.ID), tokenFor(t, teacher), fiber.Map{})
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestGradeSubmission(t *testing.T) {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	other := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	dbtest.Enroll(t, env.db, student.ID, class.ID)
	material := dbtest.CreateMaterial(t, env.db, teacher.ID, "Fractions", class.ID)
	assignment := dbtest.CreateAssignment(t, env.db, material, "Worksheet", time.Now().Add(48*time.Hour))
	sub := dbtest.Submit(t, env.db, student.ID, assignment.ID, models.SubmissionDone, nil, time.Now())
	path := fmt.Sprintf("/api/teacher/submissions/%d/grade", sub.ID)

	tests := []struct {
		name   string
		token  string
		grade  interface{}
		status int
	}{
		{"above range", tokenFor(t, teacher), 101, fiber.StatusBadRequest},
		{"negative", tokenFor(t, teacher), -1, fiber.StatusBadRequest},
		{"fractional", tokenFor(t, teacher), 85.5, fiber.StatusBadRequest},
		{"not a number", tokenFor(t, teacher), "A+", fiber.StatusBadRequest},
		{"another teacher", tokenFor(t, other), 90, fiber.StatusNotFound},
		{"owner", tokenFor(t, teacher), 90, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.call(t, "POST", path, tt.token, fiber.Map{"grade": tt.grade, "feedback": "good"})
			assert.Equal(t, tt.status, status, body.Error)
		})
	}

	var graded models.Submission
	require.NoError(t, env.db.First(&graded, sub.ID).Error)
	assert.Equal(t, models.SubmissionCompleted, graded.Status)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 90, *graded.Grade)
	require.NotNil(t, graded.Feedback)
	assert.Equal(t, "good", *graded.Feedback)
	assert.NotNil(t, graded.GradedAt)

	var notes int64
	env.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", student.ID, "grade").Count(&notes)
	assert.EqualValues(t, 1, notes)

	status, _ := env.call(t, "POST", "/api/teacher/submissions/9999/grade", tokenFor(t, teacher), fiber.Map{"grade": 50})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestTeacherStudentProgressAccess(t *testing.T) {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	reached := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	stranger := dbtest.CreateUser(t, env.db, "rina", models.RoleStudent, "")
	c7a := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	c8b := dbtest.CreateClass(t, env.db, "8B", "8", 0)
	dbtest.Enroll(t, env.db, reached.ID, c7a.ID)
	dbtest.Enroll(t, env.db, stranger.ID, c8b.ID)
	dbtest.CreateMaterial(t, env.db, teacher.ID, "Fractions", c7a.ID)
	tok := tokenFor(t, teacher)

	status, _ := env.call(t, "GET", fmt.Sprintf("/api/teacher/students/%d/progress", reached.ID), tok, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = env.call(t, "GET", fmt.Sprintf("/api/teacher/students/%d/progress", stranger.ID), tok, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = env.call(t, "GET", "/api/teacher/students/abc/progress", tok, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestReplyDiscussion(t *testing.T) {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	other := dbtest.CreateUser(t, env.db, "dewi", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	class := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	material := dbtest.CreateMaterial(t, env.db, teacher.ID, "Fractions", class.ID)

	top := models.MaterialDiscussion{MaterialID: material.ID, UserID: student.ID, UserRole: models.RoleStudent, Content: "What is a half?", CreatedAt: time.Now()}
	require.NoError(t, env.db.Create(&top).Error)
	parentID := top.ID
	nested := models.MaterialDiscussion{MaterialID: material.ID, UserID: student.ID, UserRole: models.RoleStudent, Content: "And a third?", ParentID: &parentID, CreatedAt: time.Now()}
	require.NoError(t, env.db.Create(&nested).Error)

	status, _ := env.call(t, "POST", fmt.Sprintf("/api/teacher/discussions/%d/reply", top.ID), tokenFor(t, other), fiber.Map{"content": "Hello"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = env.call(t, "POST", fmt.Sprintf("/api/teacher/discussions/%d/reply", top.ID), tokenFor(t, teacher), fiber.Map{"content": "   "})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := env.call(t, "POST", fmt.Sprintf("/api/teacher/discussions/%d/reply", nested.ID), tokenFor(t, teacher), fiber.Map{"content": "One of two parts"})
	require.Equal(t, fiber.StatusCreated, status, body.Error)

	var reply models.MaterialDiscussion
	require.NoError(t, env.db.Where("user_id = ?", teacher.ID).First(&reply).Error)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)
	assert.Equal(t, models.RoleTeacher, reply.UserRole)
}
