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

type studentFixture struct {
	env        *testEnv
	student    models.User
	token      string
	material   models.Material
	foreign    models.Material
	assignment models.Assignment
}

func newStudentFixture(t *testing.T) *studentFixture {
	env := newTestEnv(t)
	teacher := dbtest.CreateUser(t, env.db, "budi", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")
	c7a := dbtest.CreateClass(t, env.db, "7A", "7", 0)
	c8b := dbtest.CreateClass(t, env.db, "8B", "8", 0)
	dbtest.Enroll(t, env.db, student.ID, c7a.ID)
	material := dbtest.CreateMaterial(t, env.db, teacher.ID, "Fractions", c7a.ID)
	foreign := dbtest.CreateMaterial(t, env.db, teacher.ID, "Algebra", c8b.ID)
	assignment := dbtest.CreateAssignment(t, env.db, material, "Worksheet", time.Now().Add(72*time.Hour))
	return &studentFixture{
		env:        env,
		student:    student,
		token:      tokenFor(t, student),
		material:   material,
		foreign:    foreign,
		assignment: assignment,
	}
}

func TestStudentMaterialAccess(t *testing.T) {
	f := newStudentFixture(t)

	status, _ := f.env.call(t, "GET", fmt.Sprintf("/api/student/materials/%d", f.foreign.ID), f.token, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = f.env.call(t, "GET", "/api/student/materials/9999", f.token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := f.env.call(t, "GET", fmt.Sprintf("/api/student/materials/%d", f.material.ID), f.token, nil)
	require.Equal(t, fiber.StatusOK, status, body.Error)

	var row models.MaterialProgress
	require.NoError(t, f.env.db.Where("student_id = ? AND material_id = ?", f.student.ID, f.material.ID).First(&row).Error)
	assert.False(t, row.Completed)

	status, _ = f.env.call(t, "POST", fmt.Sprintf("/api/student/materials/%d/complete", f.material.ID), f.token, nil)
	require.Equal(t, fiber.StatusOK, status)

	// opening the material again must keep it completed
	status, _ = f.env.call(t, "GET", fmt.Sprintf("/api/student/materials/%d", f.material.ID), f.token, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, f.env.db.Where("student_id = ? AND material_id = ?", f.student.ID, f.material.ID).First(&row).Error)
	assert.True(t, row.Completed)

	var rows int64
	f.env.db.Model(&models.MaterialProgress{}).Where("student_id = ?", f.student.ID).Count(&rows)
	assert.EqualValues(t, 1, rows)
}

func TestStudentMaterialsList(t *testing.T) {
	f := newStudentFixture(t)

	status, body := f.env.call(t, "GET", "/api/student/materials", f.token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var items []studentMaterialItem
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, f.material.ID, items[0].ID)
	assert.Equal(t, 0, items[0].Progress)
}

func TestSubmitAssignment(t *testing.T) {
	f := newStudentFixture(t)
	path := fmt.Sprintf("/api/student/assignments/%d/submit", f.assignment.ID)

	status, _ := f.env.call(t, "POST", path, f.token, fiber.Map{"answer": "  "})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := f.env.call(t, "POST", path, f.token, fiber.Map{"answer": "1/2"})
	require.Equal(t, fiber.StatusOK, status, body.Error)

	// a graded submission is reset by resubmitting
	grade, feedback := 80, "ok"
	now := time.Now()
	require.NoError(t, f.env.db.Model(&models.Submission{}).
		Where("student_id = ? AND assignment_id = ?", f.student.ID, f.assignment.ID).
		Updates(map[string]interface{}{"grade": grade, "feedback": feedback, "graded_at": now, "status": models.SubmissionCompleted}).Error)

	status, body = f.env.call(t, "POST", path, f.token, fiber.Map{"answer": "2/4"})
	require.Equal(t, fiber.StatusOK, status, body.Error)

	var subs []models.Submission
	require.NoError(t, f.env.db.Where("student_id = ?", f.student.ID).Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, "2/4", subs[0].Answer)
	assert.Equal(t, models.SubmissionDone, subs[0].Status)
	assert.Nil(t, subs[0].Grade)
	assert.Nil(t, subs[0].Feedback)
	assert.Nil(t, subs[0].GradedAt)

	var touched int64
	f.env.db.Model(&models.MaterialProgress{}).Where("student_id = ? AND material_id = ?", f.student.ID, f.material.ID).Count(&touched)
	assert.EqualValues(t, 1, touched)

	t.Run("assignment outside the student's classes", func(t *testing.T) {
		other := dbtest.CreateAssignment(t, f.env.db, f.foreign, "Equations", time.Now().Add(time.Hour))
		status, _ := f.env.call(t, "POST", fmt.Sprintf("/api/student/assignments/%d/submit", other.ID), f.token, fiber.Map{"answer": "x"})
		assert.Equal(t, fiber.StatusForbidden, status)
	})
}

func TestStudentDashboardWithoutClasses(t *testing.T) {
	env := newTestEnv(t)
	student := dbtest.CreateUser(t, env.db, "andi", models.RoleStudent, "")

	status, body := env.call(t, "GET", "/api/student/dashboard/stats", tokenFor(t, student), nil)
	require.Equal(t, fiber.StatusOK, status, body.Error)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.EqualValues(t, 0, stats["total_materials"])
	assert.EqualValues(t, 0, stats["total_assignments"])
	assert.EqualValues(t, 0, stats["overall_progress"])
}

func TestPostMaterialDiscussion(t *testing.T) {
	f := newStudentFixture(t)

	tests := []struct {
		name   string
		body   fiber.Map
		status int
	}{
		{"too short", fiber.Map{"material_id": f.material.ID, "content": "hey"}, fiber.StatusBadRequest},
		{"no access", fiber.Map{"material_id": f.foreign.ID, "content": "hello there"}, fiber.StatusForbidden},
		{"unknown parent", fiber.Map{"material_id": f.material.ID, "content": "hello there", "parent_id": 999}, fiber.StatusBadRequest},
		{"top level", fiber.Map{"material_id": f.material.ID, "content": "hello there"}, fiber.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.env.call(t, "POST", "/api/student/discussions/material", f.token, tt.body)
			assert.Equal(t, tt.status, status, body.Error)
		})
	}
}
