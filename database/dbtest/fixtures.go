package dbtest

import (
	"fmt"
	"testing"
	"time"

	"sekolah_go/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUser inserts an active user with the given role. A non-empty pwd is
// stored bcrypt-hashed at minimum cost.
func CreateUser(t testing.TB, db *gorm.DB, name string, role models.Role, pwd string) models.User {
	t.Helper()
	hash := "-"
	if pwd != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("CreateUser() hash: %v", err)
		}
		hash = string(b)
	}
	u := models.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@school.test", name),
		PasswordHash: hash,
		Role:         role,
		Status:       models.StatusActive,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return u
}

// Deactivate sets the user's status to inactive
func Deactivate(t testing.TB, db *gorm.DB, u *models.User) {
	t.Helper()
	if err := db.Model(u).Update("status", models.StatusInactive).Error; err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}
	u.Status = models.StatusInactive
}

// CreateClass inserts a class; homeroom may be 0 for none
func CreateClass(t testing.TB, db *gorm.DB, name, grade string, homeroom uint) models.Class {
	t.Helper()
	c := models.Class{Name: name, GradeLevel: grade}
	if homeroom != 0 {
		c.HomeroomTeacherID = &homeroom
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

// Enroll links a student to classes
func Enroll(t testing.TB, db *gorm.DB, studentID uint, classIDs ...uint) {
	t.Helper()
	for _, cid := range classIDs {
		if err := db.Create(&models.Enrollment{StudentID: studentID, ClassID: cid}).Error; err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
	}
}

// Teach gives a teacher a subject in a class
func Teach(t testing.TB, db *gorm.DB, teacherID, classID uint, subject string) {
	t.Helper()
	if err := db.Create(&models.TeachingAssignment{TeacherID: teacherID, ClassID: classID, Subject: subject}).Error; err != nil {
		t.Fatalf("Teach() failed: %v", err)
	}
}

// CreateMaterial inserts a material owned by teacherID and links it to classIDs
func CreateMaterial(t testing.TB, db *gorm.DB, teacherID uint, title string, classIDs ...uint) models.Material {
	t.Helper()
	m := models.Material{Title: title, Content: title + " content", TeacherID: teacherID}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("CreateMaterial() failed: %v", err)
	}
	for _, cid := range classIDs {
		if err := db.Create(&models.MaterialClass{MaterialID: m.ID, ClassID: cid}).Error; err != nil {
			t.Fatalf("CreateMaterial() link: %v", err)
		}
	}
	return m
}

// CreateAssignment inserts an assignment on a material, owned by the material's teacher
func CreateAssignment(t testing.TB, db *gorm.DB, material models.Material, title string, deadline time.Time) models.Assignment {
	t.Helper()
	a := models.Assignment{
		Title:      title,
		MaterialID: material.ID,
		TeacherID:  material.TeacherID,
		Deadline:   deadline,
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// Submit stores a submission in the given state; grade may be nil
func Submit(t testing.TB, db *gorm.DB, studentID, assignmentID uint, status models.SubmissionStatus, grade *int, at time.Time) models.Submission {
	t.Helper()
	s := models.Submission{
		StudentID:    studentID,
		AssignmentID: assignmentID,
		Answer:       "answer",
		Status:       status,
		Grade:        grade,
		SubmittedAt:  &at,
	}
	if status == models.SubmissionCompleted {
		s.GradedAt = &at
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return s
}

// CompleteMaterial marks a material as completed for a student
func CompleteMaterial(t testing.TB, db *gorm.DB, studentID, materialID uint) {
	t.Helper()
	mp := models.MaterialProgress{StudentID: studentID, MaterialID: materialID, LastAccessedAt: time.Now(), Completed: true}
	if err := db.Create(&mp).Error; err != nil {
		t.Fatalf("CompleteMaterial() failed: %v", err)
	}
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }
