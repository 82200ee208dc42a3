// Package access decides which materials and assignments a student may see.
//
// A student reaches a material when at least one class the student is
// enrolled in is linked to that material. Assignments inherit access from
// their material.
package access

import (
	"context"

	"sekolah_go/models"

	"gorm.io/gorm"
)

type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// ClassIDs returns the classes the student is enrolled in
func (c *Checker) ClassIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := c.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ?", studentID).
		Order("class_id").
		Pluck("class_id", &ids).Error
	return ids, err
}

// MaterialIDs returns every material the student can reach, each id once
func (c *Checker) MaterialIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := c.db.WithContext(ctx).Model(&models.MaterialClass{}).
		Distinct("material_id").
		Where("class_id IN (?)", c.enrolledClasses(studentID)).
		Order("material_id").
		Pluck("material_id", &ids).Error
	return ids, err
}

// CanAccessMaterial reports whether the student shares a class with the material
func (c *Checker) CanAccessMaterial(ctx context.Context, studentID, materialID uint) (bool, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&models.MaterialClass{}).
		Where("material_id = ? AND class_id IN (?)", materialID, c.enrolledClasses(studentID)).
		Count(&n).Error
	return n > 0, err
}

// CanAccessAssignment checks access through the assignment's material
func (c *Checker) CanAccessAssignment(ctx context.Context, studentID, assignmentID uint) (bool, error) {
	var n int64
	err := c.db.WithContext(ctx).Table("assignments").
		Joins("JOIN material_classes ON material_classes.material_id = assignments.material_id").
		Where("assignments.id = ? AND material_classes.class_id IN (?)", assignmentID, c.enrolledClasses(studentID)).
		Count(&n).Error
	return n > 0, err
}

// ReachesTeacher reports whether the student can see at least one of the teacher's materials
func (c *Checker) ReachesTeacher(ctx context.Context, studentID, teacherID uint) (bool, error) {
	var n int64
	err := c.db.WithContext(ctx).Table("materials").
		Joins("JOIN material_classes ON material_classes.material_id = materials.id").
		Where("materials.teacher_id = ? AND material_classes.class_id IN (?)", teacherID, c.enrolledClasses(studentID)).
		Count(&n).Error
	return n > 0, err
}

func (c *Checker) enrolledClasses(studentID uint) *gorm.DB {
	return c.db.Model(&models.Enrollment{}).Select("class_id").Where("student_id = ?", studentID)
}
