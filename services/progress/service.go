package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sekolah_go/models"
	"sekolah_go/services/access"

	"gorm.io/gorm"
)

// UnknownLabel replaces titles and names whose row no longer exists.
const UnknownLabel = "unknown"

// Service runs the read-side queries behind dashboards and progress views.
type Service struct {
	db     *gorm.DB
	access *access.Checker
	now    func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, access: access.NewChecker(db), now: time.Now}
}

// WithClock replaces the time source used for week/today windows
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Access exposes the student access predicate backed by the same database
func (s *Service) Access() *access.Checker {
	return s.access
}

// ClassRef is the short form of a class used in listings.
type ClassRef struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	GradeLevel string `json:"grade_level"`
}

// Label formats the class as "name (Grade X)"
func (c ClassRef) Label() string {
	return fmt.Sprintf("%s (Grade %s)", c.Name, c.GradeLevel)
}

// ClassNames joins class names with ", "
func ClassNames(refs []ClassRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

type materialClassRow struct {
	MaterialID uint
	ClassID    uint
	Name       string
	GradeLevel string
}

// ClassesForMaterials returns the linked classes of each material, ordered by name
func (s *Service) ClassesForMaterials(ctx context.Context, materialIDs []uint) (map[uint][]ClassRef, error) {
	out := make(map[uint][]ClassRef, len(materialIDs))
	if len(materialIDs) == 0 {
		return out, nil
	}
	var rows []materialClassRow
	err := s.db.WithContext(ctx).Table("material_classes").
		Select("material_classes.material_id, classes.id AS class_id, classes.name, classes.grade_level").
		Joins("JOIN classes ON classes.id = material_classes.class_id").
		Where("material_classes.material_id IN ?", materialIDs).
		Order("classes.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load material classes: %w", err)
	}
	for _, r := range rows {
		out[r.MaterialID] = append(out[r.MaterialID], ClassRef{ID: r.ClassID, Name: r.Name, GradeLevel: r.GradeLevel})
	}
	return out, nil
}

// UserNames maps user ids to names in one query
func (s *Service) UserNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	ids = UniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load user names: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u.Name
	}
	return out, nil
}

// MaterialTitles maps material ids to titles in one query
func (s *Service) MaterialTitles(ctx context.Context, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	ids = UniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var materials []models.Material
	if err := s.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("load material titles: %w", err)
	}
	for _, m := range materials {
		out[m.ID] = m.Title
	}
	return out, nil
}

// labelOr returns the mapped label or UnknownLabel
func labelOr(m map[uint]string, id uint) string {
	if v, ok := m[id]; ok && v != "" {
		return v
	}
	return UnknownLabel
}

func activeStudentsIn(db *gorm.DB, classIDs []uint) *gorm.DB {
	return db.Model(&models.User{}).
		Where("role = ? AND status = ?", models.RoleStudent, models.StatusActive).
		Where("id IN (?)", db.Model(&models.Enrollment{}).Select("student_id").Where("class_id IN ?", classIDs))
}
