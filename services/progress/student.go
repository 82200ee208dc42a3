package progress

import (
	"context"
	"fmt"

	"sekolah_go/models"

	"golang.org/x/sync/errgroup"
)

// StudentSnapshot holds everything a student can reach plus their own state.
// Materials and assignments are de-duplicated across classes.
type StudentSnapshot struct {
	StudentID      uint
	Classes        []ClassRef
	Materials      []models.Material   // newest first
	Assignments    []models.Assignment // earliest deadline first
	Submissions    map[uint]models.Submission       // by assignment id
	MaterialState  map[uint]models.MaterialProgress // by material id
	classMaterials map[uint][]uint
}

// ClassProgress is a student's summary within one class.
type ClassProgress struct {
	ClassRef
	Summary
}

// LoadStudent gathers a student's classes, reachable items and own progress.
// A student with no enrollment gets an empty snapshot.
func (s *Service) LoadStudent(ctx context.Context, studentID uint) (*StudentSnapshot, error) {
	snap := &StudentSnapshot{
		StudentID:      studentID,
		Submissions:    map[uint]models.Submission{},
		MaterialState:  map[uint]models.MaterialProgress{},
		classMaterials: map[uint][]uint{},
	}
	db := s.db.WithContext(ctx)

	err := db.Table("classes").
		Select("classes.id, classes.name, classes.grade_level").
		Joins("JOIN enrollments ON enrollments.class_id = classes.id").
		Where("enrollments.student_id = ?", studentID).
		Order("classes.name").
		Scan(&snap.Classes).Error
	if err != nil {
		return nil, fmt.Errorf("load student classes: %w", err)
	}
	if len(snap.Classes) == 0 {
		return snap, nil
	}

	classIDs := make([]uint, 0, len(snap.Classes))
	for _, c := range snap.Classes {
		classIDs = append(classIDs, c.ID)
	}
	var links []models.MaterialClass
	if err := db.Where("class_id IN ?", classIDs).Order("id").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load class materials: %w", err)
	}
	materialIDs := make([]uint, 0, len(links))
	for _, l := range links {
		snap.classMaterials[l.ClassID] = append(snap.classMaterials[l.ClassID], l.MaterialID)
		materialIDs = append(materialIDs, l.MaterialID)
	}
	materialIDs = UniqueIDs(materialIDs)
	if len(materialIDs) == 0 {
		return snap, nil
	}

	var (
		subs  []models.Submission
		state []models.MaterialProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("id IN ?", materialIDs).
			Order("created_at DESC").Order("id DESC").Find(&snap.Materials).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("material_id IN ?", materialIDs).
			Order("deadline ASC").Order("id").Find(&snap.Assignments).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("student_id = ?", studentID).Find(&subs).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("student_id = ? AND material_id IN ?", studentID, materialIDs).Find(&state).Error
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load student progress: %w", err)
	}

	reachable := make(map[uint]struct{}, len(snap.Assignments))
	for _, a := range snap.Assignments {
		reachable[a.ID] = struct{}{}
	}
	for _, sub := range subs {
		if _, ok := reachable[sub.AssignmentID]; ok {
			snap.Submissions[sub.AssignmentID] = sub
		}
	}
	for _, mp := range state {
		snap.MaterialState[mp.MaterialID] = mp
	}
	return snap, nil
}

// MaterialIDs returns the reachable material ids
func (s *StudentSnapshot) MaterialIDs() []uint {
	ids := make([]uint, 0, len(s.Materials))
	for _, m := range s.Materials {
		ids = append(ids, m.ID)
	}
	return ids
}

// AssignmentIDs returns the reachable assignment ids
func (s *StudentSnapshot) AssignmentIDs() []uint {
	ids := make([]uint, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		ids = append(ids, a.ID)
	}
	return ids
}

// Summary covers everything the student can reach
func (s *StudentSnapshot) Summary() Summary {
	return Summarize(s.MaterialIDs(), s.AssignmentIDs(), s.Submissions, s.MaterialState)
}

// ByClass summarizes each enrolled class separately
func (s *StudentSnapshot) ByClass() []ClassProgress {
	out := make([]ClassProgress, 0, len(s.Classes))
	for _, c := range s.Classes {
		mids := s.classMaterials[c.ID]
		inClass := make(map[uint]struct{}, len(mids))
		for _, id := range mids {
			inClass[id] = struct{}{}
		}
		var aids []uint
		for _, a := range s.Assignments {
			if _, ok := inClass[a.MaterialID]; ok {
				aids = append(aids, a.ID)
			}
		}
		out = append(out, ClassProgress{
			ClassRef: c,
			Summary:  Summarize(mids, aids, s.Submissions, s.MaterialState),
		})
	}
	return out
}

// ClassLabels lists the enrolled classes as "name (Grade X)"
func (s *StudentSnapshot) ClassLabels() []string {
	out := make([]string, 0, len(s.Classes))
	for _, c := range s.Classes {
		out = append(out, c.Label())
	}
	return out
}

// MaterialClasses returns the enrolled classes linked to a material
func (s *StudentSnapshot) MaterialClasses(materialID uint) []ClassRef {
	var out []ClassRef
	for _, c := range s.Classes {
		for _, id := range s.classMaterials[c.ID] {
			if id == materialID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ActiveAssignments are those not yet graded, in deadline order
func (s *StudentSnapshot) ActiveAssignments() []models.Assignment {
	var out []models.Assignment
	for _, a := range s.Assignments {
		if sub, ok := s.Submissions[a.ID]; ok && Graded(sub) {
			continue
		}
		out = append(out, a)
	}
	return out
}
