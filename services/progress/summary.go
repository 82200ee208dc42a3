package progress

import "sekolah_go/models"

// Summary is one student's completion over a set of materials and assignments.
type Summary struct {
	TotalMaterials     int `json:"total_materials"`
	CompletedMaterials int `json:"completed_materials"`
	MaterialProgress   int `json:"material_progress"`
	TotalAssignments   int `json:"total_assignments"`
	Submitted          int `json:"submitted"`
	Graded             int `json:"graded"`
	PendingGrading     int `json:"pending_grading"`
	AverageGrade       int `json:"average_grade"`
	AssignmentProgress int `json:"assignment_progress"`
	OverallProgress    int `json:"overall_progress"`
}

// Submitted reports whether the student has handed the assignment in
func Submitted(sub models.Submission) bool {
	return sub.Status == models.SubmissionDone || sub.Status == models.SubmissionCompleted
}

// Graded reports whether the submission carries a final grade
func Graded(sub models.Submission) bool {
	return sub.Status == models.SubmissionCompleted && sub.Grade != nil
}

// Summarize counts over the given ids; duplicates in either list are ignored.
func Summarize(materialIDs, assignmentIDs []uint, subs map[uint]models.Submission, state map[uint]models.MaterialProgress) Summary {
	materialIDs = UniqueIDs(materialIDs)
	assignmentIDs = UniqueIDs(assignmentIDs)

	var sum Summary
	sum.TotalMaterials = len(materialIDs)
	for _, id := range materialIDs {
		if mp, ok := state[id]; ok && mp.Completed {
			sum.CompletedMaterials++
		}
	}

	sum.TotalAssignments = len(assignmentIDs)
	var grades []int
	for _, id := range assignmentIDs {
		sub, ok := subs[id]
		if !ok {
			continue
		}
		if Submitted(sub) {
			sum.Submitted++
		}
		if Graded(sub) {
			sum.Graded++
		}
		if sub.Grade != nil {
			grades = append(grades, *sub.Grade)
		}
	}
	sum.PendingGrading = sum.Submitted - sum.Graded
	sum.AverageGrade = Average(grades)
	sum.MaterialProgress = Percentage(sum.CompletedMaterials, sum.TotalMaterials)
	sum.AssignmentProgress = Percentage(sum.Submitted, sum.TotalAssignments)
	sum.OverallProgress = Overall(sum.AssignmentProgress, sum.MaterialProgress)
	return sum
}
