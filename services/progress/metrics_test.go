package progress

import (
	"testing"

	"sekolah_go/models"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name        string
		done, total int
		want        int
	}{
		{"empty total", 0, 0, 0},
		{"none done", 0, 4, 0},
		{"one of three rounds down", 1, 3, 33},
		{"two of three rounds up", 2, 3, 67},
		{"half rounds up", 1, 8, 13},
		{"all done", 5, 5, 100},
		{"overflow clamps", 7, 5, 100},
		{"zero total with done", 3, 0, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Percentage(tc.done, tc.total))
		})
	}
}

func TestAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   int
	}{
		{"empty", nil, 0},
		{"single", []int{77}, 77},
		{"half rounds up", []int{80, 85}, 83},
		{"below half rounds down", []int{70, 80, 81}, 77},
		{"all zero", []int{0, 0}, 0},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Average(tc.values))
		})
	}
}

func TestOverall(t *testing.T) {
	assert.Equal(t, 0, Overall(0, 0))
	assert.Equal(t, 50, Overall(100, 0))
	assert.Equal(t, 51, Overall(67, 34)) // 50.5 rounds up
	assert.Equal(t, 100, Overall(150, 100))
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []uint{3, 1, 2}, UniqueIDs([]uint{3, 1, 3, 2, 1}))
	assert.Empty(t, UniqueIDs(nil))
}

func TestMaterialProgress(t *testing.T) {
	assert.Equal(t, 0, MaterialProgress(false, false))
	assert.Equal(t, 50, MaterialProgress(true, false))
	assert.Equal(t, 100, MaterialProgress(true, true))
}

func TestSummarizeCountsDuplicatesOnce(t *testing.T) {
	grade := 90
	subs := map[uint]models.Submission{
		10: {AssignmentID: 10, Status: models.SubmissionCompleted, Grade: &grade},
		11: {AssignmentID: 11, Status: models.SubmissionDone},
	}
	state := map[uint]models.MaterialProgress{
		1: {MaterialID: 1, Completed: true},
		2: {MaterialID: 2, Completed: false},
	}

	// material 1 and assignment 10 reach the student through two classes
	got := Summarize([]uint{1, 2, 1}, []uint{10, 11, 12, 10}, subs, state)

	assert.Equal(t, 2, got.TotalMaterials)
	assert.Equal(t, 1, got.CompletedMaterials)
	assert.Equal(t, 50, got.MaterialProgress)
	assert.Equal(t, 3, got.TotalAssignments)
	assert.Equal(t, 2, got.Submitted)
	assert.Equal(t, 1, got.Graded)
	assert.Equal(t, 1, got.PendingGrading)
	assert.Equal(t, 90, got.AverageGrade)
	assert.Equal(t, 67, got.AssignmentProgress)
	assert.Equal(t, 59, got.OverallProgress) // (67+50)/2 = 58.5
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil, nil, nil, nil)
	assert.Equal(t, Summary{}, got)
}
