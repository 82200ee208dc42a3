package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sekolah_go/database/dbtest"
	"sekolah_go/models"
	"sekolah_go/storage"
	"sekolah_go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestClassReportWorkbook(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	teacher := dbtest.CreateUser(t, db, "teacher", models.RoleTeacher, "")
	student := dbtest.CreateUser(t, db, "ani", models.RoleStudent, "")
	class := dbtest.CreateClass(t, db, "9 B", "9", teacher.ID)
	dbtest.Enroll(t, db, student.ID, class.ID)
	m := dbtest.CreateMaterial(t, db, teacher.ID, "Optics", class.ID)
	a := dbtest.CreateAssignment(t, db, m, "Lenses", time.Now().Add(time.Hour))
	dbtest.Submit(t, db, student.ID, a.ID, models.SubmissionCompleted, dbtest.IntPtr(80), time.Now())

	svc := NewReportService(db, nil)
	buf, name, err := svc.ClassReport(ctx, class.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "class_9_B_"), name)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Students")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ani", rows[1][0])
	assert.Equal(t, "1/1", rows[1][4])
	assert.Equal(t, "80", rows[1][6])

	rows, err = f.GetRows("Assignments")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Lenses", "Optics"}, rows[1][:2])

	_, _, err = svc.ClassReport(ctx, 999)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestArchiveClassReports(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.CreateClass(t, db, "1A", "1", 0)
	dbtest.CreateClass(t, db, "1B", "1", 0)
	store := storage.NewMemoryStore()

	n, err := NewReportService(db, store).ArchiveClassReports(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, store.Keys(), 2)

	var count int64
	require.NoError(t, db.Model(&models.LogArchive{}).Where("kind = ?", "class_report").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestReadRoster(t *testing.T) {
	csvBody := "name,Email\nAni, ANI@School.test \nBudi,\nCici,cici@school.test\n"
	rows, err := ReadRoster(strings.NewReader(csvBody), "roster.csv")
	require.NoError(t, err)
	assert.Equal(t, []RosterRow{{Line: 2, Email: "ani@school.test"}, {Line: 4, Email: "cici@school.test"}}, rows)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"email"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"dodi@school.test"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	rows, err = ReadRoster(buf, "roster.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []RosterRow{{Line: 2, Email: "dodi@school.test"}}, rows)

	_, err = ReadRoster(strings.NewReader("name\nAni\n"), "roster.csv")
	var verr *utils.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = ReadRoster(strings.NewReader(""), "roster.pdf")
	assert.True(t, errors.As(err, &verr))
}
