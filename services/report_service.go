package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"sekolah_go/models"
	"sekolah_go/services/progress"
	"sekolah_go/storage"
	"sekolah_go/utils"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportService builds class progress workbooks and reads roster uploads
type ReportService struct {
	db       *gorm.DB
	progress *progress.Service
	store    storage.ObjectStore
	now      func() time.Time
}

func NewReportService(db *gorm.DB, store storage.ObjectStore) *ReportService {
	return &ReportService{db: db, progress: progress.NewService(db), store: store, now: time.Now}
}

// ContentType is the MIME type of generated workbooks
func (r *ReportService) ContentType() string { return xlsxContentType }

// ClassReport renders a class into a workbook with a Students and an Assignments sheet
func (r *ReportService) ClassReport(ctx context.Context, classID uint) (*bytes.Buffer, string, error) {
	snap, err := r.progress.LoadClass(ctx, classID)
	if err != nil {
		return nil, "", err
	}
	buf, err := BuildClassWorkbook(snap)
	if err != nil {
		return nil, "", fmt.Errorf("build class workbook: %w", err)
	}
	name := fmt.Sprintf("class_%s_%s.xlsx", sanitizeFileName(snap.Class.Name), r.now().Format("20060102"))
	return buf, name, nil
}

// BuildClassWorkbook writes the snapshot as an xlsx document
func BuildClassWorkbook(snap *progress.ClassSnapshot) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const students = "Students"
	if err := f.SetSheetName("Sheet1", students); err != nil {
		return nil, err
	}
	header := []interface{}{"Name", "Email", "Status", "Materials Completed", "Assignments Submitted", "Graded", "Average Grade", "Overall Progress (%)"}
	if err := f.SetSheetRow(students, "A1", &header); err != nil {
		return nil, err
	}
	for i, st := range snap.Students {
		sum := snap.StudentSummary(st.ID)
		row := []interface{}{
			st.Name, st.Email, string(st.Status),
			fmt.Sprintf("%d/%d", sum.CompletedMaterials, sum.TotalMaterials),
			fmt.Sprintf("%d/%d", sum.Submitted, sum.TotalAssignments),
			sum.Graded, sum.AverageGrade, sum.OverallProgress,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(students, cell, &row); err != nil {
			return nil, err
		}
	}

	const assignments = "Assignments"
	if _, err := f.NewSheet(assignments); err != nil {
		return nil, err
	}
	header = []interface{}{"Title", "Material", "Deadline", "Submitted", "Graded"}
	if err := f.SetSheetRow(assignments, "A1", &header); err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(snap.Materials))
	for _, m := range snap.Materials {
		titles[m.ID] = m.Title
	}
	for i, a := range snap.Assignments {
		submitted, graded := 0, 0
		for _, st := range snap.Students {
			for _, as := range snap.StudentAssignments(st.ID) {
				if as.ID != a.ID {
					continue
				}
				if as.Status != models.SubmissionNotDone {
					submitted++
				}
				if as.Grade != nil {
					graded++
				}
			}
		}
		material := titles[a.MaterialID]
		if material == "" {
			material = progress.UnknownLabel
		}
		row := []interface{}{a.Title, material, a.Deadline.Format("2006-01-02 15:04"), submitted, graded}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(assignments, cell, &row); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// RosterRow is one line of an uploaded roster
type RosterRow struct {
	Line  int
	Email string
}

// ReadRoster reads the email column of an .xlsx or .csv upload. The header
// row must contain a column named "email".
func ReadRoster(rd io.Reader, fileName string) ([]RosterRow, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		rows, err = readXLSX(rd)
	case ".csv":
		rows, err = readCSV(rd)
	default:
		return nil, utils.NewValidationError("roster must be an .xlsx or .csv file")
	}
	if err != nil {
		return nil, utils.NewValidationError(fmt.Sprintf("cannot read roster: %v", err))
	}
	if len(rows) == 0 {
		return nil, utils.NewValidationError("roster is empty")
	}

	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "email") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, utils.NewValidationError("roster has no email column")
	}

	out := make([]RosterRow, 0, len(rows)-1)
	for i, rec := range rows[1:] {
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			continue
		}
		out = append(out, RosterRow{Line: i + 2, Email: utils.NormalizeEmail(rec[col])})
	}
	return out, nil
}

func readXLSX(rd io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

func readCSV(rd io.Reader) ([][]string, error) {
	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ArchiveClassReports stores the current workbook of every class and
// records each upload as a LogArchive row of kind class_report.
func (r *ReportService) ArchiveClassReports(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, storage.ErrNotConfigured
	}
	var classIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Class{}).Order("id").Pluck("id", &classIDs).Error; err != nil {
		return 0, fmt.Errorf("load classes: %w", err)
	}

	now := r.now()
	stored := 0
	for _, id := range classIDs {
		buf, name, err := r.ClassReport(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("class_id", id).Warn("class report skipped")
			continue
		}
		key := storage.ObjectKey("reports/classes", now, name)
		rec := models.LogArchive{
			Kind:     "class_report",
			FileName: name,
			S3Key:    key,
			EndDate:  now,
			FileSize: int64(buf.Len()),
			Status:   "completed",
		}
		if err := r.store.Put(ctx, key, buf.Bytes(), xlsxContentType); err != nil {
			rec.Status = "failed"
			rec.Error = err.Error()
		} else {
			stored++
		}
		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return stored, fmt.Errorf("record class report: %w", err)
		}
	}
	return stored, nil
}

func sanitizeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "class"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
