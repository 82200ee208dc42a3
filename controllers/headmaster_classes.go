package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type classListItem struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	GradeLevel        string    `json:"grade_level"`
	HomeroomTeacherID *uint     `json:"homeroom_teacher_id"`
	HomeroomTeacher   string    `json:"homeroom_teacher"`
	LineGroupID       string    `json:"line_group_id,omitempty"`
	StudentCount      int       `json:"student_count"`
	TeacherCount      int       `json:"teacher_count"`
	CreatedAt         time.Time `json:"created_at"`
}

type classCount struct {
	ClassID uint
	N       int
}

func countsByClass(q *gorm.DB) (map[uint]int, error) {
	var rows []classCount
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int, len(rows))
	for _, r := range rows {
		out[r.ClassID] = r.N
	}
	return out, nil
}

// GetClasses lists classes with homeroom teacher and head counts
func (hc *HeadmasterController) GetClasses(c *fiber.Ctx) error {
	var classes []models.Class
	if err := dbFor(c).Preload("HomeroomTeacher").Order("grade_level, name").Find(&classes).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	students, err := countsByClass(dbFor(c).Model(&models.Enrollment{}).Select("class_id, COUNT(*) AS n").Group("class_id"))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	teachers, err := countsByClass(dbFor(c).Model(&models.TeachingAssignment{}).Select("class_id, COUNT(DISTINCT teacher_id) AS n").Group("class_id"))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}

	out := make([]classListItem, 0, len(classes))
	for _, cl := range classes {
		item := classListItem{
			ID:                cl.ID,
			Name:              cl.Name,
			GradeLevel:        cl.GradeLevel,
			HomeroomTeacherID: cl.HomeroomTeacherID,
			HomeroomTeacher:   "-",
			LineGroupID:       cl.LineGroupID,
			StudentCount:      students[cl.ID],
			TeacherCount:      teachers[cl.ID],
			CreatedAt:         cl.CreatedAt,
		}
		if cl.HomeroomTeacher != nil {
			item.HomeroomTeacher = cl.HomeroomTeacher.Name
		}
		out = append(out, item)
	}
	return utils.OK(c, out)
}

// ClassRequest is the body of POST and PUT /headmaster/classes
type ClassRequest struct {
	Name              string `json:"name" validate:"required,max=50"`
	GradeLevel        string `json:"grade_level" validate:"required,max=20"`
	HomeroomTeacherID *uint  `json:"homeroom_teacher_id" validate:"required"`
	LineGroupID       string `json:"line_group_id" validate:"max=64"`
}

func (r ClassRequest) apply(cl *models.Class) {
	cl.Name = utils.SanitizeString(r.Name)
	cl.GradeLevel = utils.SanitizeString(r.GradeLevel)
	cl.HomeroomTeacherID = r.HomeroomTeacherID
	cl.LineGroupID = strings.TrimSpace(r.LineGroupID)
}

func requireTeacher(c *fiber.Ctx, id uint) error {
	var n int64
	if err := dbFor(c).Model(&models.User{}).Where("id = ? AND role = ?", id, models.RoleTeacher).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return utils.NewValidationError("homeroom teacher must be a teacher")
	}
	return nil
}

func findClass(c *fiber.Ctx, id uint) (*models.Class, error) {
	var cl models.Class
	err := dbFor(c).First(&cl, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("class not found")
	}
	return &cl, err
}

// CreateClass adds a class with its homeroom teacher
func (hc *HeadmasterController) CreateClass(c *fiber.Ctx) error {
	var req ClassRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if err := requireTeacher(c, *req.HomeroomTeacherID); err != nil {
		return utils.FailFromError(c, err, "failed to create class")
	}
	var cl models.Class
	req.apply(&cl)
	if err := dbFor(c).Create(&cl).Error; err != nil {
		return utils.FailFromError(c, err, "failed to create class")
	}

	middleware.LogActivity(c, "CREATE", "classes", cl.ID, fiber.Map{"name": cl.Name, "grade_level": cl.GradeLevel})
	return utils.Created(c, "class created", cl)
}

// UpdateClass replaces a class's name, grade and homeroom teacher
func (hc *HeadmasterController) UpdateClass(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req ClassRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	cl, err := findClass(c, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to update class")
	}
	if err := requireTeacher(c, *req.HomeroomTeacherID); err != nil {
		return utils.FailFromError(c, err, "failed to update class")
	}
	req.apply(cl)
	err = dbFor(c).Model(cl).Select("name", "grade_level", "homeroom_teacher_id", "line_group_id").Updates(cl).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to update class")
	}

	middleware.LogActivity(c, "UPDATE", "classes", cl.ID, req)
	return utils.OKMessage(c, "class updated", cl)
}

// DeleteClass removes a class and its links
func (hc *HeadmasterController) DeleteClass(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	cl, err := findClass(c, id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete class")
	}
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&models.Enrollment{}, &models.TeachingAssignment{}, &models.MaterialClass{}, &models.Discussion{}} {
			if err := tx.Where("class_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Class{}, id).Error
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to delete class")
	}

	middleware.LogActivity(c, "DELETE", "classes", id, fiber.Map{"name": cl.Name})
	return utils.OKMessage(c, "class deleted", nil)
}

type classStudentRow struct {
	ID              uint              `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Status          models.UserStatus `json:"status"`
	OverallProgress int               `json:"overall_progress"`
	AverageGrade    int               `json:"average_grade"`
	LastActivityAt  *time.Time        `json:"last_activity_at"`
}

func classStudents(snap *progress.ClassSnapshot) []classStudentRow {
	out := make([]classStudentRow, 0, len(snap.Students))
	for _, st := range snap.Students {
		sum := snap.StudentSummary(st.ID)
		out = append(out, classStudentRow{
			ID:              st.ID,
			Name:            st.Name,
			Email:           st.Email,
			Status:          st.Status,
			OverallProgress: sum.OverallProgress,
			AverageGrade:    sum.AverageGrade,
			LastActivityAt:  st.LastActivityAt,
		})
	}
	return out
}

// GetClass returns one class with statistics, teachers and roster
func (hc *HeadmasterController) GetClass(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	snap, err := progressService().LoadClass(c.UserContext(), id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load class")
	}
	homeroom := "-"
	if snap.Class.HomeroomTeacher != nil {
		homeroom = snap.Class.HomeroomTeacher.Name
	}
	teachers := snap.Teachers
	if teachers == nil {
		teachers = []progress.ClassTeacher{}
	}
	return utils.OK(c, fiber.Map{
		"class": fiber.Map{
			"id":                  snap.Class.ID,
			"name":                snap.Class.Name,
			"grade_level":         snap.Class.GradeLevel,
			"homeroom_teacher_id": snap.Class.HomeroomTeacherID,
			"homeroom_teacher":    homeroom,
			"line_group_id":       snap.Class.LineGroupID,
		},
		"statistics": snap.Stats(),
		"teachers":   teachers,
		"students":   classStudents(snap),
	})
}

// ClassTeacherRequest is the body of POST /classes/:id/teachers
type ClassTeacherRequest struct {
	TeacherID uint   `json:"teacher_id" validate:"required"`
	Subject   string `json:"subject" validate:"required,max=100"`
}

// AddClassTeacher assigns a teacher to teach a subject in the class
func (hc *HeadmasterController) AddClassTeacher(c *fiber.Ctx) error {
	classID, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req ClassTeacherRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findClass(c, classID); err != nil {
		return utils.FailFromError(c, err, "failed to add teacher")
	}
	if _, err := findTeacher(c, req.TeacherID); err != nil {
		return utils.FailFromError(c, err, "failed to add teacher")
	}

	ta := models.TeachingAssignment{TeacherID: req.TeacherID, ClassID: classID, Subject: utils.SanitizeString(req.Subject)}
	err = dbFor(c).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "teacher_id"}, {Name: "class_id"}, {Name: "subject"}},
		DoNothing: true,
	}).Create(&ta).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to add teacher")
	}

	middleware.LogActivity(c, "ASSIGN_TEACHER", "classes", classID, fiber.Map{"teacher_id": req.TeacherID, "subject": ta.Subject})
	return utils.OKMessage(c, "teacher assigned to class", fiber.Map{"class_id": classID, "teacher_id": req.TeacherID, "subject": ta.Subject})
}

// RemoveClassTeacher drops a teacher's assignments in the class, or only the
// one for the given subject query
func (hc *HeadmasterController) RemoveClassTeacher(c *fiber.Ctx) error {
	classID, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	teacherID, err := paramID(c, "teacherId")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	q := dbFor(c).Where("class_id = ? AND teacher_id = ?", classID, teacherID)
	if subject := strings.TrimSpace(c.Query("subject")); subject != "" {
		q = q.Where("subject = ?", subject)
	}
	res := q.Delete(&models.TeachingAssignment{})
	if res.Error != nil {
		return utils.FailFromError(c, res.Error, "failed to remove teacher")
	}
	if res.RowsAffected == 0 {
		return utils.Fail(c, fiber.StatusNotFound, "teacher is not assigned to this class")
	}

	middleware.LogActivity(c, "UNASSIGN_TEACHER", "classes", classID, fiber.Map{"teacher_id": teacherID, "subject": c.Query("subject")})
	return utils.OKMessage(c, "teacher removed from class", nil)
}

// GetClassStudents lists the enrolled students of a class
func (hc *HeadmasterController) GetClassStudents(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	snap, err := progressService().LoadClass(c.UserContext(), id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load students")
	}
	return utils.OK(c, classStudents(snap))
}

// EnrollRequest is the body of POST /classes/:id/students
type EnrollRequest struct {
	StudentID uint `json:"student_id" validate:"required"`
}

func findStudent(c *fiber.Ctx, id uint) (*models.User, error) {
	var st models.User
	err := dbFor(c).Where("id = ? AND role = ?", id, models.RoleStudent).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("student not found")
	}
	return &st, err
}

// EnrollStudent adds a student to the class
func (hc *HeadmasterController) EnrollStudent(c *fiber.Ctx) error {
	classID, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	var req EnrollRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findClass(c, classID); err != nil {
		return utils.FailFromError(c, err, "failed to enroll student")
	}
	if _, err := findStudent(c, req.StudentID); err != nil {
		return utils.FailFromError(c, err, "failed to enroll student")
	}

	res := dbFor(c).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Enrollment{StudentID: req.StudentID, ClassID: classID})
	if res.Error != nil {
		return utils.FailFromError(c, res.Error, "failed to enroll student")
	}
	if res.RowsAffected == 0 {
		return utils.Fail(c, fiber.StatusConflict, "student is already enrolled in this class")
	}

	middleware.LogActivity(c, "ENROLL", "classes", classID, fiber.Map{"student_id": req.StudentID})
	return utils.Created(c, "student enrolled", fiber.Map{"class_id": classID, "student_id": req.StudentID})
}

// UnenrollStudent removes a student from the class
func (hc *HeadmasterController) UnenrollStudent(c *fiber.Ctx) error {
	classID, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	studentID, err := paramID(c, "studentId")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findClass(c, classID); err != nil {
		return utils.FailFromError(c, err, "failed to unenroll student")
	}
	if _, err := findStudent(c, studentID); err != nil {
		return utils.FailFromError(c, err, "failed to unenroll student")
	}
	res := dbFor(c).Where("class_id = ? AND student_id = ?", classID, studentID).Delete(&models.Enrollment{})
	if res.Error != nil {
		return utils.FailFromError(c, res.Error, "failed to unenroll student")
	}
	if res.RowsAffected == 0 {
		return utils.Fail(c, fiber.StatusNotFound, "student is not enrolled in this class")
	}

	middleware.LogActivity(c, "UNENROLL", "classes", classID, fiber.Map{"student_id": studentID})
	return utils.OKMessage(c, "student removed from class", nil)
}

type rosterResult struct {
	Line   int    `json:"line"`
	Email  string `json:"email"`
	Status string `json:"status"` // enrolled, already_enrolled, not_found
}

// ImportRoster bulk-enrolls students listed by email in an uploaded sheet
func (hc *HeadmasterController) ImportRoster(c *fiber.Ctx) error {
	classID, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if _, err := findClass(c, classID); err != nil {
		return utils.FailFromError(c, err, "failed to import roster")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return utils.FailFromError(c, err, "failed to read upload")
	}
	defer f.Close()

	rows, err := services.ReadRoster(f, fh.Filename)
	if err != nil {
		return utils.FailFromError(c, err, "failed to import roster")
	}

	emails := make([]string, 0, len(rows))
	for _, r := range rows {
		emails = append(emails, r.Email)
	}
	var students []models.User
	if len(emails) > 0 {
		if err := dbFor(c).Where("email IN ? AND role = ?", emails, models.RoleStudent).Find(&students).Error; err != nil {
			return utils.FailFromError(c, err, "failed to import roster")
		}
	}
	byEmail := make(map[string]uint, len(students))
	for _, st := range students {
		byEmail[st.Email] = st.ID
	}

	results := make([]rosterResult, 0, len(rows))
	enrolled := 0
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			res := rosterResult{Line: r.Line, Email: r.Email, Status: "not_found"}
			if id, ok := byEmail[r.Email]; ok {
				ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Enrollment{StudentID: id, ClassID: classID})
				if ins.Error != nil {
					return ins.Error
				}
				if ins.RowsAffected > 0 {
					res.Status = "enrolled"
					enrolled++
				} else {
					res.Status = "already_enrolled"
				}
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to import roster")
	}

	middleware.LogActivity(c, "IMPORT_ROSTER", "classes", classID, fiber.Map{"file": fh.Filename, "rows": len(rows), "enrolled": enrolled})
	return utils.OKMessage(c, fmt.Sprintf("%d students enrolled", enrolled), fiber.Map{"enrolled": enrolled, "rows": results})
}

// ClassReport streams the class progress workbook
func (hc *HeadmasterController) ClassReport(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	buf, name, err := hc.Reports.ClassReport(c.UserContext(), id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to build class report")
	}
	c.Set(fiber.HeaderContentType, hc.Reports.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Send(buf.Bytes())
}
