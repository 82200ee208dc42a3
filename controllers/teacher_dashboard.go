package controllers

import (
	"sekolah_go/middleware"
	"sekolah_go/services/notifications"
	"sekolah_go/services/progress"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
)

// TeacherController serves the teacher API. Every query is scoped to the
// signed-in teacher.
type TeacherController struct {
	Notifications *notifications.Service
}

func NewTeacherController(n *notifications.Service) *TeacherController {
	if n == nil {
		n = notifications.NewService()
	}
	return &TeacherController{Notifications: n}
}

// DashboardStats returns the teacher's headline numbers
func (tc *TeacherController) DashboardStats(c *fiber.Ctx) error {
	stats, err := progressService().Dashboard(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load dashboard")
	}
	return utils.OK(c, stats)
}

// ClassesInfo lists the classes the teacher teaches and homerooms
func (tc *TeacherController) ClassesInfo(c *fiber.Ctx) error {
	info, err := progressService().ClassesInfo(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	if info == nil {
		info = []progress.TeacherClassInfo{}
	}
	return utils.OK(c, info)
}

// HomeroomStats returns statistics of the teacher's homeroom class
func (tc *TeacherController) HomeroomStats(c *fiber.Ctx) error {
	stats, err := progressService().Homeroom(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load homeroom stats")
	}
	return utils.OK(c, stats)
}

// UpcomingDeadlines lists the teacher's assignments due within a week
func (tc *TeacherController) UpcomingDeadlines(c *fiber.Ctx) error {
	items, err := progressService().UpcomingDeadlines(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load deadlines")
	}
	if items == nil {
		items = []progress.UpcomingDeadline{}
	}
	return utils.OK(c, items)
}

// StudentsByClass groups reached students under the teacher's classes
func (tc *TeacherController) StudentsByClass(c *fiber.Ctx) error {
	groups, err := progressService().StudentsByClass(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load students")
	}
	if groups == nil {
		groups = []progress.TeacherClassGroup{}
	}
	return utils.OK(c, groups)
}

// RecentActivity lists the latest submissions to the teacher's assignments
func (tc *TeacherController) RecentActivity(c *fiber.Ctx) error {
	items, err := progressService().TeacherRecentActivity(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load recent activity")
	}
	if items == nil {
		items = []progress.Activity{}
	}
	return utils.OK(c, items)
}

// AvailableClasses lists the classes the teacher may link materials to
func (tc *TeacherController) AvailableClasses(c *fiber.Ctx) error {
	classes, err := progressService().TaughtClasses(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	if classes == nil {
		classes = []progress.ClassRef{}
	}
	return utils.OK(c, classes)
}

// StudentsProgress lists progress of every student the teacher reaches
func (tc *TeacherController) StudentsProgress(c *fiber.Ctx) error {
	rows, err := progressService().TeacherStudents(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load student progress")
	}
	if rows == nil {
		rows = []progress.StudentRow{}
	}
	return utils.OK(c, rows)
}

// StudentProgress is one student's progress over the teacher's assignments
func (tc *TeacherController) StudentProgress(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	detail, err := progressService().TeacherStudentDetail(c.UserContext(), middleware.CurrentUserID(c), id)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load student progress")
	}
	return utils.OK(c, detail)
}

// PendingSubmissions is the grading queue, oldest first
func (tc *TeacherController) PendingSubmissions(c *fiber.Ctx) error {
	items, err := progressService().PendingGrading(c.UserContext(), middleware.CurrentUserID(c))
	if err != nil {
		return utils.FailFromError(c, err, "failed to load submissions")
	}
	return utils.OK(c, items)
}

// GradedSubmissions lists the ten most recently graded submissions
func (tc *TeacherController) GradedSubmissions(c *fiber.Ctx) error {
	items, err := progressService().GradedHistory(c.UserContext(), middleware.CurrentUserID(c), 10)
	if err != nil {
		return utils.FailFromError(c, err, "failed to load submissions")
	}
	return utils.OK(c, items)
}
