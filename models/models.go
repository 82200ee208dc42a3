package models

import (
	"time"

	"gorm.io/datatypes"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User model. Headmasters, teachers and students share one table.
type User struct {
	BaseModel
	Name           string     `json:"name" gorm:"size:100;not null"`
	Email          string     `json:"email" gorm:"size:191;not null;uniqueIndex"`
	PasswordHash   string     `json:"-" gorm:"size:255;not null"`
	Role           Role       `json:"role" gorm:"size:20;not null;index;check:chk_users_role,role IN ('headmaster','teacher','student')"`
	Status         UserStatus `json:"status" gorm:"size:20;not null;default:'active';check:chk_users_status,status IN ('active','inactive')"`
	CreatedBy      *uint      `json:"created_by"`
	LastLoginAt    *time.Time `json:"last_login_at"`
	LoginCount     int        `json:"login_count" gorm:"not null;default:0"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	Subject        string     `json:"subject,omitempty" gorm:"size:100"` // teachers only
}

// IsActive reports whether the account may sign in and be counted in statistics.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Class model
type Class struct {
	BaseModel
	Name              string `json:"name" gorm:"size:50;not null"`
	GradeLevel        string `json:"grade_level" gorm:"size:20;not null"`
	HomeroomTeacherID *uint  `json:"homeroom_teacher_id" gorm:"index"`
	LineGroupID       string `json:"line_group_id,omitempty" gorm:"size:64"`

	// Relationships
	HomeroomTeacher *User `json:"homeroom_teacher,omitempty" gorm:"foreignKey:HomeroomTeacherID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// Material model
type Material struct {
	BaseModel
	Title       string `json:"title" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"type:text"`
	Content     string `json:"content" gorm:"type:text;not null"`
	TeacherID   uint   `json:"teacher_id" gorm:"not null;index"`

	// Relationships
	Teacher *User `json:"teacher,omitempty" gorm:"foreignKey:TeacherID;constraint:OnDelete:CASCADE"`
}

// Assignment model. TeacherID always equals the owning material's TeacherID.
type Assignment struct {
	BaseModel
	Title       string    `json:"title" gorm:"size:200;not null"`
	Description string    `json:"description" gorm:"type:text"`
	MaterialID  uint      `json:"material_id" gorm:"not null;index"`
	TeacherID   uint      `json:"teacher_id" gorm:"not null;index"`
	Deadline    time.Time `json:"deadline" gorm:"not null;index"`

	// Relationships
	Material *Material `json:"material,omitempty" gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE"`
	Teacher  *User     `json:"teacher,omitempty" gorm:"foreignKey:TeacherID;constraint:OnDelete:CASCADE"`
}

// Submission model: one row per (student, assignment)
type Submission struct {
	BaseModel
	StudentID    uint             `json:"student_id" gorm:"not null;uniqueIndex:idx_submission_student_assignment"`
	AssignmentID uint             `json:"assignment_id" gorm:"not null;uniqueIndex:idx_submission_student_assignment;index"`
	Answer       string           `json:"answer" gorm:"type:text"`
	Grade        *int             `json:"grade" gorm:"check:chk_submissions_grade,grade IS NULL OR (grade >= 0 AND grade <= 100)"`
	Feedback     *string          `json:"feedback" gorm:"type:text"`
	Status       SubmissionStatus `json:"status" gorm:"size:20;not null;default:'not_done';check:chk_submissions_status,status IN ('not_done','done','completed')"`
	SubmittedAt  *time.Time       `json:"submitted_at" gorm:"index"`
	GradedAt     *time.Time       `json:"graded_at"`

	// Relationships
	Student    *User       `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
	Assignment *Assignment `json:"assignment,omitempty" gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`
}

// MaterialProgress model: one row per (student, material)
type MaterialProgress struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	StudentID      uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_material_progress_student_material"`
	MaterialID     uint      `json:"material_id" gorm:"not null;uniqueIndex:idx_material_progress_student_material;index"`
	LastAccessedAt time.Time `json:"last_accessed_at" gorm:"not null"`
	Completed      bool      `json:"completed" gorm:"not null;default:false"`
}

func (MaterialProgress) TableName() string { return "material_progress" }

// Enrollment links a student to a class
type Enrollment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	StudentID uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_enrollment_student_class"`
	ClassID   uint      `json:"class_id" gorm:"not null;uniqueIndex:idx_enrollment_student_class;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TeachingAssignment links a teacher to a class for one subject
type TeachingAssignment struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	TeacherID uint   `json:"teacher_id" gorm:"not null;uniqueIndex:idx_teaching_teacher_class_subject"`
	ClassID   uint   `json:"class_id" gorm:"not null;uniqueIndex:idx_teaching_teacher_class_subject;index"`
	Subject   string `json:"subject" gorm:"size:100;not null;uniqueIndex:idx_teaching_teacher_class_subject"`
}

// MaterialClass links a material to a class
type MaterialClass struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	MaterialID uint      `json:"material_id" gorm:"not null;uniqueIndex:idx_material_class"`
	ClassID    uint      `json:"class_id" gorm:"not null;uniqueIndex:idx_material_class;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// Discussion is a class-level message
type Discussion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClassID   uint      `json:"class_id" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null"`
	UserRole  Role      `json:"user_role" gorm:"size:20;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// MaterialDiscussion is a message on a material, optionally replying to a top-level message
type MaterialDiscussion struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	MaterialID uint      `json:"material_id" gorm:"not null;index"`
	UserID     uint      `json:"user_id" gorm:"not null"`
	UserRole   Role      `json:"user_role" gorm:"size:20;not null"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	ParentID   *uint     `json:"parent_id" gorm:"index"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

// ActivityLog model
type ActivityLog struct {
	BaseModel
	UserID     uint           `json:"user_id" gorm:"index"`
	Action     string         `json:"action" gorm:"size:50;not null"`
	Resource   string         `json:"resource" gorm:"size:100;not null"`
	ResourceID uint           `json:"resource_id"`
	Details    datatypes.JSON `json:"details"`
	IPAddress  string         `json:"ip_address" gorm:"size:45"`
	UserAgent  string         `json:"user_agent" gorm:"size:500"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID  uint           `json:"user_id" gorm:"not null;index"`
	Title   string         `json:"title" gorm:"size:255;not null"`
	Message string         `json:"message" gorm:"type:text;not null"`
	Type    string         `json:"type" gorm:"size:30;not null"`
	Data    datatypes.JSON `json:"data,omitempty"`
	Read    bool           `json:"read" gorm:"not null;default:false"`
	ReadAt  *time.Time     `json:"read_at"`
}

// LogArchive tracks activity-log bundles and class reports pushed to object storage
type LogArchive struct {
	BaseModel
	Kind        string    `json:"kind" gorm:"size:30;not null;default:'activity_logs'"` // activity_logs, class_report
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error,omitempty" gorm:"type:text"`
}

// AllModels lists every table managed by AutoMigrate, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Class{},
		&Material{},
		&Assignment{},
		&Submission{},
		&MaterialProgress{},
		&Enrollment{},
		&TeachingAssignment{},
		&MaterialClass{},
		&Discussion{},
		&MaterialDiscussion{},
		&ActivityLog{},
		&Notification{},
		&LogArchive{},
	}
}
