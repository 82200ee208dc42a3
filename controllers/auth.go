package controllers

import (
	"errors"
	"strconv"
	"time"

	"sekolah_go/config"
	"sekolah_go/database"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/throttle"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const msgInvalidCredentials = "invalid email or password"

type AuthController struct {
	Throttle *throttle.Throttle
}

// NewAuthController builds the controller with the throttle store named in config
func NewAuthController() *AuthController {
	return &AuthController{Throttle: newLoginThrottle()}
}

func newLoginThrottle() *throttle.Throttle {
	if config.AppConfig != nil && config.AppConfig.LoginThrottleStore == "redis" {
		if rdb := database.GetRedisClient(); rdb != nil {
			return throttle.New(throttle.NewRedisStore(rdb, 2*throttle.DefaultLockout))
		}
		logrus.Warn("LOGIN_THROTTLE_STORE=redis but Redis is unavailable, using memory store")
	}
	return throttle.New(throttle.NewMemoryStore())
}

type accountFields struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,max=191"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (a *accountFields) check() error {
	if a.Password != a.ConfirmPassword {
		return utils.NewValidationError("passwords do not match")
	}
	a.Email = utils.NormalizeEmail(a.Email)
	if !utils.IsValidEmail(a.Email) {
		return utils.NewValidationError("invalid email format")
	}
	if !utils.IsValidPassword(a.Password) {
		return utils.NewValidationError("password must be at least 6 characters and contain letters and numbers")
	}
	return nil
}

// RegisterRequest is the student self-registration body
type RegisterRequest struct {
	accountFields
	ClassID *uint `json:"class_id"`
}

// RegisterTeacherRequest is the teacher self-registration body
type RegisterTeacherRequest struct {
	accountFields
	Subject         string `json:"subject" validate:"required,max=100"`
	ClassIDs        []uint `json:"class_ids"`
	HomeroomClassID *uint  `json:"homeroom_class_id"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID          uint              `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Role        models.Role       `json:"role"`
	Status      models.UserStatus `json:"status"`
	Subject     string            `json:"subject,omitempty"`
	LastLoginAt *time.Time        `json:"last_login_at"`
	LoginCount  int               `json:"login_count"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		Subject:     u.Subject,
		LastLoginAt: u.LastLoginAt,
		LoginCount:  u.LoginCount,
	}
}

// GetClasses lists classes for the registration form
func (ac *AuthController) GetClasses(c *fiber.Ctx) error {
	type classOption struct {
		ID         uint   `json:"id"`
		Name       string `json:"name"`
		GradeLevel string `json:"grade_level"`
	}
	var classes []classOption
	if err := dbFor(c).Model(&models.Class{}).Select("id, name, grade_level").Order("grade_level, name").Scan(&classes).Error; err != nil {
		return utils.FailFromError(c, err, "failed to load classes")
	}
	return utils.OK(c, classes)
}

func emailTaken(c *fiber.Ctx, email string) (bool, error) {
	var n int64
	err := dbFor(c).Model(&models.User{}).Where("email = ?", email).Count(&n).Error
	return n > 0, err
}

// createAccount inserts the user. A concurrent registration that slipped past
// emailTaken surfaces as a conflict.
func createAccount(tx *gorm.DB, user *models.User) error {
	err := tx.Create(user).Error
	if utils.IsDuplicateKey(err) {
		return utils.Conflict("email already registered")
	}
	return err
}

func classesExist(tx *gorm.DB, ids []uint) error {
	ids = uniqueUint(ids)
	if len(ids) == 0 {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Class{}).Where("id IN ?", ids).Count(&n).Error; err != nil {
		return err
	}
	if int(n) != len(ids) {
		return utils.NewValidationError("class not found")
	}
	return nil
}

func newAccount(f accountFields, role models.Role) (*models.User, error) {
	hash, err := utils.HashPassword(f.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Name:         utils.SanitizeString(f.Name),
		Email:        f.Email,
		PasswordHash: hash,
		Role:         role,
		Status:       models.StatusActive,
	}, nil
}

// Register creates a student account and optionally enrolls it
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if err := req.check(); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if taken, err := emailTaken(c, req.Email); err != nil {
		return utils.FailFromError(c, err, "failed to register")
	} else if taken {
		return utils.Fail(c, fiber.StatusConflict, "email already registered")
	}

	user, err := newAccount(req.accountFields, models.RoleStudent)
	if err != nil {
		return utils.FailFromError(c, err, "failed to register")
	}
	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		if req.ClassID != nil {
			if err := classesExist(tx, []uint{*req.ClassID}); err != nil {
				return err
			}
		}
		if err := createAccount(tx, user); err != nil {
			return err
		}
		if req.ClassID != nil {
			return tx.Create(&models.Enrollment{StudentID: user.ID, ClassID: *req.ClassID}).Error
		}
		return nil
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to register")
	}

	middleware.LogActivity(c, "REGISTER", "auth", user.ID, fiber.Map{"role": user.Role, "class_id": req.ClassID})
	return utils.Created(c, "registration successful", toUserResponse(user))
}

// RegisterTeacher creates a teacher account with optional teaching and homeroom classes
func (ac *AuthController) RegisterTeacher(c *fiber.Ctx) error {
	var req RegisterTeacherRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if err := req.check(); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	if taken, err := emailTaken(c, req.Email); err != nil {
		return utils.FailFromError(c, err, "failed to register")
	} else if taken {
		return utils.Fail(c, fiber.StatusConflict, "email already registered")
	}

	user, err := newAccount(req.accountFields, models.RoleTeacher)
	if err != nil {
		return utils.FailFromError(c, err, "failed to register")
	}
	user.Subject = utils.SanitizeString(req.Subject)
	classIDs := uniqueUint(req.ClassIDs)

	err = dbFor(c).Transaction(func(tx *gorm.DB) error {
		check := classIDs
		if req.HomeroomClassID != nil {
			check = append(append([]uint{}, classIDs...), *req.HomeroomClassID)
		}
		if err := classesExist(tx, check); err != nil {
			return err
		}
		if err := createAccount(tx, user); err != nil {
			return err
		}
		for _, id := range classIDs {
			if err := tx.Create(&models.TeachingAssignment{TeacherID: user.ID, ClassID: id, Subject: user.Subject}).Error; err != nil {
				return err
			}
		}
		if req.HomeroomClassID != nil {
			return tx.Model(&models.Class{}).Where("id = ?", *req.HomeroomClassID).Update("homeroom_teacher_id", user.ID).Error
		}
		return nil
	})
	if err != nil {
		return utils.FailFromError(c, err, "failed to register")
	}

	middleware.LogActivity(c, "REGISTER", "auth", user.ID, fiber.Map{
		"role":              user.Role,
		"class_ids":         classIDs,
		"homeroom_class_id": req.HomeroomClassID,
	})
	return utils.Created(c, "registration successful", toUserResponse(user))
}

// Login authenticates a user and returns a JWT token
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return utils.FailFromError(c, err, "invalid request")
	}
	ctx := c.UserContext()
	key := throttle.Key(req.Email)

	wait, err := ac.Throttle.Check(ctx, key)
	if err != nil {
		logrus.WithError(err).Warn("login throttle check failed")
	}
	if wait > 0 {
		retry := throttle.RetryAfterSeconds(wait)
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return c.Status(fiber.StatusTooManyRequests).JSON(utils.Envelope{
			Success: false,
			Error:   "too many failed login attempts, try again later",
			Data:    fiber.Map{"retry_after": retry},
		})
	}

	var user models.User
	err = dbFor(c).Where("email = ? AND status = ?", utils.NormalizeEmail(req.Email), models.StatusActive).First(&user).Error
	if err == nil {
		err = utils.CheckPassword(req.Password, user.PasswordHash)
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && user.ID == 0 {
			return utils.FailFromError(c, err, "failed to log in")
		}
		locked, ferr := ac.Throttle.Fail(ctx, key)
		if ferr != nil {
			logrus.WithError(ferr).Warn("login throttle update failed")
		}
		logrus.WithFields(logrus.Fields{"email": key, "locked": locked}).Warn("failed login")
		return utils.Fail(c, fiber.StatusUnauthorized, msgInvalidCredentials)
	}

	if err := ac.Throttle.Succeed(ctx, key); err != nil {
		logrus.WithError(err).Warn("login throttle reset failed")
	}
	now := time.Now()
	err = dbFor(c).Model(&user).Updates(map[string]interface{}{
		"last_login_at":    now,
		"last_activity_at": now,
		"login_count":      gorm.Expr("login_count + 1"),
	}).Error
	if err != nil {
		return utils.FailFromError(c, err, "failed to log in")
	}
	user.LastLoginAt = &now
	user.LastActivityAt = &now
	user.LoginCount++

	token, err := middleware.GenerateToken(&user)
	if err != nil {
		return utils.FailFromError(c, err, "failed to generate token")
	}

	middleware.LogActivity(c, "LOGIN", "auth", user.ID, fiber.Map{"role": user.Role})
	return utils.OKMessage(c, "login successful", fiber.Map{
		"token": token,
		"user":  toUserResponse(&user),
	})
}

// Logout blacklists the presented token until it expires
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	claims, _ := middleware.GetCurrentClaims(c)
	if err := middleware.BlacklistToken(c.UserContext(), token, claims); err != nil {
		logrus.WithError(err).Warn("token blacklist failed")
	}
	middleware.LogActivity(c, "LOGOUT", "auth", middleware.CurrentUserID(c), nil)
	return utils.OKMessage(c, "logged out", nil)
}

// Profile returns the signed-in user
func (ac *AuthController) Profile(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return utils.Fail(c, fiber.StatusUnauthorized, "must log in")
	}
	return utils.OK(c, toUserResponse(user))
}

func uniqueUint(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
