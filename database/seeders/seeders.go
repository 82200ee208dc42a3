package seeders

import (
	"time"

	"sekolah_go/models"
	"sekolah_go/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SeedAll fills an empty database with a demo school. Every seeded account
// shares password; an empty password gets a random one that is logged once.
func SeedAll(db *gorm.DB, password string) error {
	logrus.Info("Starting database seeding...")

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logrus.Info("Users already seeded, skipping...")
		return nil
	}

	if password == "" {
		random, err := utils.GenerateRandomString(10)
		if err != nil {
			return err
		}
		password = random + "a1"
		logrus.WithField("password", password).Warn("SEED_PASSWORD not set, generated demo password")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		users, err := seedUsers(tx, hash)
		if err != nil {
			return err
		}
		classes, err := seedClasses(tx, users)
		if err != nil {
			return err
		}
		return seedLessons(tx, users, classes)
	})
	if err != nil {
		return err
	}

	logrus.Info("Database seeding completed successfully!")
	return nil
}

func seedUsers(tx *gorm.DB, hash string) (map[string]*models.User, error) {
	users := []models.User{
		{Name: "Siti Rahma", Email: "headmaster@sekolah.local", Role: models.RoleHeadmaster},
		{Name: "Budi Santoso", Email: "budi@sekolah.local", Role: models.RoleTeacher, Subject: "Mathematics"},
		{Name: "Dewi Lestari", Email: "dewi@sekolah.local", Role: models.RoleTeacher, Subject: "Science"},
		{Name: "Andi Pratama", Email: "andi@sekolah.local", Role: models.RoleStudent},
		{Name: "Rina Wulandari", Email: "rina@sekolah.local", Role: models.RoleStudent},
		{Name: "Joko Susilo", Email: "joko@sekolah.local", Role: models.RoleStudent},
	}

	byEmail := make(map[string]*models.User, len(users))
	for i := range users {
		users[i].PasswordHash = hash
		users[i].Status = models.StatusActive
		if err := tx.Create(&users[i]).Error; err != nil {
			return nil, err
		}
		byEmail[users[i].Email] = &users[i]
	}
	logrus.WithField("count", len(users)).Info("Users seeded successfully")
	return byEmail, nil
}

func seedClasses(tx *gorm.DB, users map[string]*models.User) ([]models.Class, error) {
	budi := users["budi@sekolah.local"].ID
	dewi := users["dewi@sekolah.local"].ID

	classes := []models.Class{
		{Name: "7A", GradeLevel: "7", HomeroomTeacherID: &budi},
		{Name: "8B", GradeLevel: "8", HomeroomTeacherID: &dewi},
	}
	if err := tx.Create(&classes).Error; err != nil {
		return nil, err
	}

	teaching := []models.TeachingAssignment{
		{TeacherID: budi, ClassID: classes[0].ID, Subject: "Mathematics"},
		{TeacherID: budi, ClassID: classes[1].ID, Subject: "Mathematics"},
		{TeacherID: dewi, ClassID: classes[1].ID, Subject: "Science"},
	}
	if err := tx.Create(&teaching).Error; err != nil {
		return nil, err
	}

	enrollments := []models.Enrollment{
		{StudentID: users["andi@sekolah.local"].ID, ClassID: classes[0].ID},
		{StudentID: users["rina@sekolah.local"].ID, ClassID: classes[0].ID},
		{StudentID: users["joko@sekolah.local"].ID, ClassID: classes[1].ID},
	}
	if err := tx.Create(&enrollments).Error; err != nil {
		return nil, err
	}

	logrus.WithField("count", len(classes)).Info("Classes seeded successfully")
	return classes, nil
}

func seedLessons(tx *gorm.DB, users map[string]*models.User, classes []models.Class) error {
	budi := users["budi@sekolah.local"].ID
	dewi := users["dewi@sekolah.local"].ID

	materials := []models.Material{
		{Title: "Fractions", Description: "Adding and comparing fractions", Content: "A fraction names a part of a whole.", TeacherID: budi},
		{Title: "Photosynthesis", Description: "How plants make food", Content: "Plants turn light, water and carbon dioxide into sugar.", TeacherID: dewi},
	}
	if err := tx.Create(&materials).Error; err != nil {
		return err
	}

	links := []models.MaterialClass{
		{MaterialID: materials[0].ID, ClassID: classes[0].ID},
		{MaterialID: materials[0].ID, ClassID: classes[1].ID},
		{MaterialID: materials[1].ID, ClassID: classes[1].ID},
	}
	if err := tx.Create(&links).Error; err != nil {
		return err
	}

	due := time.Now().AddDate(0, 0, 5).Truncate(time.Hour)
	assignments := []models.Assignment{
		{Title: "Fraction worksheet", MaterialID: materials[0].ID, TeacherID: budi, Deadline: due},
		{Title: "Leaf experiment report", MaterialID: materials[1].ID, TeacherID: dewi, Deadline: due.AddDate(0, 0, 2)},
	}
	if err := tx.Create(&assignments).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"materials": len(materials), "assignments": len(assignments)}).Info("Lessons seeded successfully")
	return nil
}
