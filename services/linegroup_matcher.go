package services

import (
	"context"
	"regexp"
	"strings"

	"sekolah_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var spaces = regexp.MustCompile(`\s+`)

// LineGroupMatcher links LINE groups to classes by group name
type LineGroupMatcher struct {
	db *gorm.DB
}

func NewLineGroupMatcher(db *gorm.DB) *LineGroupMatcher {
	return &LineGroupMatcher{db: db}
}

// normalizeName lower-cases and collapses whitespace so "Class  7A " matches "class 7a"
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return spaces.ReplaceAllString(s, " ")
}

// Link stores groupID on the class whose name matches groupName. A group
// named "Class 7A" also matches the class "7A". Returns nil when nothing matches.
func (m *LineGroupMatcher) Link(ctx context.Context, groupID, groupName string) (*models.Class, error) {
	name := normalizeName(groupName)
	if groupID == "" || name == "" {
		return nil, nil
	}

	var classes []models.Class
	if err := m.db.WithContext(ctx).Find(&classes).Error; err != nil {
		return nil, err
	}
	for i := range classes {
		cl := &classes[i]
		cn := normalizeName(cl.Name)
		if cn != name && "class "+cn != name && "kelas "+cn != name {
			continue
		}
		if cl.LineGroupID == groupID {
			logrus.WithFields(logrus.Fields{"class_id": cl.ID, "group_id": groupID}).Info("LINE group already linked")
			return cl, nil
		}
		err := m.db.WithContext(ctx).Model(cl).Update("line_group_id", groupID).Error
		if err != nil {
			return nil, err
		}
		cl.LineGroupID = groupID
		logrus.WithFields(logrus.Fields{"class_id": cl.ID, "class": cl.Name, "group_id": groupID}).Info("Linked LINE group to class")
		return cl, nil
	}

	logrus.WithFields(logrus.Fields{"group_name": groupName, "normalized": name}).Warn("No class matches LINE group")
	return nil, nil
}

// Unlink clears groupID from every class that carries it
func (m *LineGroupMatcher) Unlink(ctx context.Context, groupID string) (int64, error) {
	if groupID == "" {
		return 0, nil
	}
	res := m.db.WithContext(ctx).Model(&models.Class{}).
		Where("line_group_id = ?", groupID).
		Update("line_group_id", "")
	return res.RowsAffected, res.Error
}
