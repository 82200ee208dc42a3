package utils

import (
	"time"

	"sekolah_go/models"

	"gorm.io/datatypes"
)

// Compact representations used across APIs
type UserShort struct {
	ID   uint        `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

type Sender struct {
	Type string `json:"type"` // "system" or "user"
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type NotificationDTO struct {
	ID        uint           `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Data      datatypes.JSON `json:"data,omitempty"`
	Read      bool           `json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	User      UserShort      `json:"user"`
	Sender    Sender         `json:"sender"`
}

// ToNotificationDTO maps a notification of recipient to the compact DTO.
// Notifications are system generated, so the sender is always the system.
func ToNotificationDTO(n models.Notification, recipient models.User) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Data:      n.Data,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		User:      UserShort{ID: recipient.ID, Name: recipient.Name, Role: recipient.Role},
		Sender:    Sender{Type: "system", Name: "Sekolah"},
	}
}
