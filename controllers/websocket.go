package controllers

import (
	"sekolah_go/database"
	"sekolah_go/middleware"
	"sekolah_go/models"
	"sekolah_go/services/websocket"
	"sekolah_go/utils"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// Upgrade authenticates the ?token= query before the protocol switch, so a
// bad token gets a plain 401 instead of a dropped socket.
func (wsc *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return utils.Fail(c, fiber.StatusUpgradeRequired, "use the websocket endpoint: ws://<host>/ws?token=YOUR_JWT")
	}
	claims, err := middleware.ParseToken(c.Query("token"))
	if err != nil {
		return utils.Fail(c, fiber.StatusUnauthorized, "invalid token")
	}
	var user models.User
	if err := database.DB.Where("id = ? AND status = ?", claims.UserID, models.StatusActive).First(&user).Error; err != nil {
		return utils.Fail(c, fiber.StatusUnauthorized, "invalid token")
	}
	c.Locals("ws_user_id", user.ID)
	return c.Next()
}

// WebSocketHandler attaches the authenticated connection to the hub
func (wsc *WebSocketController) WebSocketHandler() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		userID, _ := c.Locals("ws_user_id").(uint)
		logrus.WithField("user_id", userID).Info("websocket connection established")
		wsc.hub.ServeFiberWS(c, userID)
	})
}

// GetWebSocketStats returns websocket connection statistics
func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return utils.OK(c, fiber.Map{
		"connected_clients": wsc.hub.GetClientCount(),
		"status":            "active",
	})
}
