package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"sekolah_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// GroupNamer resolves a LINE group id to its display name
type GroupNamer func(groupID string) (string, error)

// LineWebhookHandler links classes to the LINE groups the bot joins
type LineWebhookHandler struct {
	Secret  string
	Matcher *services.LineGroupMatcher
	Namer   GroupNamer
}

// NewLineWebhookHandler returns a handler that acknowledges and ignores
// events when LINE is not configured.
func NewLineWebhookHandler(secret string, line *services.LineMessagingService, matcher *services.LineGroupMatcher) *LineWebhookHandler {
	h := &LineWebhookHandler{Secret: secret, Matcher: matcher}
	if line.Enabled() {
		h.Namer = func(groupID string) (string, error) {
			summary, err := line.Bot.GetGroupSummary(groupID).Do()
			if err != nil {
				return "", err
			}
			return summary.GroupName, nil
		}
	}
	return h
}

// Handle verifies the signature, answers 200 and processes events in the background
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.Secret == "" || h.Namer == nil {
		logrus.Warn("LINE webhook called but LINE is not configured")
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	body := append([]byte(nil), c.Body()...)
	if !validateSignature(h.Secret, body, signature) {
		logrus.WithField("signature", signature).Warn("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	go h.process(context.Background(), body)
	return c.SendStatus(fiber.StatusOK)
}

func (h *LineWebhookHandler) process(ctx context.Context, body []byte) {
	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		logrus.WithError(err).Error("Failed to parse LINE webhook body")
		return
	}

	for _, event := range webhook.Events {
		if event.Source == nil || event.Source.GroupID == "" {
			continue
		}
		groupID := event.Source.GroupID
		log := logrus.WithFields(logrus.Fields{"event": event.Type, "group_id": groupID})

		switch event.Type {
		case linebot.EventTypeJoin:
			name, err := h.Namer(groupID)
			if err != nil {
				log.WithError(err).Error("Failed to get LINE group summary")
				continue
			}
			if _, err := h.Matcher.Link(ctx, groupID, name); err != nil {
				log.WithError(err).Error("Failed to link LINE group")
			}
		case linebot.EventTypeLeave:
			n, err := h.Matcher.Unlink(ctx, groupID)
			if err != nil {
				log.WithError(err).Error("Failed to unlink LINE group")
				continue
			}
			log.WithField("classes", n).Info("Bot left LINE group")
		}
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validateSignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(computeSignature(secret, body)))
}
