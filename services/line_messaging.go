package services

import (
	"fmt"

	"sekolah_go/config"

	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// LineMessagingService pushes class announcements to LINE groups
type LineMessagingService struct {
	Bot *linebot.Client
}

// NewLineMessagingService returns a service with a nil Bot when LINE
// credentials are not configured.
func NewLineMessagingService(cfg *config.Config) *LineMessagingService {
	if cfg == nil || cfg.LineChannelSecret == "" || cfg.LineChannelAccessToken == "" {
		logrus.Info("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{}
	}

	bot, err := linebot.New(cfg.LineChannelSecret, cfg.LineChannelAccessToken)
	if err != nil {
		logrus.WithError(err).Error("Cannot create LINE bot client")
		return &LineMessagingService{}
	}
	return &LineMessagingService{Bot: bot}
}

// Enabled reports whether messages can be sent
func (s *LineMessagingService) Enabled() bool {
	return s != nil && s.Bot != nil
}

// SendLineMessageToGroup sends a text message to the group with groupID
func (s *LineMessagingService) SendLineMessageToGroup(groupID string, message string) error {
	if !s.Enabled() {
		return fmt.Errorf("LINE Bot client is not initialized")
	}
	if _, err := s.Bot.PushMessage(groupID, linebot.NewTextMessage(message)).Do(); err != nil {
		return fmt.Errorf("LINE Messaging API failed: %w", err)
	}
	return nil
}
