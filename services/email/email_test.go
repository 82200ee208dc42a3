package email

import (
	"testing"

	"sekolah_go/config"

	"github.com/stretchr/testify/assert"
)

func TestNewSenderFallsBackToLog(t *testing.T) {
	assert.IsType(t, LogSender{}, NewSender(nil))
	assert.IsType(t, LogSender{}, NewSender(&config.Config{}))
	assert.IsType(t, &SendgridSender{}, NewSender(&config.Config{SendgridAPIKey: "SG.x", MailFrom: "a@b.c"}))
}

func TestPrepareBuildsPersonalization(t *testing.T) {
	s := NewSender(&config.Config{SendgridAPIKey: "SG.x", MailFrom: "office@school.test"}).(*SendgridSender)
	m := s.prepare(Welcome("Budi", "budi@school.test", "teacher"))

	assert.Equal(t, "office@school.test", m.From.Address)
	if assert.Len(t, m.Personalizations, 1) {
		assert.Equal(t, "Your school account is ready", m.Personalizations[0].Subject)
		assert.Equal(t, "budi@school.test", m.Personalizations[0].To[0].Address)
	}
	assert.Len(t, m.Content, 1)
	assert.Contains(t, m.Content[0].Value, "teacher account")
}
