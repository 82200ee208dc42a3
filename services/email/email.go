package email

import (
	"fmt"
	"net/http"

	"sekolah_go/config"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// Message is one outgoing email
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers emails. Send must not block the caller on network I/O.
type Sender interface {
	Send(msg Message)
}

// NewSender returns a SendGrid sender when an API key is configured and a
// log-only sender otherwise.
func NewSender(cfg *config.Config) Sender {
	if cfg == nil || cfg.SendgridAPIKey == "" {
		return LogSender{}
	}
	return &SendgridSender{
		key:  cfg.SendgridAPIKey,
		from: sgmail.NewEmail("Sekolah", cfg.MailFrom),
	}
}

// SendgridSender sends through the SendGrid v3 API
type SendgridSender struct {
	key  string
	from *sgmail.Email
}

func (s *SendgridSender) Send(msg Message) {
	go s.send(msg)
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *SendgridSender) send(msg Message) {
	req := sendgrid.GetRequest(s.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	entry := logrus.WithField("to", msg.ToEmail)
	if err != nil {
		entry.WithError(err).Error("sending email")
	} else if res.StatusCode >= http.StatusBadRequest {
		entry.WithField("status", res.StatusCode).Error(fmt.Sprintf("sending email: %s", res.Body))
	}
}

// LogSender writes emails to the log instead of sending them
type LogSender struct{}

func (LogSender) Send(msg Message) {
	logrus.WithFields(logrus.Fields{
		"to":      msg.ToEmail,
		"subject": msg.Subject,
	}).Info("email (not sent, SENDGRID_API_KEY unset)")
}

// Welcome is sent to accounts created by the headmaster
func Welcome(name, address, role string) Message {
	return Message{
		ToName:  name,
		ToEmail: address,
		Subject: "Your school account is ready",
		Text: fmt.Sprintf("Hello %s,\n\nA %s account has been created for you with this email address. "+
			"Sign in with the password given to you by the headmaster and change it after your first login.", name, role),
	}
}
