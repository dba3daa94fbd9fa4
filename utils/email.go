package utils

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// Mail is one outgoing message
type Mail struct {
	ToName      string
	ToEmail     string
	ReplyTo     string
	Subject     string
	TextContent string
	HTMLContent string
}

// SendGridMailer sends email using SendGrid
type SendGridMailer struct {
	apiKey   string
	fromName string
	fromAddr string
	logger   logrus.FieldLogger
}

func NewSendGridMailer(apiKey, fromName, fromAddr string, logger logrus.FieldLogger) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, fromName: fromName, fromAddr: fromAddr, logger: logger}
}

// Send delivers m, failing on transport errors and on 4xx/5xx answers
func (s *SendGridMailer) Send(m Mail) error {
	if s.apiKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not set in environment variables")
	}

	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(m.ToName, m.ToEmail)
	message := mail.NewSingleEmail(from, m.Subject, to, m.TextContent, m.HTMLContent)
	if m.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", m.ReplyTo))
	}
	client := sendgrid.NewSendClient(s.apiKey)

	response, err := client.Send(message)
	if err != nil {
		s.logger.WithError(err).WithField("to", m.ToEmail).Error("Error sending email")
		return err
	}

	if response.StatusCode >= 400 {
		s.logger.WithFields(logrus.Fields{
			"status_code": response.StatusCode,
			"body":        response.Body,
		}).Error("SendGrid API Error")
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{"to": m.ToEmail, "status_code": response.StatusCode}).Info("Email sent successfully")
	return nil
}
