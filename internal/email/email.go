// Package email provides email sending functionality
package email

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("email: smtp not configured")

// Config holds email configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool

	// Base URL used for links back to the console
	FrontendURL string
}

// Service handles email sending
type Service struct {
	config    *Config
	templates map[string]*template.Template
	log       *zap.Logger

	// sendMail delivers over a plain connection; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(config *Config, log *zap.Logger) *Service {
	return &Service{
		config:    config,
		templates: loadTemplates(),
		log:       log,
		sendMail:  smtp.SendMail,
	}
}

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

func (s *Service) buildMessage(email *Email) []byte {
	var msg bytes.Buffer

	fmt.Fprintf(&msg, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(email.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")

	if email.HTMLBody != "" {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.HTMLBody)
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		msg.WriteString(email.Body)
	}
	return msg.Bytes()
}

func (s *Service) Send(email *Email) error {
	if s.config.Host == "" {
		return ErrNotConfigured
	}

	msg := s.buildMessage(email)
	auth := smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if !s.config.UseTLS {
		if err := s.sendMail(addr, auth, s.config.From, email.To, msg); err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.config.Host})
	if err != nil {
		return fmt.Errorf("TLS dial error: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("SMTP client error: %w", err)
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		return fmt.Errorf("auth error: %w", err)
	}
	if err = client.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail error: %w", err)
	}
	for _, rcpt := range email.To {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt error: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data error: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close error: %w", err)
	}
	return client.Quit()
}

func (s *Service) render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	body, err := s.render(templateName, data)
	if err != nil {
		return err
	}
	if err := s.Send(&Email{To: to, Subject: subject, HTMLBody: body}); err != nil {
		return err
	}
	s.log.Debug("email sent", zap.String("template", templateName), zap.Strings("to", to))
	return nil
}

// ============================================
// Convenience Methods
// ============================================

// TemporaryPasswordData holds data for the new-account email
type TemporaryPasswordData struct {
	Name     string
	Email    string
	Password string
	LoginURL string
}

// SendTemporaryPassword mails the credentials of a newly created account.
func (s *Service) SendTemporaryPassword(to, name, password string) error {
	return s.SendWithTemplate([]string{to}, "[ORA] Your console account", "temporary_password", TemporaryPasswordData{
		Name:     name,
		Email:    to,
		Password: password,
		LoginURL: strings.TrimRight(s.config.FrontendURL, "/") + "/login",
	})
}

// DueDateReminderTask is one line of a reminder email
type DueDateReminderTask struct {
	Title    string
	Priority string
	DueDate  string
}

// DueDateReminderData holds data for overdue task reminders
type DueDateReminderData struct {
	UserName string
	Tasks    []DueDateReminderTask
	TasksURL string
}

// SendDueDateReminder sends an overdue task digest
func (s *Service) SendDueDateReminder(to string, data DueDateReminderData) error {
	if data.TasksURL == "" {
		data.TasksURL = strings.TrimRight(s.config.FrontendURL, "/") + "/tasks"
	}
	return s.SendWithTemplate(
		[]string{to},
		fmt.Sprintf("[ORA] You have %d overdue task(s)", len(data.Tasks)),
		"due_date_reminder",
		data,
	)
}
