// Package email sends CRM notifications over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

const appName = "NexaCRM"

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config   Config
	server   string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config:   config,
		server:   config.Host + ":" + config.Port,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s != nil && s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "nexacrm-boundary"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.sendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// sanitizeHeader strips line breaks so user text cannot inject headers.
func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

type TicketReplyData struct {
	AppName       string
	RecipientName string
	AuthorName    string
	TicketTitle   string
	Message       string
}

type WelcomeData struct {
	AppName   string
	UserName  string
	Email     string
	Role      string
	CreatedBy string
}

// SendTicketReply tells a ticket's requester that someone answered.
func (s *Service) SendTicketReply(to, recipientName, authorName, ticketTitle, message string) error {
	data := TicketReplyData{
		AppName:       appName,
		RecipientName: recipientName,
		AuthorName:    authorName,
		TicketTitle:   ticketTitle,
		Message:       message,
	}
	html, err := renderTemplate(ticketReplyTemplate, data)
	if err != nil {
		return fmt.Errorf("render ticket reply template: %w", err)
	}
	text := fmt.Sprintf("%s replied to your ticket %q:\r\n\r\n%s", authorName, ticketTitle, message)
	return s.SendHTMLEmail([]string{to}, "New reply on: "+ticketTitle, text, html)
}

// SendWelcome greets a user whose account was created by an administrator.
func (s *Service) SendWelcome(to, userName, role, createdBy string) error {
	data := WelcomeData{
		AppName:   appName,
		UserName:  userName,
		Email:     to,
		Role:      role,
		CreatedBy: createdBy,
	}
	html, err := renderTemplate(welcomeTemplate, data)
	if err != nil {
		return fmt.Errorf("render welcome template: %w", err)
	}
	text := fmt.Sprintf("Hi %s, %s created a %s account for you. Sign in with %s.", userName, createdBy, appName, to)
	return s.SendHTMLEmail([]string{to}, "Your "+appName+" account is ready", text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const emailStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #4f46e5; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { background: #f5f5f7; padding: 12px 16px; border-left: 4px solid #4f46e5; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }`

const ticketReplyTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New reply on {{.TicketTitle}}</title>
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Hi {{.RecipientName}},</p>

    <p>{{.AuthorName}} replied to your support ticket <strong>{{.TicketTitle}}</strong>:</p>

    <div class="quote">{{.Message}}</div>

    <div class="footer">
        <p>Sign in to {{.AppName}} to continue the conversation.</p>
    </div>
</body>
</html>`

const welcomeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Welcome to {{.AppName}}</title>
    <style>` + emailStyle + `
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Welcome, {{.UserName}}!</h2>

    <p>{{.CreatedBy}} created an account for you with the <strong>{{.Role}}</strong> role.</p>

    <p>Sign in with <strong>{{.Email}}</strong> and the password you were given, then change it from your profile.</p>

    <div class="footer">
        <p>If you were not expecting this email, contact your {{.AppName}} administrator.</p>
    </div>
</body>
</html>`
