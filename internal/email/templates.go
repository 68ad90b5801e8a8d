package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	TemplateTestEmail           = "test_email"
	TemplateResetPassword       = "reset_password"
	TemplateAccountVerification = "new_account_mail_verification"
	TemplateNewAccount          = "new_account"
)

// Message is a rendered email ready to be sent.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// templateData is the union of the values used by the templates.
type templateData struct {
	ProjectName  string
	Email        string
	Username     string
	Link         string
	ValidMinutes int
}

// Composer renders the application's emails.
type Composer struct {
	projectName  string
	frontendHost string
	templates    map[string]*template.Template
}

// NewComposer parses the embedded templates.
func NewComposer(projectName, frontendHost string) (*Composer, error) {
	c := &Composer{
		projectName:  projectName,
		frontendHost: frontendHost,
		templates:    make(map[string]*template.Template),
	}
	for _, name := range []string{
		TemplateTestEmail,
		TemplateResetPassword,
		TemplateAccountVerification,
		TemplateNewAccount,
	} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// TestEmail renders the message sent by the test-email endpoint.
func (c *Composer) TestEmail(to string) (Message, error) {
	return c.render(TemplateTestEmail, to,
		fmt.Sprintf("%s - Test email", c.projectName),
		templateData{Email: to})
}

// ResetPassword renders the password recovery email for the account email.
func (c *Composer) ResetPassword(to, email, token string, valid time.Duration) (Message, error) {
	return c.render(TemplateResetPassword, to,
		fmt.Sprintf("%s - Password recovery for user %s", c.projectName, email),
		templateData{
			Email:        to,
			Username:     email,
			Link:         c.link("/reset-password", token),
			ValidMinutes: int(valid.Minutes()),
		})
}

// AccountVerification renders the activation email sent after signup.
func (c *Composer) AccountVerification(to, token string, valid time.Duration) (Message, error) {
	return c.render(TemplateAccountVerification, to,
		fmt.Sprintf("%s - email verification", c.projectName),
		templateData{
			Email:        to,
			Link:         c.link("/activate", token),
			ValidMinutes: int(valid.Minutes()),
		})
}

// NewAccount renders the welcome email for accounts created by a superuser.
func (c *Composer) NewAccount(to, username string) (Message, error) {
	return c.render(TemplateNewAccount, to,
		fmt.Sprintf("%s - New account for user %s", c.projectName, username),
		templateData{
			Email:    to,
			Username: username,
			Link:     c.frontendHost,
		})
}

func (c *Composer) render(name, to, subject string, data templateData) (Message, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", name)
	}
	data.ProjectName = c.projectName

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("failed to render email template %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}

func (c *Composer) link(path, token string) string {
	return c.frontendHost + path + "?token=" + url.QueryEscape(token)
}
