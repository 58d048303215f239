// AngelaMos | 2026
// templates.go

package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

const (
	KindVerifyEmail   = "verify-email"
	KindResetPassword = "reset-password"
)

type emailData struct {
	Name      string
	Link      string
	ExpiresIn string
	AppName   string
}

type emailTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

var verifyTemplate = emailTemplate{
	subject: "Verify your email address",
	html: htmltemplate.Must(htmltemplate.New("verify").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Welcome to {{.AppName}}, {{.Name}}</h2>
  <p>Confirm your email address to finish setting up your account.</p>
  <p><a href="{{.Link}}" style="background:#2563eb;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none;">Verify email</a></p>
  <p>This link expires in {{.ExpiresIn}}. If you did not sign up, ignore this message.</p>
</body>
</html>`)),
	text: texttemplate.Must(texttemplate.New("verify").Parse(
		"Welcome to {{.AppName}}, {{.Name}}\n\n" +
			"Confirm your email address by opening:\n{{.Link}}\n\n" +
			"This link expires in {{.ExpiresIn}}.\n")),
}

var resetTemplate = emailTemplate{
	subject: "Reset your password",
	html: htmltemplate.Must(htmltemplate.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Password reset requested</h2>
  <p>Hi {{.Name}}, we received a request to reset your {{.AppName}} password.</p>
  <p><a href="{{.Link}}" style="background:#dc2626;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none;">Reset password</a></p>
  <p>This link expires in {{.ExpiresIn}}. If you did not ask for this, your password is unchanged.</p>
</body>
</html>`)),
	text: texttemplate.Must(texttemplate.New("reset").Parse(
		"Hi {{.Name}},\n\n" +
			"Reset your {{.AppName}} password by opening:\n{{.Link}}\n\n" +
			"This link expires in {{.ExpiresIn}}.\n")),
}

// Composer renders the account emails.
type Composer struct {
	AppName string
	From    string
	Now     func() time.Time
}

func (c Composer) VerificationEmail(
	to, name, link string,
	ttl time.Duration,
) (Message, error) {
	return c.render(verifyTemplate, KindVerifyEmail, to, name, link, ttl)
}

func (c Composer) ResetEmail(
	to, name, link string,
	ttl time.Duration,
) (Message, error) {
	return c.render(resetTemplate, KindResetPassword, to, name, link, ttl)
}

func (c Composer) render(
	tpl emailTemplate,
	kind, to, name, link string,
	ttl time.Duration,
) (Message, error) {
	data := emailData{
		Name:      name,
		Link:      link,
		ExpiresIn: humanDuration(ttl),
		AppName:   c.AppName,
	}

	var html, text bytes.Buffer
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	return Message{
		To:        to,
		From:      c.From,
		Subject:   tpl.subject,
		HTML:      html.String(),
		Text:      text.String(),
		Kind:      kind,
		CreatedAt: now().UTC(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
