package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/meetup-qa/backend/pkg/queue"
)

// Email types carried on queued email jobs.
const (
	TypePasswordReset = "password_reset"
)

var passwordResetHTML = template.Must(template.New("password_reset").Parse(`<p>Hello {{.Name}},</p>
<p>You requested a password reset. Click the link below to reset your password:</p>
<p><a href="{{.URL}}">Reset Password</a></p>
<p>The link expires in one hour. If you did not request this, please ignore this email.</p>
`))

// ResetURL builds the client link that opens the set-password view for token.
func ResetURL(appURL, token string) string {
	return fmt.Sprintf("%s/register?view=setPassword&token=%s", strings.TrimRight(appURL, "/"), url.QueryEscape(token))
}

// PasswordReset renders the password reset email for a queued job.
func PasswordReset(to, name, resetURL string) (queue.EmailPayload, error) {
	if name == "" {
		name = "there"
	}
	var html bytes.Buffer
	if err := passwordResetHTML.Execute(&html, struct{ Name, URL string }{name, resetURL}); err != nil {
		return queue.EmailPayload{}, fmt.Errorf("render password reset: %w", err)
	}
	text := fmt.Sprintf("Hello %s,\n\nYou requested a password reset. Open this link to choose a new password:\n%s\n\nThe link expires in one hour. If you did not request this, please ignore this email.\n", name, resetURL)
	return queue.EmailPayload{
		EmailType:      TypePasswordReset,
		RecipientEmail: to,
		Subject:        "Password Reset Request",
		BodyText:       text,
		BodyHTML:       html.String(),
	}, nil
}
