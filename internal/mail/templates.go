package mail

import (
	"fmt"
	"strings"
	"text/template"
)

// Only fixed parameters reach these templates; user-controlled free text
// never does.

var resetTemplate = template.Must(template.New("reset").Parse(
	`Hello {{.Name}},

A password reset was requested for your account. Open the link below to
choose a new password. The link expires in {{.TTL}}.

{{.Link}}

If you did not request this, ignore this message.
`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(
	`Hello {{.Name}},

Your account ({{.Email}}) has been created. You can sign in right away.
`))

type ResetParams struct {
	Name string
	Link string
	TTL  string
}

func ResetMessage(to string, p ResetParams) (Message, error) {
	var b strings.Builder
	if err := resetTemplate.Execute(&b, p); err != nil {
		return Message{}, fmt.Errorf("render reset mail: %w", err)
	}
	return Message{To: to, Subject: "Password reset", Body: b.String()}, nil
}

type WelcomeParams struct {
	Name  string
	Email string
}

func WelcomeMessage(to string, p WelcomeParams) (Message, error) {
	var b strings.Builder
	if err := welcomeTemplate.Execute(&b, p); err != nil {
		return Message{}, fmt.Errorf("render welcome mail: %w", err)
	}
	return Message{To: to, Subject: "Welcome", Body: b.String()}, nil
}
