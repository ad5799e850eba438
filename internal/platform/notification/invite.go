package notification

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// InviteMailer emails join codes to invited secretaries.
type InviteMailer struct {
	sender      EmailSender
	templates   *TemplateEngine
	frontendURL string
}

func NewInviteMailer(sender EmailSender, templates *TemplateEngine, frontendURL string) *InviteMailer {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &InviteMailer{
		sender:      sender,
		templates:   templates,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// JoinLink is the frontend page that redeems code.
func (m *InviteMailer) JoinLink(code string) string {
	return m.frontendURL + "/join?code=" + url.QueryEscape(code)
}

// SendJoinCode renders the template matching the code kind and sends it.
func (m *InviteMailer) SendJoinCode(ctx context.Context, to, name, code string, invite bool, uses int, expiresAt *time.Time) error {
	tpl := TemplateJoinCode
	if invite {
		tpl = TemplateInvite
	}
	expires := "no expiry"
	if expiresAt != nil {
		expires = expiresAt.UTC().Format(time.RFC1123)
	}
	subject, body, err := m.templates.Render(tpl, map[string]string{
		"name":       name,
		"code":       code,
		"uses":       strconv.Itoa(uses),
		"expires_at": expires,
		"join_link":  m.JoinLink(code),
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, to, subject, body)
}
