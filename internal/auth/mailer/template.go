package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/domain"
)

var htmlBody = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; color: #0f172a;">
  <h2>{{.App}} {{.Title}}</h2>
  <p>Your one-time code is:</p>
  <p style="font-size: 24px; font-weight: bold; letter-spacing: 4px;">{{.Code}}</p>
  <p>This code expires at <strong>{{.Expires}}</strong>.</p>
</div>
`))

type templateData struct {
	App     string
	Title   string
	Code    string
	Expires string
}

func subjectFor(app string, p domain.Purpose) string {
	if p == domain.PurposeReset {
		return app + " password reset code"
	}
	return app + " verification code"
}

// compose renders a multipart/alternative RFC 5322 message.
func compose(from, app string, m Message, now time.Time) ([]byte, error) {
	subject := subjectFor(app, m.Purpose)
	expires := m.ExpiresAt.UTC().Format(time.RFC3339)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Your %s is %s. It expires at %s.\r\n", strings.ToLower(subject), m.Code, expires)

	html, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	title := strings.TrimPrefix(subject, app+" ")
	if err := htmlBody.Execute(html, templateData{App: app, Title: title, Code: m.Code, Expires: expires}); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", m.To},
		{"Subject", subject},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + mw.Boundary()},
	}
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
