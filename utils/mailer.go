package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"taskory/config"
)

type EmailData struct {
	Subject   string
	To        []string
	Template  string
	Data      interface{}
	Year      int
	FromName  string
	FromEmail string
}

// Embedded email templates
var emailTemplates = map[string]string{
	"notification": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .message { font-size: 16px; color: #2c3e50; margin: 20px 0; padding: 15px; background: #f4f6f8; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Taskory Update</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>There is new activity on work you follow:</p>

        <div class="message">{{.Message}}</div>

        <p>Sign in to see the details and respond.</p>
    </div>

    <div class="footer">
        <p>You receive these emails because notifications are enabled for your account.</p>
        <p>© {{.Year}} Taskory. All rights reserved.</p>
    </div>
</body>
</html>`,
}

func SendEmail(data EmailData) error {
	smtp := config.AppConfig.SMTP

	if data.FromEmail == "" {
		data.FromEmail = smtp.FromEmail
	}
	if data.FromName == "" {
		data.FromName = "Taskory"
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %v", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %v", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", data.FromName, data.FromEmail))
	m.SetHeader("To", data.To...)
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	return nil
}

// SendNotificationEmail delivers one in-app notification by mail. No-op
// when SMTP is not configured.
func SendNotificationEmail(to, message string) error {
	if !config.AppConfig.SMTP.Configured() {
		return nil
	}

	data := EmailData{
		Subject:  "Taskory: new activity",
		To:       []string{to},
		Template: "notification",
		Data: struct {
			Subject string
			Message string
			Year    int
		}{
			Subject: "Taskory: new activity",
			Message: message,
			Year:    time.Now().Year(),
		},
	}

	return SendEmail(data)
}
