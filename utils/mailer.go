package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"chaser/models"
)

// ChaseEmailData fills the reminder template.
type ChaseEmailData struct {
	Subject        string
	CustomerName   string
	DocumentNumber string
	Amount         string
	DueDate        string
	FromName       string
	Year           int
}

// Embedded email templates
var emailTemplates = map[string]string{
	"chase": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .amount { font-size: 22px; font-weight: bold; color: #c0392b; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Payment Reminder</h2>
    </div>

    <div class="content">
        <p>Dear {{.CustomerName}},</p>
        <p>This is a friendly reminder that invoice <strong>{{.DocumentNumber}}</strong> is awaiting payment.</p>

        <div class="amount">{{.Amount}}</div>

        {{if .DueDate}}<p>The invoice {{if .Subject}}is{{end}} due on {{.DueDate}}.</p>{{end}}
        <p>If you have already made this payment, please disregard this message.</p>
    </div>

    <div class="footer">
        <p>Sent by {{.FromName}}.</p>
        <p>&copy; {{.Year}} {{.FromName}}. All rights reserved.</p>
    </div>
</body>
</html>`,
}

// ChaseMailer sends reminder emails through an account's own SMTP identity.
type ChaseMailer struct{}

func NewChaseMailer() *ChaseMailer {
	return &ChaseMailer{}
}

// Send renders the chase template and delivers it via the account's SMTP
// settings. The stored password is decrypted just-in-time and never held.
func (cm *ChaseMailer) Send(account *models.Account, to []string, data ChaseEmailData) error {
	if account.SMTPHost == "" {
		return fmt.Errorf("account %d has no SMTP configuration", account.ID)
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	tmpl, err := template.New("chase").Parse(emailTemplates["chase"])
	if err != nil {
		return fmt.Errorf("parsing chase template: %w", err)
	}

	data.Year = time.Now().Year()
	if data.FromName == "" {
		data.FromName = account.FromName
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("rendering chase template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", account.FromEmail, account.FromName)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	password, err := Decrypt(account.SMTPPassword)
	if err != nil {
		return fmt.Errorf("decrypting SMTP password: %w", err)
	}

	d := gomail.NewDialer(account.SMTPHost, account.SMTPPort, account.SMTPUsername, password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending via %s: %w", account.SMTPHost, err)
	}
	return nil
}
