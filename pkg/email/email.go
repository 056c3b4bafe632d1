package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	FromName      string
	FromEmail     string
	OperatorEmail string
}

// EmailService sends operator alert emails
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendPaymentTimeoutAlert notifies the operator that a mobile payment was
// never confirmed and has been marked failed
func (s *EmailService) SendPaymentTimeoutAlert(reference, invoiceNo string, attempts int) error {
	htmlContent, err := s.renderAlert(
		"Mobile payment confirmation timed out",
		fmt.Sprintf("Payment %s against invoice %s received no provider confirmation after %d poll attempts and has been marked failed. Verify the transaction with the provider before retrying the charge.", reference, invoiceNo, attempts),
	)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Payment timeout: %s", reference)
	message := s.buildHTMLEmail(s.config.OperatorEmail, subject, htmlContent)
	return s.sendEmail(s.config.OperatorEmail, message)
}

// SendReconciliationAlert notifies the operator that a payment was recorded
// but its downstream workflow effect could not be applied
func (s *EmailService) SendReconciliationAlert(reference, invoiceNo, detail string) error {
	htmlContent, err := s.renderAlert(
		"Payment recorded, reconciliation incomplete",
		fmt.Sprintf("Payment %s against invoice %s was recorded, but the follow-up workflow update did not apply: %s. The financial record is safe; the visit state needs manual review.", reference, invoiceNo, detail),
	)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Reconciliation review needed: %s", invoiceNo)
	message := s.buildHTMLEmail(s.config.OperatorEmail, subject, htmlContent)
	return s.sendEmail(s.config.OperatorEmail, message)
}

// sendEmail sends an email using SMTP
func (s *EmailService) sendEmail(to string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)

	err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// buildHTMLEmail builds an HTML email message
func (s *EmailService) buildHTMLEmail(to, subject, htmlBody string) []byte {
	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n",
		s.config.FromName,
		s.config.FromEmail,
		to,
		subject,
	)

	return []byte(headers + htmlBody)
}

// renderAlert renders the operator alert template
func (s *EmailService) renderAlert(title, body string) (string, error) {
	tmpl, err := template.New("operator_alert").Parse(operatorAlertTemplate)
	if err != nil {
		return "", err
	}

	data := struct {
		Title   string
		Body    string
		AppName string
	}{
		Title:   title,
		Body:    body,
		AppName: "AfyaCare",
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// operatorAlertTemplate is the HTML template for operator alert emails
const operatorAlertTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f7fa;">
    <table role="presentation" style="width: 100%; border-collapse: collapse;">
        <tr>
            <td style="padding: 40px 0;">
                <table role="presentation" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 12px; overflow: hidden;">
                    <tr>
                        <td style="background-color: #b91c1c; padding: 30px; text-align: center;">
                            <h1 style="color: #ffffff; margin: 0; font-size: 24px; font-weight: 600;">{{.AppName}}</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 40px 30px;">
                            <h2 style="color: #1a1a2e; margin: 0 0 20px 0; font-size: 20px; font-weight: 600;">{{.Title}}</h2>
                            <p style="color: #4a5568; font-size: 16px; line-height: 1.6; margin: 0;">
                                {{.Body}}
                            </p>
                        </td>
                    </tr>
                    <tr>
                        <td style="background-color: #f8fafc; padding: 20px; text-align: center; border-top: 1px solid #e2e8f0;">
                            <p style="color: #a0aec0; font-size: 13px; margin: 0;">
                                Automated alert from {{.AppName}} billing reconciliation
                            </p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`
