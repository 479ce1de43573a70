// Package email delivers the password-change mails through Resend.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
)

const (
	fromAddress = "noreply@tippingpage.com"
	sendTimeout = 10 * time.Second
)

// Sender delivers transactional mail. Confirmation sends are best-effort
// at every call site: a failure is logged, never propagated.
type Sender interface {
	SendPasswordChangeVerification(ctx context.Context, to, token, frontendURL string) error
	SendPasswordChangedConfirmation(ctx context.Context, to string) error
}

// ResendSender implements Sender on the Resend API.
type ResendSender struct {
	client *resend.Client
}

func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

func (s *ResendSender) send(ctx context.Context, to, subject, html string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *ResendSender) SendPasswordChangeVerification(ctx context.Context, to, token, frontendURL string) error {
	link := fmt.Sprintf("%s/admin/verify-password-change?token=%s", frontendURL, token)
	html := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
			<div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 8px;">
				<h2 style="color: #667eea; margin-bottom: 20px;">Password Change Request</h2>
				<p style="color: #666; line-height: 1.6;">You have requested to change your admin password.</p>
				<p style="color: #666; line-height: 1.6;">Please click the button below to verify and complete the password change:</p>
				<div style="text-align: center; margin: 30px 0;">
					<a href="%s" style="display: inline-block; padding: 12px 30px; background: #667eea; color: white; text-decoration: none; border-radius: 6px; font-weight: 600;">Verify Password Change</a>
				</div>
				<p style="color: #999; font-size: 14px; line-height: 1.6;">This link expires in 15 minutes. If you didn't request this change, please ignore this email.</p>
				<p style="color: #999; font-size: 14px; margin-top: 20px;">Or copy and paste this link:</p>
				<p style="color: #667eea; font-size: 12px; word-break: break-all;">%s</p>
			</div>
		</body>
	</html>`, link, link)

	return s.send(ctx, to, "Verify Your Password Change", html)
}

func (s *ResendSender) SendPasswordChangedConfirmation(ctx context.Context, to string) error {
	html := `
	<html>
		<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
			<div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 8px;">
				<h2 style="color: #10b981; margin-bottom: 20px;">Password Changed Successfully</h2>
				<p style="color: #666; line-height: 1.6;">Your admin password has been changed successfully.</p>
				<p style="color: #666; line-height: 1.6;">If you did not make this change, please contact support immediately.</p>
				<p style="color: #999; font-size: 14px; margin-top: 30px;">This is an automated message. Please do not reply.</p>
			</div>
		</body>
	</html>`

	return s.send(ctx, to, "Password Changed Successfully", html)
}
