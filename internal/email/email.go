package email

import (
	"fmt"
	"os"
	"strings"

	"evalo-backend/internal/models"

	"github.com/labstack/echo/v4"
	resend "github.com/resend/resend-go/v2"
)

// EmailClient is an interface for sending emails
type EmailClient interface {
	SendAsync(toEmail, subject, htmlBody string)
	SendWelcomeEmail(profile *models.Profile)
	SendPasswordResetEmail(toEmail, resetLink string)
	SendTeacherInvitationEmail(inviterName, organizationName, inviteLink, toEmail string)
}

// ResendEmailClient implements EmailClient using the Resend service
type ResendEmailClient struct {
	client        *resend.Client
	defaultSender string
	logger        echo.Logger
}

// NewResendEmailClient creates a new ResendEmailClient
func NewResendEmailClient(client *resend.Client, defaultSender string, logger echo.Logger) *ResendEmailClient {
	return &ResendEmailClient{
		client:        client,
		defaultSender: defaultSender,
		logger:        logger,
	}
}

// SendAsync sends an email asynchronously
func (c *ResendEmailClient) SendAsync(toEmail, subject, htmlBody string) {
	if c == nil || c.client == nil {
		fmt.Println("Resend client not initialized, skipping email.")
		return
	}

	if c.defaultSender == "" {
		c.logger.Errorf("Resend default sender not configured, skipping email.")
		return
	}

	go func() {
		params := &resend.SendEmailRequest{
			From:    c.defaultSender,
			To:      []string{toEmail},
			Subject: subject,
			Html:    htmlBody,
		}

		_, err := c.client.Emails.Send(params)
		if err != nil {
			c.logger.Errorf("Failed to send email to %s (Subject: %s): %v\n", toEmail, subject, err)
		} else {
			c.logger.Infof("Email sent successfully to %s (Subject: %s)\n", toEmail, subject)
		}
	}()
}

// SendWelcomeEmail sends a welcome email to a new teacher or dean
func (c *ResendEmailClient) SendWelcomeEmail(profile *models.Profile) {
	if profile == nil {
		c.logger.Error("Cannot send welcome email to nil profile")
		return
	}

	// Read the template file
	templateBytes, err := os.ReadFile("web/emails/evalo-welcome.html")
	if err != nil {
		c.logger.Errorf("Failed to read welcome email template: %v", err)
		return
	}

	htmlBody := strings.ReplaceAll(string(templateBytes), "{first_name}", profile.FirstName)
	subject := "Welcome to Evalo " + profile.FirstName

	c.SendAsync(profile.Email, subject, htmlBody)
}

func (c *ResendEmailClient) SendPasswordResetEmail(toEmail, resetLink string) {
	if toEmail == "" || resetLink == "" {
		c.logger.Error("Cannot send password reset email with empty email or link")
		return
	}

	// Read the template file
	templateBytes, err := os.ReadFile("web/emails/evalo-password-reset.html")
	if err != nil {
		c.logger.Errorf("Failed to read password reset email template: %v", err)
		return
	}

	htmlBody := strings.ReplaceAll(string(templateBytes), "{reset_link}", resetLink)
	subject := "Reset your Evalo password"

	c.SendAsync(toEmail, subject, htmlBody)
}

// SendTeacherInvitationEmail invites a teacher to join an organization
func (c *ResendEmailClient) SendTeacherInvitationEmail(inviterName, organizationName, inviteLink, toEmail string) {
	if toEmail == "" || inviteLink == "" {
		c.logger.Error("Cannot send invitation email with empty email or link")
		return
	}

	// Read the template file
	templateBytes, err := os.ReadFile("web/emails/evalo-invitation.html")
	if err != nil {
		c.logger.Errorf("Failed to read invitation email template: %v", err)
		return
	}

	htmlBody := string(templateBytes)
	htmlBody = strings.ReplaceAll(htmlBody, "{inviter_name}", inviterName)
	htmlBody = strings.ReplaceAll(htmlBody, "{organization_name}", organizationName)
	htmlBody = strings.ReplaceAll(htmlBody, "{invite_link}", inviteLink)
	subject := fmt.Sprintf("%s invited you to join %s on Evalo", inviterName, organizationName)

	c.SendAsync(toEmail, subject, htmlBody)
}
