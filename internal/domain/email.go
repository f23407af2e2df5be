package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// PotentialMatchEmailData holds data for the potential match email.
type PotentialMatchEmailData struct {
	Email    string
	FullName string
	Events   []*Event
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendPotentialMatch(ctx context.Context, data *PotentialMatchEmailData) error
}
