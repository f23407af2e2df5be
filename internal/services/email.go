package services

import (
	"context"
	"fmt"
	"log"

	"pinit/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer}
}

// SendPotentialMatch tells a user about newly auto-matched events using the "potential_match" template.
func (s *emailService) SendPotentialMatch(ctx context.Context, data *domain.PotentialMatchEmailData) error {
	if data == nil {
		return fmt.Errorf("potential match data is nil")
	}
	if data.Email == "" {
		return fmt.Errorf("potential match recipient: %w", domain.ErrInvalidInput)
	}
	subject, htmlBody, textBody, err := s.renderer.Render("potential_match", data)
	if err != nil {
		return fmt.Errorf("failed to render potential_match template: %w", err)
	}
	if err := s.mailer.Send(ctx, data.Email, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send potential match email: %w", err)
	}
	log.Printf("[EMAIL] Potential match email sent to %s (%d events)", data.Email, len(data.Events))
	return nil
}
