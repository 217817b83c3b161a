package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"portfolio-chat/internal/domain"
)

const (
	reasonEmptySubject = "empty_subject"
	reasonEmptyMessage = "empty_message"
	reasonEmptyEmail   = "empty_email"
	reasonInvalidEmail = "invalid_email"

	ContactSentNotice   = "Your message has been sent successfully!"
	ContactFailedNotice = "Failed to send message. Please try again later."
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var contactReasonText = map[string]string{
	reasonEmptySubject: "Please enter a subject",
	reasonEmptyMessage: "Please enter a message",
	reasonEmptyEmail:   "Please enter your email",
	reasonInvalidEmail: "Please enter a valid email address",
}

// ContactSender is the remote contact operation consumed by ContactService.
type ContactSender interface {
	SendContactMessage(ctx context.Context, subject, message, email string) (json.RawMessage, error)
}

// ContactService forwards contact form submissions. It does not share the chat
// session's busy gate.
type ContactService struct {
	sender ContactSender
	logger *slog.Logger
}

func NewContactService(sender ContactSender, logger *slog.Logger) (*ContactService, error) {
	if sender == nil {
		return nil, errors.New("usecase: contact sender must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{sender: sender, logger: logger}, nil
}

// Send validates req and forwards it unchanged.
func (s *ContactService) Send(ctx context.Context, req domain.ContactRequest) error {
	if err := validateContact(req); err != nil {
		return err
	}

	s.logger.Info("submitting contact form")
	if _, err := s.sender.SendContactMessage(ctx, req.Subject, req.Message, req.Email); err != nil {
		s.logger.Error("contact submission failed", "err", err)
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return newError(ErrorRateLimited, "contact_rate_limited", err)
		}
		return newError(ErrorUpstream, "contact_error", err)
	}
	return nil
}

func validateContact(req domain.ContactRequest) error {
	switch {
	case strings.TrimSpace(req.Subject) == "":
		return newError(ErrorInvalidInput, reasonEmptySubject, nil)
	case strings.TrimSpace(req.Message) == "":
		return newError(ErrorInvalidInput, reasonEmptyMessage, nil)
	case strings.TrimSpace(req.Email) == "":
		return newError(ErrorInvalidInput, reasonEmptyEmail, nil)
	case !emailPattern.MatchString(req.Email):
		return newError(ErrorInvalidInput, reasonInvalidEmail, nil)
	}
	return nil
}

// ContactNotice returns the user-facing text for the outcome of Send.
func ContactNotice(err error) string {
	if err == nil {
		return ContactSentNotice
	}
	if code, reason, ok := CodeOf(err); ok && code == ErrorInvalidInput {
		if text, found := contactReasonText[reason]; found {
			return text
		}
	}
	return ContactFailedNotice
}
