package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"lectern/internal/mailer"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/validation"
)

const contactSendTimeout = 30 * time.Second

// ContactInput is a contact-form submission.
type ContactInput struct {
	Name    string `json:"name" validate:"required,notblank,max=120"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

// ContactService persists contact messages and mails them in the background.
// A message is kept with delivered=false when mail fails.
type ContactService struct {
	contacts         repository.ContactRepository
	settings         repository.SettingRepository
	mailer           mailer.Mailer
	defaultRecipient string

	wg sync.WaitGroup
}

func NewContactService(contacts repository.ContactRepository, settings repository.SettingRepository, m mailer.Mailer, defaultRecipient string) *ContactService {
	return &ContactService{contacts: contacts, settings: settings, mailer: m, defaultRecipient: defaultRecipient}
}

func (s *ContactService) Submit(ctx context.Context, in ContactInput) (*models.ContactMessage, error) {
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
	}
	if err := s.contacts.Create(ctx, msg); err != nil {
		return nil, err
	}

	recipient := s.recipient(ctx)
	if recipient == "" {
		middleware.Logger.WarnContext(ctx, "contact recipient not configured, message stored only", slog.Uint64("contact_id", uint64(msg.ID)))
		return msg, nil
	}

	// Detach from the request; delivery outlives it.
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(bg, *msg, recipient)
	}()
	return msg, nil
}

func (s *ContactService) recipient(ctx context.Context) string {
	if v, ok, err := s.settings.Get(ctx, models.SettingContactRecipient); err == nil && ok && v != "" {
		return v
	}
	return s.defaultRecipient
}

func (s *ContactService) deliver(ctx context.Context, msg models.ContactMessage, recipient string) {
	ctx, cancel := context.WithTimeout(ctx, contactSendTimeout)
	defer cancel()

	to, err := mail.ParseAddress(recipient)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "invalid contact recipient", slog.String("recipient", recipient), slog.Any("error", err))
		return
	}
	err = s.mailer.Send(ctx, mailer.Message{
		To:      *to,
		ReplyTo: &mail.Address{Name: msg.Name, Address: msg.Email},
		Subject: "Contact: " + msg.Subject,
		Text:    fmt.Sprintf("From: %s <%s>\n\n%s", msg.Name, msg.Email, msg.Message),
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "contact mail failed", slog.Uint64("contact_id", uint64(msg.ID)), slog.Any("error", err))
		return
	}
	if err := s.contacts.MarkDelivered(ctx, msg.ID); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to mark contact delivered", slog.Uint64("contact_id", uint64(msg.ID)), slog.Any("error", err))
	}
}

// Wait blocks until in-flight deliveries finish.
func (s *ContactService) Wait() {
	s.wg.Wait()
}

func (s *ContactService) List(ctx context.Context, page repository.Page) ([]models.ContactMessage, int64, error) {
	return s.contacts.List(ctx, page)
}
