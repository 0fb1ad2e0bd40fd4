package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/beautylab-site/internal/notify"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

// EmailRelay forwards leads straight to the studio inbox through an
// EmailSender, for deployments that do not use a hosted relay.
type EmailRelay struct {
	sender notify.EmailSender
	inbox  string
	brand  string
	logger *logging.Logger
}

// NewEmailRelay creates a relay that mails each lead to inbox.
func NewEmailRelay(sender notify.EmailSender, inbox, brand string, logger *logging.Logger) *EmailRelay {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailRelay{
		sender: sender,
		inbox:  strings.TrimSpace(inbox),
		brand:  brand,
		logger: logger.Component("relay.email"),
	}
}

// Submit renders the lead e-mail and hands it to the sender.
func (r *EmailRelay) Submit(ctx context.Context, sub Submission) (*Ack, error) {
	if r.sender == nil || r.inbox == "" {
		return nil, &TransportError{Op: "configure", Err: errors.New("email relay needs a sender and an inbox")}
	}

	sub = Clean(sub)
	service := sub.ServiceLabel
	if service == "" {
		service = sub.Service
	}
	subject, body, err := notify.RenderLeadEmail(notify.LeadEmail{
		Brand:   r.brand,
		Name:    sub.Name,
		Phone:   sub.Phone,
		Email:   sub.Email,
		Service: service,
		Message: sub.Message,
	})
	if err != nil {
		return nil, &TransportError{Op: "render", Err: err}
	}

	if err := r.sender.Send(ctx, notify.EmailMessage{
		To:      r.inbox,
		ReplyTo: sub.Email,
		Subject: subject,
		Body:    body,
	}); err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}

	r.logger.Info("lead mailed to studio", "service", sub.Service)
	return &Ack{Success: true, Message: "Email sent successfully!"}, nil
}
